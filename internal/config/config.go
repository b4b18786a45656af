package config

import (
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/forecast-cli/internal/llm"
	"github.com/sells-group/forecast-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenAI     ProviderConfig   `yaml:"openai" mapstructure:"openai"`
	Anthropic  ProviderConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Fireworks  ProviderConfig   `yaml:"fireworks" mapstructure:"fireworks"`
	Perplexity ProviderConfig   `yaml:"perplexity" mapstructure:"perplexity"`
	Serper     SerperConfig     `yaml:"serper" mapstructure:"serper"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Forecast   ForecastConfig   `yaml:"forecast" mapstructure:"forecast"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the source cache backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	MongoDatabase string `yaml:"mongo_database" mapstructure:"mongo_database"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
}

// ProviderConfig holds credentials for one model provider.
type ProviderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SerperConfig holds Serper search API settings.
type SerperConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// ResearchConfig configures retrieval.
type ResearchConfig struct {
	Breadth          int     `yaml:"breadth" mapstructure:"breadth"`
	Depth            int     `yaml:"depth" mapstructure:"depth"`
	MaxWords         int     `yaml:"max_words" mapstructure:"max_words"`
	MaxTrials        int     `yaml:"max_trials" mapstructure:"max_trials"`
	SearchBatchSize  int     `yaml:"search_batch_size" mapstructure:"search_batch_size"`
	SearchType       string  `yaml:"search_type" mapstructure:"search_type"`
	SearchProvider   string  `yaml:"search_provider" mapstructure:"search_provider"`
	ParseWorkers     int     `yaml:"parse_workers" mapstructure:"parse_workers"`
	FetchConcurrency int     `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
	FetchTimeoutSecs int     `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	HostRateLimit    float64 `yaml:"host_rate_limit" mapstructure:"host_rate_limit"`
	SummaryModel     string  `yaml:"summary_model" mapstructure:"summary_model"`
	SummaryMaxTokens int     `yaml:"summary_max_tokens" mapstructure:"summary_max_tokens"`
	JinaFallback     bool    `yaml:"jina_fallback" mapstructure:"jina_fallback"`
}

// ForecastConfig configures the planner and publisher calls.
type ForecastConfig struct {
	Model              string `yaml:"model" mapstructure:"model"`
	PlannerMaxTokens   int    `yaml:"planner_max_tokens" mapstructure:"planner_max_tokens"`
	PublisherMaxTokens int    `yaml:"publisher_max_tokens" mapstructure:"publisher_max_tokens"`
	PromptsFile        string `yaml:"prompts_file" mapstructure:"prompts_file"`
	RelatedModel       string `yaml:"related_model" mapstructure:"related_model"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	Retries     int `yaml:"retries" mapstructure:"retries"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FORECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "forecast.db")
	v.SetDefault("store.mongo_database", "forecasting")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8089)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("fireworks.base_url", "https://api.fireworks.ai/inference/v1")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("research.breadth", 5)
	v.SetDefault("research.depth", 1)
	v.SetDefault("research.max_words", 2048)
	v.SetDefault("research.max_trials", 5)
	v.SetDefault("research.search_batch_size", 20)
	v.SetDefault("research.search_type", string(model.SearchTypeNews))
	v.SetDefault("research.search_provider", "serper")
	v.SetDefault("research.parse_workers", runtime.NumCPU())
	v.SetDefault("research.fetch_concurrency", runtime.NumCPU()*4)
	v.SetDefault("research.fetch_timeout_secs", 15)
	v.SetDefault("research.host_rate_limit", 2.0)
	v.SetDefault("research.summary_model", "gpt-4o-mini")
	v.SetDefault("research.summary_max_tokens", 512)
	v.SetDefault("research.jina_fallback", false)
	v.SetDefault("forecast.model", "gpt-4o-mini")
	v.SetDefault("forecast.planner_max_tokens", 512)
	v.SetDefault("forecast.publisher_max_tokens", 2048)
	v.SetDefault("forecast.related_model", "gpt-4o-mini")
	v.SetDefault("batch.concurrency", 20)
	v.SetDefault("batch.retries", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with. Unknown
// model identifiers fail here rather than on first use.
func (c *Config) Validate() error {
	for field, m := range map[string]string{
		"forecast.model":         c.Forecast.Model,
		"research.summary_model": c.Research.SummaryModel,
		"forecast.related_model": c.Forecast.RelatedModel,
	} {
		if _, err := llm.ResolveProvider(m); err != nil {
			return eris.Wrapf(err, "config: %s", field)
		}
	}
	if !model.SearchType(c.Research.SearchType).Valid() {
		return eris.Errorf("config: unknown search type %q", c.Research.SearchType)
	}
	switch c.Research.SearchProvider {
	case "serper", "jina":
	default:
		return eris.Errorf("config: unknown search provider %q", c.Research.SearchProvider)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "mongo", "redis", "memory":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Research.SearchBatchSize < 1 {
		return eris.New("config: research.search_batch_size must be positive")
	}
	return nil
}

// Provider returns the credentials for p.
func (c *Config) Provider(p llm.Provider) ProviderConfig {
	switch p {
	case llm.ProviderAnthropic:
		return c.Anthropic
	case llm.ProviderFireworks:
		return c.Fireworks
	case llm.ProviderPerplexity:
		return c.Perplexity
	default:
		return c.OpenAI
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
