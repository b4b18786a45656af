// Package metrics exposes Prometheus instrumentation for the pipeline.
// All recording methods are safe on a nil *Metrics, so components can run
// without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "forecast"

// Metrics holds the pipeline collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	searches        *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	blacklistAdds   prometheus.Counter
	cacheHits       prometheus.Counter
	summaries       *prometheus.CounterVec
	researchSeconds *prometheus.HistogramVec
	forecasts       *prometheus.CounterVec
	batchItems      *prometheus.CounterVec
}

// New registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "article_fetches_total",
			Help:      "Article fetch attempts by outcome.",
		}, []string{"outcome"}),
		blacklistAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blacklist_additions_total",
			Help:      "Domains submitted to the blacklist.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_hits_total",
			Help:      "Sources served from the cache instead of fetched.",
		}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Article summarization calls by outcome.",
		}, []string{"outcome"}),
		researchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "research_stage_seconds",
			Help:      "Duration of each research stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Forecast pipeline runs by outcome.",
		}, []string{"outcome"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Batch items by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.searches, m.fetches, m.blacklistAdds, m.cacheHits,
		m.summaries, m.researchSeconds, m.forecasts, m.batchItems,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) Search(provider string, err error) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(provider, outcome(err)).Inc()
}

// Fetch records one fetch attempt. Outcomes are "ok", "cached", "bypass",
// "rejected" (date outside the cutoff) and "error".
func (m *Metrics) Fetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CacheHits(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheHits.Add(float64(n))
}

func (m *Metrics) BlacklistAdds(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.blacklistAdds.Add(float64(n))
}

func (m *Metrics) Summary(err error) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(outcome(err)).Inc()
}

// Stage observes the duration of a research stage.
func (m *Metrics) Stage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.researchSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Forecast(err error) {
	if m == nil {
		return
	}
	m.forecasts.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) BatchItem(err error) {
	if m == nil {
		return
	}
	m.batchItems.WithLabelValues(outcome(err)).Inc()
}
