// Package batch fans forecasts out over many questions.
package batch

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/forecast-cli/internal/forecast"
	"github.com/sells-group/forecast-cli/internal/metrics"
	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/resilience"
)

// Item fields read by the runner.
const (
	FieldQuestion   = "question"
	FieldBackground = "backgroundText"
	FieldCutoff     = "beforeTimeStamp"
)

// Forecaster runs a single forecast.
type Forecaster interface {
	Run(ctx context.Context, req model.ForecastRequest) (<-chan forecast.Event, error)
}

// Config holds runner defaults.
type Config struct {
	Concurrency int
	Retries     int
}

// Runner runs batches of forecasts.
type Runner struct {
	forecaster Forecaster
	cfg        Config
	metrics    *metrics.Metrics
}

// New creates a Runner.
func New(f Forecaster, cfg Config, m *metrics.Metrics) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 20
	}
	if cfg.Retries < 1 {
		cfg.Retries = 3
	}
	return &Runner{forecaster: f, cfg: cfg, metrics: m}
}

// Run forecasts every question of req with at most concurrency items in
// flight; zero uses the configured default. It returns one result per item
// in input order. Item failures never abort the batch: a failed item gets a
// null prediction and whatever response its last attempt produced.
func (r *Runner) Run(ctx context.Context, req model.BatchRequest, concurrency int) []model.ForecastResult {
	if concurrency < 1 {
		concurrency = r.cfg.Concurrency
	}
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID), zap.Int("items", len(req.Questions)))
	log.Info("batch: starting", zap.Int("concurrency", concurrency), zap.String("model", req.Model))
	start := time.Now()

	results := make([]model.ForecastResult, len(req.Questions))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, item := range req.Questions {
		g.Go(func() error {
			res, err := r.runItem(ctx, req, item)
			if err != nil {
				log.Warn("batch: item failed", zap.Int("index", i), zap.Error(err))
			}
			r.metrics.BatchItem(err)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.Prediction == nil {
			failed++
		}
	}
	log.Info("batch: complete",
		zap.Int("without_prediction", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results
}

func (r *Runner) runItem(ctx context.Context, req model.BatchRequest, item model.BatchItem) (model.ForecastResult, error) {
	res := model.ForecastResult{Item: item, Sources: []model.Source{}}

	freq, err := itemRequest(req, item)
	if err != nil {
		return res, err
	}

	var last string
	cfg := resilience.Attempts(r.cfg.Retries)
	cfg.OnRetry = resilience.RetryLogger("batch", "forecast")
	parsed, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (forecast.Parsed, error) {
		text, err := r.attempt(ctx, freq)
		last = text
		if err != nil {
			return forecast.Parsed{}, err
		}
		return forecast.ParseOutput(text)
	})
	if err != nil {
		if partial, perr := forecast.ParseOutput(last); perr == nil {
			res.Response = partial.Response
			res.Sources = partial.Sources
		}
		return res, err
	}

	res.Prediction = parsed.Prediction
	res.Response = parsed.Response
	res.Sources = parsed.Sources
	return res, nil
}

// attempt runs one forecast to completion and returns the full stream text.
// A degraded stage fails the attempt.
func (r *Runner) attempt(ctx context.Context, req model.ForecastRequest) (string, error) {
	events, err := r.forecaster.Run(ctx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var stageErr error
	for ev := range events {
		b.WriteString(ev.Encode())
		if ev.Err != nil && stageErr == nil {
			stageErr = eris.Wrapf(ev.Err, "batch: %s stage", ev.Type)
		}
	}
	if ctx.Err() != nil {
		return b.String(), ctx.Err()
	}
	return b.String(), stageErr
}

// itemRequest builds the forecast request for one item.
func itemRequest(req model.BatchRequest, item model.BatchItem) (model.ForecastRequest, error) {
	q, _ := item[FieldQuestion].(string)
	if strings.TrimSpace(q) == "" {
		return model.ForecastRequest{}, eris.Errorf("batch: item has no %q field", FieldQuestion)
	}
	if bg, _ := item[FieldBackground].(string); bg != "" {
		q = q + "\n\nBackground text:" + bg
	}

	freq := model.ForecastRequest{
		Model:           req.Model,
		Messages:        []model.Message{{Role: "user", Content: q}},
		Breadth:         req.Breadth,
		PlannerPrompt:   req.PlannerPrompt,
		PublisherPrompt: req.PublisherPrompt,
		SearchType:      req.SearchType,
	}
	if ts, ok := timestamp(item[FieldCutoff]); ok {
		freq.BeforeTimestamp = &ts
	}
	return freq, nil
}

// timestamp reads a unix timestamp from a decoded JSON number, a spreadsheet
// cell string or a Go integer.
func timestamp(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}
