// Package ratelimit throttles article fetches per host.
package ratelimit

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter that speeds up on success and backs
// off on 429. The rate stays within [initial/4, initial*2].
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(a.currentRate * 1.2)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(a.currentRate * 0.5)
}

func (a *AdaptiveLimiter) setLocked(r rate.Limit) {
	if r > a.maxRate {
		r = a.maxRate
	}
	if r < a.minRate {
		r = a.minRate
	}
	a.currentRate = r
	a.limiter.SetLimit(r)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HostLimiter hands out one AdaptiveLimiter per host. Concurrent research
// calls that hit the same publisher share its budget.
type HostLimiter struct {
	mu       sync.Mutex
	perHost  rate.Limit
	burst    int
	limiters map[string]*AdaptiveLimiter
}

// NewHostLimiter creates a HostLimiter allowing perSecond requests per host.
// A non-positive rate disables limiting.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		perHost:  rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// For returns the limiter for host, or nil when limiting is disabled.
func (h *HostLimiter) For(host string) *AdaptiveLimiter {
	if h == nil || h.perHost <= 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = NewAdaptiveLimiter(h.perHost, h.burst)
		h.limiters[host] = l
	}
	return l
}

// Wait blocks until host may be fetched again.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	l := h.For(host)
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

// Observe adjusts the host's rate from a response status code.
func (h *HostLimiter) Observe(host string, statusCode int) {
	l := h.For(host)
	if l == nil {
		return
	}
	if statusCode == 429 {
		l.OnRateLimit()
		zap.L().Warn("ratelimit: host returned 429, reducing rate",
			zap.String("host", host),
			zap.Float64("new_rate", float64(l.Limit())),
		)
		return
	}
	if statusCode < 400 {
		l.OnSuccess()
	}
}
