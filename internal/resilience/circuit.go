// Package resilience provides circuit breaker and retry patterns for search,
// reader and model provider calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is the phase a breaker is in.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

var stateNames = [...]string{
	CircuitClosed:   "closed",
	CircuitOpen:     "open",
	CircuitHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen rejects calls while a provider is cooling down.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig tunes a breaker. Zero fields take defaults.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures that open the circuit; default 5
	ResetTimeout     time.Duration // time spent open before probing; default 30s
	// HalfOpenMaxProbes is the number of successful probes that close the
	// circuit again. Default 1.
	HalfOpenMaxProbes int
	// ShouldTrip reports whether err counts against the provider. Nil counts
	// every error.
	ShouldTrip func(err error) bool
}

// DefaultCircuitBreakerConfig is the breaker used for model providers.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second, HalfOpenMaxProbes: 1}
}

// CircuitBreaker stops calling a provider that keeps failing.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	probes   int
	openedAt time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = def.HalfOpenMaxProbes
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed. An open circuit whose timeout has
// passed moves to half-open and lets the caller probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.cooled() {
		cb.set(CircuitHalfOpen)
	}
	return cb.state != CircuitOpen
}

// State returns the current phase without changing it.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.cooled() {
		return CircuitHalfOpen
	}
	return cb.state
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal runs fn unless the circuit is open and records its outcome.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if !cb.Allow() {
		var zero T
		return zero, ErrCircuitOpen
	}
	v, err := fn(ctx)
	cb.Record(err)
	return v, err
}

// Record counts the outcome of one call.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && cb.cfg.ShouldTrip(err) {
		cb.failures++
		cb.probes = 0
		if cb.state == CircuitHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.now()
			cb.set(CircuitOpen)
		}
		return
	}

	cb.failures = 0
	if cb.state != CircuitHalfOpen {
		return
	}
	cb.probes++
	if cb.probes >= cb.cfg.HalfOpenMaxProbes {
		cb.probes = 0
		cb.set(CircuitClosed)
	}
}

func (cb *CircuitBreaker) cooled() bool {
	return cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) set(to CircuitState) {
	if cb.state == to {
		return
	}
	zap.L().Debug("resilience: circuit state change",
		zap.String("service", cb.cfg.Name),
		zap.Stringer("from", cb.state),
		zap.Stringer("to", to),
	)
	cb.state = to
}

// ServiceBreakers keeps one breaker per provider.
type ServiceBreakers struct {
	cfg      CircuitBreakerConfig
	breakers sync.Map // service name -> *CircuitBreaker
}

// NewServiceBreakers creates an empty set sharing cfg.
func NewServiceBreakers(cfg CircuitBreakerConfig) *ServiceBreakers {
	return &ServiceBreakers{cfg: cfg}
}

// Get returns the breaker for service, creating it on first use.
func (sb *ServiceBreakers) Get(service string) *CircuitBreaker {
	if cb, ok := sb.breakers.Load(service); ok {
		return cb.(*CircuitBreaker)
	}
	cfg := sb.cfg
	cfg.Name = service
	cb, _ := sb.breakers.LoadOrStore(service, NewCircuitBreaker(cfg))
	return cb.(*CircuitBreaker)
}
