package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itsneelabh/storefront/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MetricsCollector interface for circuit breaker metrics
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name string, errorType string)
	RecordStateChange(name string, from, to string)
	RecordRejection(name string)
}

// noopMetrics is a no-op metrics implementation
type noopMetrics struct{}

func (n *noopMetrics) RecordSuccess(name string)                      {}
func (n *noopMetrics) RecordFailure(name string, errorType string)    {}
func (n *noopMetrics) RecordStateChange(name string, from, to string) {}
func (n *noopMetrics) RecordRejection(name string)                    {}

// ErrorClassifier determines which errors should count toward the failure threshold
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts infrastructure errors, not caller mistakes
// or cancellations.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if core.IsConfigurationError(err) || core.IsStateError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	Name string

	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int

	// SleepWindow is how long the circuit stays open before probing
	SleepWindow time.Duration

	// HalfOpenRequests is the number of probe requests allowed while half-open;
	// that many consecutive successes close the circuit again
	HalfOpenRequests int

	ErrorClassifier ErrorClassifier
	Logger          core.Logger
	Metrics         MetricsCollector
}

// DefaultConfig returns the default breaker settings
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "default",
		FailureThreshold: 5,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 1,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
		Metrics:          &noopMetrics{},
	}
}

// FromConfig converts the client configuration section into breaker settings.
func FromConfig(name string, cfg core.CircuitBreakerConfig) *CircuitBreakerConfig {
	c := DefaultConfig()
	c.Name = name
	if cfg.Threshold > 0 {
		c.FailureThreshold = cfg.Threshold
	}
	if cfg.Timeout > 0 {
		c.SleepWindow = cfg.Timeout
	}
	if cfg.HalfOpenRequests > 0 {
		c.HalfOpenRequests = cfg.HalfOpenRequests
	}
	return c
}

// Validate checks the configuration
func (c *CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1: %w", core.ErrInvalidConfiguration)
	}
	if c.SleepWindow <= 0 {
		return fmt.Errorf("sleep window must be positive: %w", core.ErrInvalidConfiguration)
	}
	if c.HalfOpenRequests < 0 {
		return fmt.Errorf("half-open requests must not be negative: %w", core.ErrInvalidConfiguration)
	}
	return nil
}

// CircuitBreaker fails fast once a dependency has failed FailureThreshold
// times in a row.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu                  sync.Mutex
	state               CircuitState
	stateChangedAt      time.Time
	consecutiveFailures int
	halfOpenInFlight    int
	halfOpenSuccesses   int

	totalExecutions    uint64
	rejectedExecutions uint64

	listeners []func(name string, from, to CircuitState)

	now func() time.Time
}

// NewCircuitBreaker creates a circuit breaker; a nil config uses DefaultConfig.
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &noopMetrics{}
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = 1
	}

	cb := &CircuitBreaker{
		config:         config,
		state:          StateClosed,
		stateChangedAt: time.Now(),
		now:            time.Now,
	}

	config.Logger.Debug("Circuit breaker created", map[string]interface{}{
		"operation":          "circuit_breaker_created",
		"name":               config.Name,
		"failure_threshold":  config.FailureThreshold,
		"sleep_window_ms":    config.SleepWindow.Milliseconds(),
		"half_open_requests": config.HalfOpenRequests,
	})

	return cb, nil
}

// SetLogger sets the logger, tagging it with the resilience component.
func (cb *CircuitBreaker) SetLogger(logger core.Logger) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.config.Logger = core.ComponentLogger(logger, "storefront/resilience")
}

// SetMetrics sets the metrics collector.
func (cb *CircuitBreaker) SetMetrics(metrics MetricsCollector) {
	if metrics == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.config.Metrics = metrics
}

// Execute runs fn with circuit breaker protection. It returns an error
// wrapping core.ErrCircuitOpen without calling fn when the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	halfOpen, ok := cb.allow()
	if !ok {
		cb.config.Metrics.RecordRejection(cb.config.Name)
		return fmt.Errorf("%s: %w", cb.config.Name, core.ErrCircuitOpen)
	}

	err := fn()
	cb.record(err, halfOpen)
	return err
}

// CanExecute reports whether a request would currently be let through.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advanceLocked()
	switch cb.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		return cb.halfOpenInFlight < cb.config.HalfOpenRequests
	default:
		return true
	}
}

func (cb *CircuitBreaker) allow() (halfOpen bool, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advanceLocked()
	cb.totalExecutions++

	switch cb.state {
	case StateOpen:
		cb.rejectedExecutions++
		return false, false
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.config.HalfOpenRequests {
			cb.rejectedExecutions++
			return true, false
		}
		cb.halfOpenInFlight++
		return true, true
	default:
		return false, true
	}
}

// advanceLocked moves an open circuit to half-open once the sleep window passed.
func (cb *CircuitBreaker) advanceLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.stateChangedAt) >= cb.config.SleepWindow {
		cb.transitionLocked(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) record(err error, halfOpen bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if halfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}

	failed := cb.config.ErrorClassifier(err)
	if !failed {
		cb.config.Metrics.RecordSuccess(cb.config.Name)
		cb.consecutiveFailures = 0
		if cb.state == StateHalfOpen {
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.config.HalfOpenRequests {
				cb.transitionLocked(StateClosed)
			}
		}
		return
	}

	cb.config.Metrics.RecordFailure(cb.config.Name, fmt.Sprintf("%T", err))
	cb.consecutiveFailures++

	switch cb.state {
	case StateHalfOpen:
		cb.transitionLocked(StateOpen)
	case StateClosed:
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	}
}

func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.stateChangedAt = cb.now()
	cb.halfOpenInFlight = 0
	cb.halfOpenSuccesses = 0
	if to == StateClosed {
		cb.consecutiveFailures = 0
	}

	logFields := map[string]interface{}{
		"operation":            "circuit_breaker_state_change",
		"name":                 cb.config.Name,
		"from":                 from.String(),
		"to":                   to.String(),
		"consecutive_failures": cb.consecutiveFailures,
	}
	if to == StateOpen {
		cb.config.Logger.Warn("Circuit breaker opened", logFields)
	} else {
		cb.config.Logger.Info("Circuit breaker state changed", logFields)
	}

	cb.config.Metrics.RecordStateChange(cb.config.Name, from.String(), to.String())
	for _, listener := range cb.listeners {
		listener(cb.config.Name, from, to)
	}
}

// AddStateChangeListener registers a callback invoked on every transition.
// Listeners run while the breaker lock is held and must not call back into it.
func (cb *CircuitBreaker) AddStateChangeListener(listener func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, listener)
}

// GetState returns the current state name
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advanceLocked()
	return cb.state.String()
}

// GetMetrics returns a snapshot of the breaker counters
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]interface{}{
		"name":                 cb.config.Name,
		"state":                cb.state.String(),
		"consecutive_failures": cb.consecutiveFailures,
		"total_executions":     cb.totalExecutions,
		"rejected_executions":  cb.rejectedExecutions,
		"state_changed_at":     cb.stateChangedAt,
	}
}

// Reset closes the circuit and clears the failure count
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.consecutiveFailures = 0
}
