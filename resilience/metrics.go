package resilience

import (
	"github.com/itsneelabh/storefront/core"
)

// Metric names emitted by the breaker
const (
	MetricCircuitBreakerSuccess     = "storefront.circuit_breaker.success"
	MetricCircuitBreakerFailure     = "storefront.circuit_breaker.failure"
	MetricCircuitBreakerRejected    = "storefront.circuit_breaker.rejected"
	MetricCircuitBreakerStateChange = "storefront.circuit_breaker.state_change"
)

// TelemetryMetrics implements MetricsCollector on a core.Telemetry, so the
// breaker reports through whichever telemetry provider is configured.
type TelemetryMetrics struct {
	telemetry core.Telemetry
}

// NewTelemetryMetrics creates a collector; a nil telemetry records nothing.
func NewTelemetryMetrics(t core.Telemetry) *TelemetryMetrics {
	if t == nil {
		t = &core.NoOpTelemetry{}
	}
	return &TelemetryMetrics{telemetry: t}
}

func (m *TelemetryMetrics) RecordSuccess(name string) {
	m.telemetry.RecordMetric(MetricCircuitBreakerSuccess, 1, map[string]string{
		"circuit_breaker": name,
	})
}

func (m *TelemetryMetrics) RecordFailure(name string, errorType string) {
	m.telemetry.RecordMetric(MetricCircuitBreakerFailure, 1, map[string]string{
		"circuit_breaker": name,
		"error_type":      errorType,
	})
}

func (m *TelemetryMetrics) RecordStateChange(name string, from, to string) {
	m.telemetry.RecordMetric(MetricCircuitBreakerStateChange, 1, map[string]string{
		"circuit_breaker": name,
		"from_state":      from,
		"to_state":        to,
	})
}

func (m *TelemetryMetrics) RecordRejection(name string) {
	m.telemetry.RecordMetric(MetricCircuitBreakerRejected, 1, map[string]string{
		"circuit_breaker": name,
	})
}
