package httpcache

import "time"

// MetricsCollector is the backend-agnostic observation point the executor
// calls into; concrete metrics formatting (Prometheus, OpenTelemetry, ...)
// lives outside the core, in wrapper/metrics/*, per spec §1. Grounded on
// the teacher's metrics/metrics.go Collector interface.
type MetricsCollector interface {
	// RecordOutcome records one Execute call's final ResponseStatus and
	// how long the call took end to end.
	RecordOutcome(status ResponseStatus, duration time.Duration)
	// RecordStoreOperation records a Store operation's backend, result
	// ("hit", "miss", "error"), and duration.
	RecordStoreOperation(op, result string, duration time.Duration)
	// RecordStaleServed records that a stale response was returned,
	// tagging why. The executor passes "stale-serve" for every response
	// built from a stale stored entry, an additional "stale-if-error" when
	// that happened after an origin 5xx, and "revalidation-failed" when
	// the origin could not be reached during revalidation.
	RecordStaleServed(reason string)
}

// noopCollector implements MetricsCollector with no-op operations; it is
// the default when no collector is configured, so the common case pays no
// metrics overhead.
type noopCollector struct{}

func (noopCollector) RecordOutcome(ResponseStatus, time.Duration)    {}
func (noopCollector) RecordStoreOperation(string, string, time.Duration) {}
func (noopCollector) RecordStaleServed(string)                       {}

var _ MetricsCollector = noopCollector{}
