package httpcache

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Transport at construction time. Grounded on the
// teacher's TransportOption functional-options pattern (options.go).
type Option func(*Transport) error

// WithResourceFactory overrides the ResourceFactory used to materialize
// and store response bodies. Default: an in-memory, reference-counted
// factory.
func WithResourceFactory(f ResourceFactory) Option {
	return func(t *Transport) error {
		t.Executor.Resources = f
		t.Executor.Cache.Resources = f
		return nil
	}
}

// WithMaxObjectSize sets the upper bound, in bytes, for a response body
// the cache will store; larger bodies are passed through uncached.
// Default: 8 MiB.
func WithMaxObjectSize(bytes int64) Option {
	return func(t *Transport) error {
		if bytes < 0 {
			return fmt.Errorf("httpcache: max object size must be non-negative")
		}
		t.Executor.MaxObjectSize = bytes
		return nil
	}
}

// WithSharedCache enables shared-cache semantics: s-maxage and
// proxy-revalidate are honored, and private/Authorization responses are
// not stored. Default: false (private cache).
func WithSharedCache(shared bool) Option {
	return func(t *Transport) error {
		t.Executor.SharedCache = shared
		t.Executor.ResponseCacheability.SharedCache = shared
		t.Executor.Validity.SharedCache = shared
		return nil
	}
}

// With303CachingEnabled permits caching of 303 See Other responses, which
// are not stored by default.
func With303CachingEnabled(enabled bool) Option {
	return func(t *Transport) error {
		t.Executor.ResponseCacheability.Cache303 = enabled
		return nil
	}
}

// WithHTTP10QueryHeuristicDisabled disables heuristic freshness for
// HTTP/1.0 responses whose request URI carries a query string, per RFC
// 9111 Section 4.2.2's guidance for legacy origins.
func WithHTTP10QueryHeuristicDisabled(disabled bool) Option {
	return func(t *Transport) error {
		t.Executor.Validity.DisableHTTP10QueryHeuristic = disabled
		return nil
	}
}

// WithWeakETagOnPutDeleteAllowed relaxes request compliance to permit a
// weak entity-tag in If-Match/If-None-Match on PUT/DELETE, which this
// cache otherwise treats as fatally noncompliant.
func WithWeakETagOnPutDeleteAllowed(allowed bool) Option {
	return func(t *Transport) error {
		t.Executor.RequestCompliance.WeakETagOnPutDeleteAllowed = allowed
		return nil
	}
}

// WithAsyncRevalidator installs a bounded worker pool for background
// stale-while-revalidate refreshes. Without one, revalidation is always
// synchronous even when stale-while-revalidate permits otherwise.
func WithAsyncRevalidator(workers int, timeout time.Duration) Option {
	return func(t *Transport) error {
		t.Executor.Async = NewAsyncRevalidator(workers, timeout)
		return nil
	}
}

// WithClock overrides the time source used for freshness and age
// calculations. Default: the system clock.
func WithClock(c Clock) Option {
	return func(t *Transport) error {
		t.Executor.Clock = c
		t.Executor.Validity.Clock = c
		t.Executor.ResponseCompliance.Clock = c
		t.Executor.Generator.Clock = c
		return nil
	}
}

// WithLogger overrides the package-wide structured logger used for
// warnings (malformed directives, storage failures, dropped async jobs).
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) error {
		SetLogger(l)
		return nil
	}
}

// WithMetricsCollector installs an observer for cache outcomes, store
// operation latency, and stale-serve events. Default: a no-op collector.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(t *Transport) error {
		t.Executor.Metrics = m
		return nil
	}
}

// WithProductToken sets the "<product>/<release>" fragment included in
// this cache's Via header entry. Default: "httpcache/1".
func WithProductToken(token string) Option {
	return func(t *Transport) error {
		setViaProductToken(token)
		return nil
	}
}

// WithCacheKeyHeaders widens the cache key to additionally include the
// named request headers (canonicalized), so distinct header values (e.g.
// Authorization per user, Accept-Language per locale) produce distinct
// fingerprints even absent a matching Vary. Grounded on the teacher's
// CacheKeyHeaders/WithCacheKeyHeaders.
func WithCacheKeyHeaders(headers []string) Option {
	return func(t *Transport) error {
		setCacheKeyHeaders(headers)
		return nil
	}
}

// WithUnderlyingTransport sets the http.RoundTripper used to perform the
// actual wire request. Default: http.DefaultTransport.
func WithUnderlyingTransport(rt http.RoundTripper) Option {
	return func(t *Transport) error {
		t.Underlying = rt
		return nil
	}
}

// WithResilience installs a decorator around the Proceed capability built
// from the underlying transport on every RoundTrip, without this package
// depending on whatever retry/circuit-breaker library wrap is built from.
// See wrapper/resilience for a failsafe-go-backed wrap.
func WithResilience(wrap func(Proceed) Proceed) Option {
	return func(t *Transport) error {
		t.Resilience = wrap
		return nil
	}
}
