// Package resilience wraps an httpcache.Proceed with failsafe-go retry and
// circuit-breaker policies, so transport-level resilience composes with the
// executor's single conditional-retry-on-too-old-date without the core
// package depending on failsafe-go. Grounded on the teacher's resilience.go
// (executeWithResilience, RetryPolicyBuilder, CircuitBreakerBuilder),
// restated as a decorator over Proceed instead of a Transport field.
package resilience

import (
	"context"
	"net/http"
	"time"

	"github.com/arkhollow/httpcache"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Config holds the resilience policies to wrap a Proceed with. Both fields
// are optional; a nil policy is simply not applied.
type Config struct {
	// RetryPolicy configures retry behavior using failsafe-go. If nil,
	// retry is disabled.
	RetryPolicy retrypolicy.RetryPolicy[*http.Response]

	// CircuitBreaker configures circuit breaker behavior using
	// failsafe-go. If nil, circuit breaking is disabled.
	CircuitBreaker circuitbreaker.CircuitBreaker[*http.Response]
}

// RetryPolicyBuilder returns a pre-configured retry policy builder: retries
// on network errors and 5xx responses, up to 3 retries, with exponential
// backoff from 100ms to 10s. Callers may further customize before Build().
func RetryPolicyBuilder() retrypolicy.Builder[*http.Response] {
	return retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithMaxRetries(3).
		WithBackoff(100*time.Millisecond, 10*time.Second)
}

// CircuitBreakerBuilder returns a pre-configured circuit breaker builder:
// opens after 5 consecutive failures (network error or 5xx), half-opens
// after 60s, and closes again after 2 consecutive successes.
func CircuitBreakerBuilder() circuitbreaker.Builder[*http.Response] {
	return circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(60 * time.Second)
}

func policiesFor(cfg Config) []failsafe.Policy[*http.Response] {
	var policies []failsafe.Policy[*http.Response]
	if cfg.RetryPolicy != nil {
		policies = append(policies, cfg.RetryPolicy)
	}
	if cfg.CircuitBreaker != nil {
		policies = append(policies, cfg.CircuitBreaker)
	}
	return policies
}

// Wrap returns a Proceed that runs next under cfg's policies. Retry, if
// configured, is the outermost policy; the circuit breaker is innermost, so
// every retry attempt passes through it.
// With no policies configured, Wrap returns next unchanged.
func Wrap(next httpcache.Proceed, cfg Config) httpcache.Proceed {
	policies := policiesFor(cfg)
	if len(policies) == 0 {
		return next
	}

	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return failsafe.With(policies...).
			WithContext(ctx).
			Get(func() (*http.Response, error) {
				return next(ctx, req)
			})
	}
}

// roundTripper adapts Wrap to http.RoundTripper, so it can be installed as
// a Transport's Underlying via httpcache.WithUnderlyingTransport.
type roundTripper struct {
	next httpcache.Proceed
}

func (r *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return r.next(req.Context(), req)
}

// WrapRoundTripper wraps next with cfg's policies and returns the result as
// an http.RoundTripper, suitable for httpcache.WithUnderlyingTransport.
func WrapRoundTripper(next http.RoundTripper, cfg Config) http.RoundTripper {
	proceed := Wrap(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return next.RoundTrip(req.WithContext(ctx))
	}, cfg)
	return &roundTripper{next: proceed}
}
