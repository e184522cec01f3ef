package httpcache

import (
	"context"
	"net/http"
)

// Transport is an http.RoundTripper that wraps a CachingExecutor, giving
// callers the familiar drop-in net/http integration while the executor
// carries all RFC 9111 decision logic. Grounded on the teacher's
// Transport/NewTransport/Client surface (httpcache.go).
type Transport struct {
	Underlying http.RoundTripper
	Executor   *CachingExecutor

	// Resilience, if set, wraps the Proceed capability built from
	// Underlying before each Execute call. It lets an external decorator
	// (e.g. wrapper/resilience's retry/circuit-breaker policies) compose
	// with the executor's origin call without this package depending on
	// that decorator's library; see WithResilience.
	Resilience func(Proceed) Proceed
}

// NewTransport returns a Transport backed by store, using sensible
// defaults for every other collaborator; apply opts to customize it.
func NewTransport(store Store, opts ...Option) (*Transport, error) {
	clock := SystemClock()
	t := &Transport{
		Executor: &CachingExecutor{
			Cache:         &HttpCache{Store: store, Resources: NewMemResourceFactory()},
			Clock:         clock,
			Metrics:       noopCollector{},
			Resources:     NewMemResourceFactory(),
			MaxObjectSize: 8 << 20,
			RequestCompliance:    RequestCompliance{},
			ResponseCompliance:   ResponseCompliance{Clock: clock},
			RequestCacheability:  RequestCacheability{},
			ResponseCacheability: ResponseCacheability{},
			Suitability:          SuitabilityChecker{},
			ConditionalBuilder:    ConditionalRequestBuilder{},
			Generator:             ResponseGenerator{Clock: clock},
			Validity:              ValidityPolicy{Clock: clock},
		},
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	t.Executor.ResponseCacheability.SharedCache = t.Executor.SharedCache
	t.Executor.Validity.SharedCache = t.Executor.SharedCache
	return t, nil
}

// Client returns an *http.Client using this Transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper by delegating to the executor,
// with the underlying transport as its Proceed capability.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	underlying := t.Underlying
	if underlying == nil {
		underlying = http.DefaultTransport
	}
	var proceed Proceed = func(ctx context.Context, r *http.Request) (*http.Response, error) {
		return underlying.RoundTrip(r.WithContext(ctx))
	}
	if t.Resilience != nil {
		proceed = t.Resilience(proceed)
	}
	ec := &ExecContext{}
	return t.Executor.Execute(req.Context(), req, Scope{Route: req.URL.Path}, proceed, ec)
}
