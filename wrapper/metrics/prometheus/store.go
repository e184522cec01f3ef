package prometheus

import (
	"context"
	"time"

	"github.com/arkhollow/httpcache"
)

const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultSuccess = "success"
	resultError   = "error"
)

// InstrumentedStore wraps an httpcache.Store, recording every Get/Set/Delete
// through a MetricsCollector. The operation label is "<backend>:<verb>" so a
// single Collector can serve several backends at once.
type InstrumentedStore struct {
	underlying httpcache.Store
	collector  httpcache.MetricsCollector
	backend    string
}

// NewInstrumentedStore wraps store so its operations are recorded against
// collector under the given backend name (e.g. "redis", "disk").
func NewInstrumentedStore(store httpcache.Store, backend string, collector httpcache.MetricsCollector) *InstrumentedStore {
	return &InstrumentedStore{underlying: store, collector: collector, backend: backend}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := s.underlying.Get(ctx, key)
	result := resultMiss
	switch {
	case err != nil:
		result = resultError
	case ok:
		result = resultHit
	}
	s.collector.RecordStoreOperation(s.backend+":get", result, time.Since(start))
	return value, ok, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.underlying.Set(ctx, key, value)
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	s.collector.RecordStoreOperation(s.backend+":set", result, time.Since(start))
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.underlying.Delete(ctx, key)
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	s.collector.RecordStoreOperation(s.backend+":delete", result, time.Since(start))
	return err
}

var _ httpcache.Store = (*InstrumentedStore)(nil)
