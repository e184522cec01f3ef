package httpcache

import (
	"context"
	"sync"
	"time"
)

// AsyncRevalidator runs background revalidation jobs for stale-while-
// revalidate hits, bounded by a fixed worker pool and deduplicated by
// Fingerprint so a hot resource is never revalidated twice concurrently.
// Grounded on the teacher's wrapper/prewarmer PrewarmConcurrentWithCallback
// worker-pool shape.
type AsyncRevalidator struct {
	jobs    chan func(context.Context)
	timeout time.Duration

	mu      sync.Mutex
	inFlight map[Fingerprint]bool

	wg     sync.WaitGroup
	closed chan struct{}
}

// NewAsyncRevalidator starts a pool of workers workers wide. Each job is
// run under a context derived from context.Background(), bounded by
// timeout if non-zero.
func NewAsyncRevalidator(workers int, timeout time.Duration) *AsyncRevalidator {
	if workers <= 0 {
		workers = 1
	}
	r := &AsyncRevalidator{
		jobs:     make(chan func(context.Context), workers*4),
		timeout:  timeout,
		inFlight: map[Fingerprint]bool{},
		closed:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *AsyncRevalidator) worker() {
	defer r.wg.Done()
	for job := range r.jobs {
		ctx := context.Background()
		var cancel context.CancelFunc
		if r.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
		}
		job(ctx)
		if cancel != nil {
			cancel()
		}
	}
}

// Submit enqueues a revalidation of fp using fn, dropping the job silently
// if fp already has a revalidation in flight or the pool's queue is full
// (a missed opportunistic revalidation is not an error: the entry stays
// stale and will be revalidated on its next eligible hit).
func (r *AsyncRevalidator) Submit(fp Fingerprint, fn func(context.Context)) {
	r.mu.Lock()
	if r.inFlight[fp] {
		r.mu.Unlock()
		return
	}
	r.inFlight[fp] = true
	r.mu.Unlock()

	job := func(ctx context.Context) {
		defer func() {
			r.mu.Lock()
			delete(r.inFlight, fp)
			r.mu.Unlock()
		}()
		fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.closed:
		delete(r.inFlight, fp)
		return
	default:
	}
	select {
	case r.jobs <- job:
	default:
		delete(r.inFlight, fp)
		GetLogger().Warn("async revalidation queue full, dropping job", "fingerprint", fp.String())
	}
}

// Close stops accepting new jobs and waits for in-flight workers to drain.
func (r *AsyncRevalidator) Close() {
	r.mu.Lock()
	close(r.closed)
	close(r.jobs)
	r.mu.Unlock()
	r.wg.Wait()
}
