package httpcache

import "time"

// Clock is injected into the executor so phase-boundary time reads are
// testable; never read time implicitly inside policy functions. now() is
// captured at three explicit phase boundaries: pre-lookup, pre-proceed, and
// post-proceed.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the default Clock backed by the system wall clock.
func SystemClock() Clock { return systemClock{} }
