// Package pool recycles timers for short waits that repeat many times a
// second, such as a single byte read on an in-memory transport.
package pool

import (
	"sync"
	"time"
)

var timers sync.Pool

// GetTimer returns a timer that fires after d, reusing a pooled one if available.
//
// Return it with PutTimer once the wait is over.
func GetTimer(d time.Duration) *time.Timer {
	t, ok := timers.Get().(*time.Timer)
	if !ok {
		return time.NewTimer(d)
	}

	// Stop and Reset discard an unreceived expiry, so t.C starts empty.
	t.Reset(d)

	return t
}

// PutTimer stops t and returns it to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	t.Stop()
	timers.Put(t)
}
