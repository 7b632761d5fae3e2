package purchase

import "sync/atomic"

// Lock is the process-wide single-flight purchase guard. Acquisition is
// try-only: a concurrent caller is rejected immediately, never queued.
type Lock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if free and reports whether it succeeded.
func (l *Lock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock.
func (l *Lock) Release() {
	l.held.Store(false)
}

// Held reports whether a purchase is currently in flight.
func (l *Lock) Held() bool {
	return l.held.Load()
}
