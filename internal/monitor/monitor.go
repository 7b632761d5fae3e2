// Package monitor implements the marketplace polling loop that detects
// newly appeared or repriced listings exactly once each.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vkoval/fragsnipe/internal/common"
	"github.com/vkoval/fragsnipe/internal/model"
	"github.com/vkoval/fragsnipe/internal/service"
)

// OnNewListing is invoked synchronously, in source order, once per novel
// listing key within a session. It must return before the next listing
// in the tick is considered.
type OnNewListing func(sess *Session, listing model.Listing)

// Session is the state of one monitoring run. It is created by Start and
// torn down by Stop; the seen set never survives a session.
type Session struct {
	interval   time.Duration
	seen       map[model.ListingKey]struct{}
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	shouldStop atomic.Bool
}

// RequestStop asks the session to end at the next tick boundary. It is
// how the purchase pipeline stops monitoring on insufficient funds.
func (s *Session) RequestStop() {
	s.shouldStop.Store(true)
}

// StopRequested reports whether a cooperative stop has been requested.
func (s *Session) StopRequested() bool {
	return s.shouldStop.Load()
}

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Monitor owns at most one active polling session system-wide.
type Monitor struct {
	mu      sync.Mutex
	session *Session
}

// New creates an idle monitor.
func New() *Monitor {
	return &Monitor{}
}

// Running reports whether a session's tick loop is still alive.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && !m.session.finished()
}

// Start launches the periodic polling task and returns immediately.
// It fails with ErrAlreadyRunning while a previous session is alive.
func (m *Monitor) Start(ctx context.Context, source service.ListingSource, interval time.Duration, onNew OnNewListing) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && !m.session.finished() {
		return nil, common.ErrAlreadyRunning
	}

	sess := &Session{
		interval: interval,
		seen:     make(map[model.ListingKey]struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.session = sess

	go m.run(ctx, sess, source, onNew)

	slog.Info("Monitor started", "kind", source.Kind(), "interval", interval)

	return sess, nil
}

// Stop signals cancellation, waits for the in-flight tick to finish, and
// clears monitor state. The session stays registered until its loop has
// exited, so a concurrent Start cannot overlap with a draining session.
// Calling Stop when not running is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.session
	if sess == nil {
		return
	}

	sess.stopOnce.Do(func() { close(sess.stop) })
	<-sess.done
	m.session = nil

	slog.Info("Monitor stopped")
}

func (m *Monitor) run(ctx context.Context, sess *Session, source service.ListingSource, onNew OnNewListing) {
	defer close(sess.done)

	for {
		select {
		case <-sess.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if sess.StopRequested() {
			slog.Info("Monitor stopping on request", "kind", source.Kind())
			return
		}

		tick(ctx, sess, source, onNew)

		// Fixed-delay schedule: sleep a flat interval after the tick body,
		// so the actual period is interval plus tick duration.
		select {
		case <-sess.stop:
			return
		case <-ctx.Done():
			return
		case <-time.After(sess.interval):
		}
	}
}

// tick fetches one snapshot and reports every listing whose key has not
// been seen this session. Errors are logged and swallowed so the loop
// survives transient source failures; a failed fetch never clears the
// seen set.
func tick(ctx context.Context, sess *Session, source service.ListingSource, onNew OnNewListing) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Monitor tick panicked", "panic", r)
		}
	}()

	listings, err := source.Fetch(ctx)
	if err != nil {
		slog.Error("Monitor fetch failed", "kind", source.Kind(), "error", err)
		return
	}

	newItems := 0
	for _, listing := range listings {
		key := listing.Key()
		if _, ok := sess.seen[key]; ok {
			continue
		}
		sess.seen[key] = struct{}{}
		newItems++
		onNew(sess, listing)
	}

	if newItems > 0 {
		slog.Info("Found new listings", "kind", source.Kind(), "count", newItems)
	}
}
