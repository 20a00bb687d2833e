// Package dashboard holds the per-client presentation state of the
// earthquake dashboard and turns user intents into feed fetches.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/couchcryptid/quakewatch/internal/domain"
)

// Magnitude floor bounds accepted by ChangeMagnitudeFloor.
const (
	MinMagnitudeFloor = 0.0
	MaxMagnitudeFloor = 10.0
)

// Fetcher is the subset of feed.Manager a Session drives.
type Fetcher interface {
	Fetch(ctx context.Context, w domain.TimeWindow) ([]domain.Earthquake, error)
	ClearCacheAndRefetch(ctx context.Context, w domain.TimeWindow) ([]domain.Earthquake, error)
	CancelCurrent()
}

// Session is one client's dashboard. Each fetch takes a sequence number and
// only the newest fetch may apply its result. Intents are safe to call from
// multiple goroutines.
type Session struct {
	fetcher Fetcher
	notify  func(View)
	logger  *slog.Logger

	mu        sync.Mutex
	window    domain.TimeWindow
	floor     float64
	data      []domain.Earthquake
	loading   bool
	err       error
	seq       uint64
	cancelRun context.CancelFunc
	closed    bool
}

// Pending is a fetch that has taken its place in the session's order but has
// not run yet. Run it on any goroutine; a nil Pending does nothing.
type Pending struct {
	s      *Session
	seq    uint64
	window domain.TimeWindow
	ctx    context.Context
	cancel context.CancelFunc
	fetch  fetchFunc
}

// View returns the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Load fetches the current window. It is the initial load of a new session.
func (s *Session) Load(ctx context.Context) {
	s.StartLoad(ctx).Run()
}

// StartLoad orders the initial load without running it.
func (s *Session) StartLoad(ctx context.Context) *Pending {
	return s.start(ctx, "", s.fetcher.Fetch)
}

// ChangeTimeWindow switches to w and fetches it.
func (s *Session) ChangeTimeWindow(ctx context.Context, w domain.TimeWindow) error {
	p, err := s.StartTimeWindow(ctx, w)
	if err != nil {
		return err
	}
	p.Run()
	return nil
}

// StartTimeWindow switches to w and orders its fetch. The window and the
// fetch's place in line are fixed before StartTimeWindow returns, so intents
// applied in arrival order resolve in arrival order however their fetches
// are scheduled.
func (s *Session) StartTimeWindow(ctx context.Context, w domain.TimeWindow) (*Pending, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("unknown time window %q", w)
	}
	return s.start(ctx, w, s.fetcher.Fetch), nil
}

// ChangeMagnitudeFloor filters the loaded data. It never touches the network.
func (s *Session) ChangeMagnitudeFloor(v float64) error {
	if math.IsNaN(v) || v < MinMagnitudeFloor || v > MaxMagnitudeFloor {
		return fmt.Errorf("magnitude floor %v out of range [%v, %v]", v, MinMagnitudeFloor, MaxMagnitudeFloor)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.floor = v
	s.notify(s.viewLocked())
	return nil
}

// Refresh drops the shared cache and refetches the current window.
func (s *Session) Refresh(ctx context.Context) {
	s.StartRefresh(ctx).Run()
}

// StartRefresh orders a cache-bypassing refetch without running it.
func (s *Session) StartRefresh(ctx context.Context) *Pending {
	return s.start(ctx, "", s.fetcher.ClearCacheAndRefetch)
}

// Retry re-runs the fetch for the current window after an error.
func (s *Session) Retry(ctx context.Context) {
	s.StartRetry(ctx).Run()
}

// StartRetry orders a retry without running it.
func (s *Session) StartRetry(ctx context.Context) *Pending {
	return s.start(ctx, "", s.fetcher.Fetch)
}

// DismissError clears the error banner and keeps the last good data.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err == nil {
		return
	}
	s.err = nil
	s.notify(s.viewLocked())
}

// Teardown cancels any in-flight fetch. Results that arrive afterwards are
// ignored and no further views are emitted.
func (s *Session) Teardown() {
	s.mu.Lock()
	s.closed = true
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.mu.Unlock()
	s.fetcher.CancelCurrent()
}

type fetchFunc func(ctx context.Context, w domain.TimeWindow) ([]domain.Earthquake, error)

// start takes the next sequence number and cancels the fetch it replaces.
// A non-empty w switches the window in the same step. It returns nil once
// the session is closed.
func (s *Session) start(ctx context.Context, w domain.TimeWindow, fetch fetchFunc) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.cancelRun != nil {
		s.cancelRun()
	}
	if w != "" {
		s.window = w
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.seq++
	s.loading = true
	s.err = nil
	s.notify(s.viewLocked())

	return &Pending{s: s, seq: s.seq, window: s.window, ctx: runCtx, cancel: cancel, fetch: fetch}
}

// Run performs the fetch and applies its result if it is still the newest.
func (p *Pending) Run() {
	if p == nil {
		return
	}
	defer p.cancel()
	s := p.s

	quakes, err := p.fetch(p.ctx, p.window)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || p.seq != s.seq {
		s.logger.Debug("discarding stale result", "window", p.window, "seq", p.seq)
		return
	}
	s.cancelRun = nil
	s.loading = false
	switch {
	case p.ctx.Err() != nil:
		// Cancelled fetches resolve empty; keep what we had.
	case err != nil:
		s.err = err
	default:
		s.data = quakes
	}
	s.notify(s.viewLocked())
}

func (s *Session) viewLocked() View {
	return NewView(s.window, s.floor, s.data, s.loading, s.err)
}
