// Package feed owns the request lifecycle for earthquake feed fetches:
// cache lookup, single-flight cancellation, error classification, and
// normalization.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/quakewatch/internal/adapter/usgs"
	"github.com/couchcryptid/quakewatch/internal/cache"
	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/observability"
)

// Fetcher downloads the raw feed for a time window.
type Fetcher interface {
	FetchFeed(ctx context.Context, w domain.TimeWindow) (domain.FeatureCollection, error)
}

// Outcome labels for the fetch_requests_total metric.
const (
	outcomeSuccess   = "success"
	outcomeCancelled = "cancelled"
)

// inflight is the cancellation handle of the one network fetch a Manager
// allows at a time.
type inflight struct {
	window domain.TimeWindow
	cancel context.CancelFunc
}

// Manager serves cached results, and otherwise runs at most one network
// fetch at a time. Starting a fetch cancels the previous one regardless of
// window. Managers sharing a WindowCache never cancel each other.
type Manager struct {
	fetcher Fetcher
	cache   *cache.WindowCache
	timeout time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	current *inflight
}

// NewManager creates a Manager. A timeout of zero leaves the deadline to the
// fetcher's transport.
func NewManager(f Fetcher, c *cache.WindowCache, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		fetcher: f,
		cache:   c,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch returns the normalized earthquakes for w, sorted by magnitude
// descending. A fresh cache entry is returned without touching the network.
//
// A fetch that is cancelled, whether superseded by a newer Fetch, stopped by
// CancelCurrent, or abandoned by the caller's ctx, returns an empty slice and
// a nil error. Every other failure is a *domain.FetchError.
func (m *Manager) Fetch(ctx context.Context, w domain.TimeWindow) ([]domain.Earthquake, error) {
	if data, ok := m.cache.Get(w); ok {
		m.metrics.CacheLookups.WithLabelValues(string(w), "hit").Inc()
		m.metrics.FetchRequests.WithLabelValues(string(w), outcomeSuccess).Inc()
		m.logger.Debug("serving from cache", "window", w, "count", len(data))
		return data, nil
	}
	m.metrics.CacheLookups.WithLabelValues(string(w), "miss").Inc()
	return m.fetchNetwork(ctx, w)
}

// ClearCacheAndRefetch empties the shared cache and always goes to the network.
func (m *Manager) ClearCacheAndRefetch(ctx context.Context, w domain.TimeWindow) ([]domain.Earthquake, error) {
	m.cache.Clear()
	m.logger.Info("cache cleared", "window", w)
	return m.fetchNetwork(ctx, w)
}

// CancelCurrent aborts the in-flight fetch, if any. It is safe to call at
// any time and more than once.
func (m *Manager) CancelCurrent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.current.cancel()
	m.current = nil
}

func (m *Manager) fetchNetwork(ctx context.Context, w domain.TimeWindow) ([]domain.Earthquake, error) {
	reqCtx, handle, ok := m.begin(ctx, w)
	defer m.settle(handle)
	if !ok {
		return m.cancelled(w)
	}

	coll, err := m.fetcher.FetchFeed(reqCtx, w)
	if err != nil {
		if m.superseded(reqCtx, handle) || errors.Is(err, context.Canceled) {
			return m.cancelled(w)
		}
		fe := classify(err)
		m.metrics.FetchRequests.WithLabelValues(string(w), string(fe.Kind)).Inc()
		m.logger.Error("feed fetch failed", "window", w, "kind", fe.Kind, "error", err)
		return nil, fe
	}

	quakes, dropped := domain.NormalizeWithStats(coll.Features)
	if dropped > 0 {
		m.metrics.RecordsDropped.Add(float64(dropped))
		m.logger.Debug("dropped invalid records", "window", w, "dropped", dropped)
	}

	if !m.commit(reqCtx, handle, w, quakes) {
		return m.cancelled(w)
	}
	m.metrics.FetchRequests.WithLabelValues(string(w), outcomeSuccess).Inc()
	m.logger.Info("feed fetched", "window", w, "count", len(quakes))
	return quakes, nil
}

// begin cancels any previous fetch and installs a handle for a new one. It
// reports false, leaving the current handle alone, when ctx was already
// cancelled: a caller that has been replaced must not cancel its replacement.
func (m *Manager) begin(ctx context.Context, w domain.TimeWindow) (context.Context, *inflight, bool) {
	var (
		reqCtx context.Context
		cancel context.CancelFunc
	)
	if m.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, m.timeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}
	handle := &inflight{window: w, cancel: cancel}

	m.mu.Lock()
	defer m.mu.Unlock()
	if errors.Is(reqCtx.Err(), context.Canceled) {
		return reqCtx, handle, false
	}
	if m.current != nil {
		m.logger.Debug("superseding in-flight fetch", "previous", m.current.window, "window", w)
		m.metrics.FetchSuperseded.Inc()
		m.current.cancel()
	}
	m.current = handle
	return reqCtx, handle, true
}

// superseded reports whether handle lost its slot or its context was cancelled.
func (m *Manager) superseded(reqCtx context.Context, handle *inflight) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != handle || errors.Is(reqCtx.Err(), context.Canceled)
}

// commit caches quakes and releases the slot if handle still holds it. The
// check and the write happen under one lock, so a fetch superseded at any
// point before commit neither writes the cache nor returns data.
func (m *Manager) commit(reqCtx context.Context, handle *inflight, w domain.TimeWindow, quakes []domain.Earthquake) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != handle || errors.Is(reqCtx.Err(), context.Canceled) {
		return false
	}
	m.cache.Put(w, quakes)
	m.current = nil
	return true
}

// settle releases the handle. A stale handle never clears a newer one.
func (m *Manager) settle(handle *inflight) {
	handle.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == handle {
		m.current = nil
	}
}

func (m *Manager) cancelled(w domain.TimeWindow) ([]domain.Earthquake, error) {
	m.metrics.FetchRequests.WithLabelValues(string(w), outcomeCancelled).Inc()
	m.logger.Debug("fetch cancelled", "window", w)
	return []domain.Earthquake{}, nil
}

// classify maps a fetch error to the user-facing error kinds.
func classify(err error) *domain.FetchError {
	var se *usgs.StatusError
	if errors.As(err, &se) {
		return domain.NewStatusError(se.Code, err)
	}
	return domain.NewNetworkError(err)
}

// Factory builds Managers that share one fetcher and cache. Each client
// gets its own Manager so clients never cancel each other.
type Factory struct {
	fetcher Fetcher
	cache   *cache.WindowCache
	timeout time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFactory creates a Factory. See NewManager for the timeout semantics.
func NewFactory(f Fetcher, c *cache.WindowCache, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Factory {
	return &Factory{fetcher: f, cache: c, timeout: timeout, metrics: metrics, logger: logger}
}

// NewManager returns a Manager with no fetch in flight.
func (f *Factory) NewManager() *Manager {
	return NewManager(f.fetcher, f.cache, f.timeout, f.metrics, f.logger)
}
