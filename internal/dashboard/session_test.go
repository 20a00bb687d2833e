package dashboard

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/couchcryptid/quakewatch/internal/cache"
	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/feed"
	"github.com/couchcryptid/quakewatch/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	window  domain.TimeWindow
	refetch bool
}

// scriptedFetcher answers per window. A window with a gate blocks until the
// gate is closed.
type scriptedFetcher struct {
	mu        sync.Mutex
	calls     []fetchCall
	cancelled int
	results   map[domain.TimeWindow][]domain.Earthquake
	errs      map[domain.TimeWindow]error
	gates     map[domain.TimeWindow]chan struct{}
	started   chan domain.TimeWindow
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		results: map[domain.TimeWindow][]domain.Earthquake{},
		errs:    map[domain.TimeWindow]error{},
		gates:   map[domain.TimeWindow]chan struct{}{},
		started: make(chan domain.TimeWindow, 8),
	}
}

func (f *scriptedFetcher) answer(w domain.TimeWindow, refetch bool) ([]domain.Earthquake, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{window: w, refetch: refetch})
	gate := f.gates[w]
	f.mu.Unlock()

	f.started <- w
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[w]; err != nil {
		return nil, err
	}
	return f.results[w], nil
}

func (f *scriptedFetcher) Fetch(_ context.Context, w domain.TimeWindow) ([]domain.Earthquake, error) {
	return f.answer(w, false)
}

func (f *scriptedFetcher) ClearCacheAndRefetch(_ context.Context, w domain.TimeWindow) ([]domain.Earthquake, error) {
	return f.answer(w, true)
}

func (f *scriptedFetcher) CancelCurrent() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type viewRecorder struct {
	mu    sync.Mutex
	views []View
}

func (r *viewRecorder) record(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *viewRecorder) last() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

func (r *viewRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func quakes(mags ...float64) []domain.Earthquake {
	out := make([]domain.Earthquake, len(mags))
	for i, m := range mags {
		out[i] = domain.Earthquake{ID: string(rune('a' + i)), Magnitude: m, Place: "Somewhere"}
	}
	return out
}

func newTestSession(f Fetcher) (*Session, *viewRecorder) {
	rec := &viewRecorder{}
	return NewSession(f, rec.record, observability.DiscardLogger()), rec
}

func TestSession_InitialState(t *testing.T) {
	s, rec := newTestSession(newScriptedFetcher())
	v := s.View()

	assert.Equal(t, domain.WindowDay, v.Window)
	assert.Equal(t, "Past Day", v.WindowLabel)
	assert.Zero(t, v.MagnitudeFloor)
	assert.False(t, v.Loading)
	assert.Nil(t, v.Error)
	assert.NotNil(t, v.Earthquakes)
	assert.Zero(t, rec.count())
}

func TestSession_LoadEmitsLoadingThenData(t *testing.T) {
	f := newScriptedFetcher()
	f.results[domain.WindowDay] = quakes(5.2, 3.1, 0.8)
	s, rec := newTestSession(f)

	s.Load(context.Background())

	require.Equal(t, 2, rec.count())
	assert.True(t, rec.views[0].Loading)
	v := rec.last()
	assert.False(t, v.Loading)
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, 3, v.Shown)
	assert.InDelta(t, 5.2, v.Highest, 0)
	assert.Equal(t, "Moderate", v.HighestScale)
}

func TestSession_ChangeMagnitudeFloor_NoNetwork(t *testing.T) {
	f := newScriptedFetcher()
	f.results[domain.WindowDay] = quakes(5.2, 3.1, 0.8)
	s, rec := newTestSession(f)
	s.Load(context.Background())
	calls := f.callCount()

	require.NoError(t, s.ChangeMagnitudeFloor(3.1))
	assert.Equal(t, calls, f.callCount())

	v := rec.last()
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, 2, v.Shown)
	for _, q := range v.Earthquakes {
		assert.GreaterOrEqual(t, q.Magnitude, 3.1)
	}

	require.NoError(t, s.ChangeMagnitudeFloor(9))
	v = rec.last()
	assert.Zero(t, v.Shown)
	assert.Zero(t, v.Highest)
	assert.Empty(t, v.HighestScale)
}

func TestSession_ChangeMagnitudeFloor_Invalid(t *testing.T) {
	s, rec := newTestSession(newScriptedFetcher())
	for _, v := range []float64{-0.1, 10.5, math.NaN()} {
		assert.Error(t, s.ChangeMagnitudeFloor(v))
	}
	assert.Zero(t, rec.count())
}

func TestSession_ChangeTimeWindow(t *testing.T) {
	f := newScriptedFetcher()
	f.results[domain.WindowWeek] = quakes(6.5)
	s, rec := newTestSession(f)

	require.NoError(t, s.ChangeTimeWindow(context.Background(), domain.WindowWeek))
	v := rec.last()
	assert.Equal(t, domain.WindowWeek, v.Window)
	assert.Equal(t, "Past Week", v.WindowLabel)
	assert.Equal(t, 1, v.Total)

	assert.Error(t, s.ChangeTimeWindow(context.Background(), domain.TimeWindow("year")))
	assert.Equal(t, domain.WindowWeek, s.View().Window)
}

func TestSession_ErrorThenDismissKeepsData(t *testing.T) {
	f := newScriptedFetcher()
	f.results[domain.WindowDay] = quakes(2.0, 1.0)
	s, rec := newTestSession(f)
	s.Load(context.Background())

	f.mu.Lock()
	f.errs[domain.WindowDay] = domain.NewStatusError(500, nil)
	f.mu.Unlock()
	s.Retry(context.Background())

	v := rec.last()
	require.NotNil(t, v.Error)
	assert.Equal(t, domain.KindServerUnavailable, v.Error.Kind)
	assert.Equal(t, domain.MessageServerUnavailable, v.Error.Message)
	assert.Equal(t, 2, v.Total, "error keeps last good data")

	s.DismissError()
	v = rec.last()
	assert.Nil(t, v.Error)
	assert.Equal(t, 2, v.Total)

	before := rec.count()
	s.DismissError()
	assert.Equal(t, before, rec.count(), "dismiss without an error emits nothing")
}

func TestSession_RetryClearsErrorOnSuccess(t *testing.T) {
	f := newScriptedFetcher()
	f.errs[domain.WindowDay] = domain.NewStatusError(404, nil)
	s, rec := newTestSession(f)
	s.Load(context.Background())
	require.NotNil(t, rec.last().Error)
	assert.Equal(t, domain.KindNotFound, rec.last().Error.Kind)

	f.mu.Lock()
	delete(f.errs, domain.WindowDay)
	f.results[domain.WindowDay] = quakes(1.5)
	f.mu.Unlock()

	s.Retry(context.Background())
	assert.Nil(t, rec.last().Error)
	assert.Equal(t, 1, rec.last().Total)
}

func TestSession_RawErrorIsMasked(t *testing.T) {
	f := newScriptedFetcher()
	f.errs[domain.WindowDay] = assert.AnError
	s, rec := newTestSession(f)
	s.Load(context.Background())

	v := rec.last()
	require.NotNil(t, v.Error)
	assert.Equal(t, domain.KindNetworkFailure, v.Error.Kind)
	assert.Equal(t, domain.MessageNetworkFailure, v.Error.Message)
}

func TestSession_RefreshBypassesCache(t *testing.T) {
	f := newScriptedFetcher()
	f.results[domain.WindowDay] = quakes(3.3)
	s, _ := newTestSession(f)

	s.Refresh(context.Background())

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.calls, 1)
	assert.True(t, f.calls[0].refetch)
}

func TestSession_LatestRequestWins(t *testing.T) {
	f := newScriptedFetcher()
	f.results[domain.WindowDay] = quakes(1.0)
	f.results[domain.WindowWeek] = quakes(4.0, 5.0)
	dayGate := make(chan struct{})
	f.gates[domain.WindowDay] = dayGate
	s, rec := newTestSession(f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.ChangeTimeWindow(context.Background(), domain.WindowDay)
	}()
	require.Equal(t, domain.WindowDay, <-f.started)

	require.NoError(t, s.ChangeTimeWindow(context.Background(), domain.WindowWeek))
	<-f.started
	afterWeek := rec.count()

	close(dayGate)
	<-done

	assert.Equal(t, afterWeek, rec.count(), "stale result must not emit a view")
	v := s.View()
	assert.Equal(t, domain.WindowWeek, v.Window)
	assert.Equal(t, 2, v.Total)
	assert.False(t, v.Loading)
}

func TestSession_Teardown(t *testing.T) {
	f := newScriptedFetcher()
	f.results[domain.WindowDay] = quakes(2.0)
	gate := make(chan struct{})
	f.gates[domain.WindowDay] = gate
	s, rec := newTestSession(f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Load(context.Background())
	}()
	<-f.started

	s.Teardown()
	close(gate)
	<-done

	f.mu.Lock()
	assert.Equal(t, 1, f.cancelled)
	f.mu.Unlock()

	views := rec.count()
	assert.Zero(t, s.View().Total)

	s.Retry(context.Background())
	require.NoError(t, s.ChangeMagnitudeFloor(2))
	assert.Equal(t, views, rec.count(), "a torn down session emits nothing")
	assert.Equal(t, 1, f.callCount())
}

func TestSession_CallerContextCancelledKeepsData(t *testing.T) {
	f := newScriptedFetcher()
	f.results[domain.WindowDay] = quakes(2.0, 3.0)
	s, _ := newTestSession(f)
	s.Load(context.Background())

	f.mu.Lock()
	f.results[domain.WindowDay] = []domain.Earthquake{}
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Retry(ctx)

	v := s.View()
	assert.Equal(t, 2, v.Total)
	assert.False(t, v.Loading)
}

func TestSession_WindowFollowsIntentOrder(t *testing.T) {
	f := newScriptedFetcher()
	f.results[domain.WindowWeek] = quakes(4.0)
	f.results[domain.WindowMonth] = quakes(6.0, 5.0)
	s, _ := newTestSession(f)

	week, err := s.StartTimeWindow(context.Background(), domain.WindowWeek)
	require.NoError(t, err)
	month, err := s.StartTimeWindow(context.Background(), domain.WindowMonth)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowMonth, s.View().Window, "the window switches before any fetch runs")

	// Run in reverse order of arrival.
	month.Run()
	week.Run()

	v := s.View()
	assert.Equal(t, domain.WindowMonth, v.Window)
	assert.Equal(t, 2, v.Total)
	assert.False(t, v.Loading)
}

func TestSession_StartOnClosedSessionIsNoop(t *testing.T) {
	f := newScriptedFetcher()
	s, rec := newTestSession(f)
	s.Teardown()

	p, err := s.StartTimeWindow(context.Background(), domain.WindowWeek)
	require.NoError(t, err)
	assert.Nil(t, p)
	p.Run()
	s.StartRefresh(context.Background()).Run()

	assert.Zero(t, rec.count())
	assert.Zero(t, f.callCount())
}

// gatedFeed is a feed.Fetcher that holds each window until its gate is
// closed, honouring cancellation while it waits.
type gatedFeed struct {
	gates   map[domain.TimeWindow]chan struct{}
	data    map[domain.TimeWindow]domain.FeatureCollection
	started chan domain.TimeWindow
}

func (g *gatedFeed) FetchFeed(ctx context.Context, w domain.TimeWindow) (domain.FeatureCollection, error) {
	g.started <- w
	select {
	case <-g.gates[w]:
		return g.data[w], nil
	case <-ctx.Done():
		return domain.FeatureCollection{}, ctx.Err()
	}
}

func gatedFeature(id string, mag float64) domain.Feature {
	lng, lat := 10.0, 20.0
	return domain.Feature{
		ID:         domain.FeatureID(id),
		Properties: domain.Properties{Mag: &mag, Time: 1714000000000},
		Geometry:   domain.Geometry{Coordinates: []*float64{&lng, &lat}},
	}
}

// An older fetch that reaches the manager after a newer one must not cancel
// it, and the newer fetch's data must be what the session shows.
func TestSession_OlderFetchCannotCancelNewer(t *testing.T) {
	g := &gatedFeed{
		gates: map[domain.TimeWindow]chan struct{}{
			domain.WindowWeek:  make(chan struct{}),
			domain.WindowMonth: make(chan struct{}),
		},
		data: map[domain.TimeWindow]domain.FeatureCollection{
			domain.WindowWeek:  {Features: []domain.Feature{gatedFeature("w1", 4.1)}},
			domain.WindowMonth: {Features: []domain.Feature{gatedFeature("m1", 5.5), gatedFeature("m2", 6.2)}},
		},
		started: make(chan domain.TimeWindow, 2),
	}
	close(g.gates[domain.WindowWeek])

	mgr := feed.NewManager(g, cache.New(0, nil), 0, observability.NewMetricsForTesting(), observability.DiscardLogger())
	s, _ := newTestSession(mgr)

	week, err := s.StartTimeWindow(context.Background(), domain.WindowWeek)
	require.NoError(t, err)
	month, err := s.StartTimeWindow(context.Background(), domain.WindowMonth)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		month.Run()
	}()
	require.Equal(t, domain.WindowMonth, <-g.started)

	// The older intent reaches the manager last.
	week.Run()
	assert.Empty(t, g.started, "a replaced fetch never reaches the network")

	close(g.gates[domain.WindowMonth])
	<-done

	v := s.View()
	assert.Equal(t, domain.WindowMonth, v.Window)
	assert.False(t, v.Loading)
	assert.Nil(t, v.Error)
	require.Equal(t, 2, v.Total, "the newest fetch must not be replaced by an empty cancellation result")
	assert.Equal(t, "m2", v.Earthquakes[0].ID)
}

// A session fetch cancelled out from under it keeps the previous data.
func TestSession_CancelledFetchKeepsData(t *testing.T) {
	g := &gatedFeed{
		gates: map[domain.TimeWindow]chan struct{}{
			domain.WindowDay:  make(chan struct{}),
			domain.WindowWeek: make(chan struct{}),
		},
		data: map[domain.TimeWindow]domain.FeatureCollection{
			domain.WindowDay: {Features: []domain.Feature{gatedFeature("d1", 2.2)}},
		},
		started: make(chan domain.TimeWindow, 2),
	}
	close(g.gates[domain.WindowDay])

	mgr := feed.NewManager(g, cache.New(0, nil), 0, observability.NewMetricsForTesting(), observability.DiscardLogger())
	s, _ := newTestSession(mgr)
	s.Load(context.Background())
	<-g.started
	require.Equal(t, 1, s.View().Total)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.ChangeTimeWindow(ctx, domain.WindowWeek)
	}()
	<-g.started
	cancel()
	<-done

	v := s.View()
	assert.False(t, v.Loading)
	assert.Nil(t, v.Error)
	assert.Equal(t, 1, v.Total, "cancellation never replaces data")
}
