package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/quakewatch/internal/dashboard"
	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/feed"
)

const kindInvalidRequest = "invalid_request"

// API serves one-shot earthquake queries. Every request gets its own
// Manager, so concurrent requests never cancel each other.
type API struct {
	feeds  *feed.Factory
	logger *slog.Logger
}

// NewAPI creates the REST handlers.
func NewAPI(feeds *feed.Factory, logger *slog.Logger) *API {
	return &API{feeds: feeds, logger: logger}
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (a *API) handleWindows(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, domain.Windows())
}

func (a *API) handleScales(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, domain.Scales())
}

func (a *API) handleEarthquakes(w http.ResponseWriter, r *http.Request) {
	a.serveView(w, r, (*feed.Manager).Fetch)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.serveView(w, r, (*feed.Manager).ClearCacheAndRefetch)
}

type managerFetch func(m *feed.Manager, ctx context.Context, w domain.TimeWindow) ([]domain.Earthquake, error)

func (a *API) serveView(w http.ResponseWriter, r *http.Request, fetch managerFetch) {
	window, floor, err := parseQuery(r)
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Kind: kindInvalidRequest, Message: err.Error()})
		return
	}

	quakes, err := fetch(a.feeds.NewManager(), r.Context(), window)
	if err != nil {
		status, body := fetchErrorResponse(err)
		a.logger.Warn("earthquake query failed", "window", window, "kind", body.Kind, "status", status)
		sharedobs.WriteJSON(w, status, body)
		return
	}

	sharedobs.WriteJSON(w, http.StatusOK, dashboard.NewView(window, floor, quakes, false, nil))
}

func parseQuery(r *http.Request) (domain.TimeWindow, float64, error) {
	q := r.URL.Query()

	window := domain.DefaultWindow
	if v := q.Get("window"); v != "" {
		parsed, err := domain.ParseTimeWindow(v)
		if err != nil {
			return "", 0, err
		}
		window = parsed
	}

	var floor float64
	if v := q.Get("min_magnitude"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(parsed) || parsed < dashboard.MinMagnitudeFloor || parsed > dashboard.MaxMagnitudeFloor {
			return "", 0, errors.New("min_magnitude must be a number between 0 and 10")
		}
		floor = parsed
	}
	return window, floor, nil
}

// fetchErrorResponse maps a classified fetch error to an HTTP status.
func fetchErrorResponse(err error) (int, errorResponse) {
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		return http.StatusBadGateway, errorResponse{Kind: string(domain.KindNetworkFailure), Message: domain.MessageNetworkFailure}
	}
	status := http.StatusBadGateway
	if fe.Kind == domain.KindServerUnavailable {
		status = http.StatusServiceUnavailable
	}
	return status, errorResponse{Kind: string(fe.Kind), Message: fe.Message}
}
