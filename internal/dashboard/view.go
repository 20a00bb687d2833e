package dashboard

import (
	"github.com/couchcryptid/quakewatch/internal/domain"
)

// ViewError is the error banner. Kind drives presentation; Message is shown
// to the user as is.
type ViewError struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// View is a snapshot of what a dashboard renders.
type View struct {
	Window         domain.TimeWindow   `json:"window"`
	WindowLabel    string              `json:"window_label"`
	MagnitudeFloor float64             `json:"magnitude_floor"`
	Loading        bool                `json:"loading"`
	Error          *ViewError          `json:"error,omitempty"`
	Total          int                 `json:"total"`
	Shown          int                 `json:"shown"`
	Highest        float64             `json:"highest_magnitude"`
	HighestScale   string              `json:"highest_scale,omitempty"`
	Earthquakes    []domain.Earthquake `json:"earthquakes"`
}

// NewView builds a View from a full result set, applying the magnitude floor.
func NewView(w domain.TimeWindow, floor float64, all []domain.Earthquake, loading bool, err error) View {
	shown := domain.FilterByMagnitude(all, floor)
	v := View{
		Window:         w,
		WindowLabel:    w.Label(),
		MagnitudeFloor: floor,
		Loading:        loading,
		Error:          viewError(err),
		Total:          len(all),
		Shown:          len(shown),
		Earthquakes:    shown,
	}
	if len(shown) > 0 {
		v.Highest = domain.HighestMagnitude(shown)
		v.HighestScale = domain.ScaleFor(v.Highest).Description
	}
	return v
}

func viewError(err error) *ViewError {
	if err == nil {
		return nil
	}
	kind := domain.KindOf(err)
	if kind == "" {
		// Unclassified errors never show their raw text.
		return &ViewError{Kind: domain.KindNetworkFailure, Message: domain.MessageNetworkFailure}
	}
	return &ViewError{Kind: kind, Message: err.Error()}
}
