package domain

import (
	"fmt"
	"strings"
)

// DefaultFeedBaseURL is the USGS summary feed root.
const DefaultFeedBaseURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary"

// TimeWindow selects the lookback period, and with it the upstream feed.
type TimeWindow string

const (
	WindowHour  TimeWindow = "hour"
	WindowDay   TimeWindow = "day"
	WindowWeek  TimeWindow = "week"
	WindowMonth TimeWindow = "month"
)

// DefaultWindow is the window a new dashboard session starts on.
const DefaultWindow = WindowDay

// WindowInfo is the static configuration of a time window.
type WindowInfo struct {
	Window   TimeWindow `json:"window"`
	Label    string     `json:"label"`
	FeedFile string     `json:"-"`
}

// windows is ordered shortest to longest lookback.
var windows = []WindowInfo{
	{Window: WindowHour, Label: "Past Hour", FeedFile: "all_hour.geojson"},
	{Window: WindowDay, Label: "Past Day", FeedFile: "all_day.geojson"},
	{Window: WindowWeek, Label: "Past Week", FeedFile: "all_week.geojson"},
	{Window: WindowMonth, Label: "Past Month", FeedFile: "all_month.geojson"},
}

// Windows returns the window table in lookback order.
func Windows() []WindowInfo {
	out := make([]WindowInfo, len(windows))
	copy(out, windows)
	return out
}

// ParseTimeWindow validates a window key. Matching ignores case and
// surrounding whitespace.
func ParseTimeWindow(s string) (TimeWindow, error) {
	w := TimeWindow(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := w.info(); !ok {
		return "", fmt.Errorf("unknown time window %q", s)
	}
	return w, nil
}

// Valid reports whether w is one of the four known windows.
func (w TimeWindow) Valid() bool {
	_, ok := w.info()
	return ok
}

// Label returns the display label, or the raw key for unknown windows.
func (w TimeWindow) Label() string {
	if info, ok := w.info(); ok {
		return info.Label
	}
	return string(w)
}

// Endpoint returns the feed URL for w under the given base URL. An empty base
// selects the public USGS feeds.
func (w TimeWindow) Endpoint(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultFeedBaseURL
	}
	info, ok := w.info()
	if !ok {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + info.FeedFile
}

func (w TimeWindow) info() (WindowInfo, bool) {
	for _, info := range windows {
		if info.Window == w {
			return info, true
		}
	}
	return WindowInfo{}, false
}
