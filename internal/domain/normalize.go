package domain

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

// UnknownPlace replaces a missing or empty place description.
const UnknownPlace = "Unknown location"

// Normalize converts upstream features into earthquakes, sorted by magnitude
// descending. Invalid records are dropped silently.
func Normalize(features []Feature) []Earthquake {
	quakes, _ := NormalizeWithStats(features)
	return quakes
}

// NormalizeWithStats behaves like Normalize and also reports how many records
// were dropped.
func NormalizeWithStats(features []Feature) ([]Earthquake, int) {
	quakes := make([]Earthquake, 0, len(features))
	for i := range features {
		if !isValidFeature(features[i]) {
			continue
		}
		quakes = append(quakes, toEarthquake(features[i]))
	}

	// Stable so equal magnitudes keep feed order.
	slices.SortStableFunc(quakes, func(a, b Earthquake) int {
		return cmp.Compare(b.Magnitude, a.Magnitude)
	})
	return quakes, len(features) - len(quakes)
}

// isValidFeature rejects records with no magnitude or with coordinates
// outside WGS-84 bounds.
func isValidFeature(f Feature) bool {
	if f.Properties.Mag == nil || !isFinite(*f.Properties.Mag) {
		return false
	}
	lng, lat, ok := coordinatePair(f.Geometry.Coordinates)
	if !ok {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// coordinatePair extracts longitude and latitude in GeoJSON order.
func coordinatePair(coords []*float64) (lng, lat float64, ok bool) {
	if len(coords) < 2 || coords[0] == nil || coords[1] == nil {
		return 0, 0, false
	}
	lng, lat = *coords[0], *coords[1]
	if !isFinite(lng) || !isFinite(lat) {
		return 0, 0, false
	}
	return lng, lat, true
}

func toEarthquake(f Feature) Earthquake {
	lng, lat, _ := coordinatePair(f.Geometry.Coordinates)

	return Earthquake{
		ID:        string(f.ID),
		Magnitude: *f.Properties.Mag,
		Place:     normalizePlace(f.Properties.Place),
		Time:      time.UnixMilli(f.Properties.Time).UTC(),
		Coordinates: Coordinates{
			Lat:   lat,
			Lng:   lng,
			Depth: normalizeDepth(f.Geometry.Coordinates),
		},
		URL:          derefOrEmpty(f.Properties.URL),
		Significance: normalizeSignificance(f.Properties.Sig),
	}
}

func normalizePlace(place *string) string {
	if place == nil || strings.TrimSpace(*place) == "" {
		return UnknownPlace
	}
	return *place
}

// normalizeDepth reads the optional third coordinate. Above-sea-level
// solutions report negative depths; those clamp to 0.
func normalizeDepth(coords []*float64) float64 {
	if len(coords) < 3 || coords[2] == nil {
		return 0
	}
	d := *coords[2]
	if !isFinite(d) || d < 0 {
		return 0
	}
	return d
}

func normalizeSignificance(sig *int) int {
	if sig == nil || *sig < 0 {
		return 0
	}
	return *sig
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
