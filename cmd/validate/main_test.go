package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quakewatch/internal/domain"
)

const fixture = "../../internal/adapter/usgs/testdata/all_day.geojson"

func init() { color.NoColor = true }

func ptr[T any](v T) *T { return &v }

func writeJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func normalizedFixture(t *testing.T) []domain.Earthquake {
	t.Helper()
	coll, err := loadJSON[domain.FeatureCollection](fixture)
	require.NoError(t, err)
	return domain.Normalize(coll.Features)
}

func TestRun_FixturePasses(t *testing.T) {
	var out bytes.Buffer
	code := run(Opts{Feed: fixture}, &out)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "Records: 6 features, 4 valid, 2 dropped")
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRun_ServedParity(t *testing.T) {
	served := normalizedFixture(t)

	var out bytes.Buffer
	code := run(Opts{Feed: fixture, Earthquakes: writeJSON(t, served)}, &out)
	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "Phase 4")

	served[0].Place = "somewhere else"
	served = served[:len(served)-1]
	out.Reset()
	code = run(Opts{Feed: fixture, Earthquakes: writeJSON(t, served)}, &out)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "mismatch")
	assert.Contains(t, out.String(), "missing from served earthquakes")
}

func TestRun_MissingFeed(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run(Opts{Feed: filepath.Join(t.TempDir(), "nope.geojson")}, &out))
	assert.Contains(t, out.String(), "FATAL: load feed")
}

func TestValidateFeedSchema(t *testing.T) {
	coll := domain.FeatureCollection{
		Type:     "Feature",
		Metadata: domain.Metadata{Count: 3},
		Features: []domain.Feature{
			{Type: "Feature", ID: "a", Geometry: domain.Geometry{Type: "Point"}, Properties: domain.Properties{Time: 1}},
			{Type: "Feature", ID: "a", Geometry: domain.Geometry{Type: "Point"}, Properties: domain.Properties{Time: 1}},
			{Type: "Thing", Geometry: domain.Geometry{Type: "Polygon"}},
		},
	}

	p := validateFeedSchema(coll)
	assert.False(t, p.passed())
	assert.Len(t, p.errors, 6)
}

func TestValidateNormalization_Order(t *testing.T) {
	quakes := []domain.Earthquake{
		{ID: "a", Magnitude: 1.0, Place: "x"},
		{ID: "b", Magnitude: 2.0, Place: "y"},
	}
	p := validateNormalization(quakes)
	assert.Equal(t, []string{"earthquakes are not ordered by magnitude descending"}, p.errors)
}

func TestValidateScaleCoverage(t *testing.T) {
	quakes := domain.Normalize([]domain.Feature{
		{ID: "edge", Properties: domain.Properties{Mag: ptr(7.95)}, Geometry: domain.Geometry{Coordinates: []*float64{ptr(0.0), ptr(0.0)}}},
		{ID: "neg", Properties: domain.Properties{Mag: ptr(-0.4)}, Geometry: domain.Geometry{Coordinates: []*float64{ptr(0.0), ptr(0.0)}}},
	})
	assert.True(t, validateScaleCoverage(quakes).passed())
}
