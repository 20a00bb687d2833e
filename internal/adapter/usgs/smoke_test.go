//go:build usgs

package usgs

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the live USGS feeds.
// Run with: go test -tags=usgs ./internal/adapter/usgs/ -v -count=1

func smokeClient() *Client {
	return NewClient("", 15*time.Second, observability.NewMetricsForTesting(), observability.DiscardLogger())
}

func TestSmoke_FetchHour(t *testing.T) {
	coll, err := smokeClient().FetchFeed(context.Background(), domain.WindowHour)
	require.NoError(t, err)

	assert.Equal(t, "FeatureCollection", coll.Type)
	assert.Equal(t, 200, coll.Metadata.Status)
	assert.Equal(t, len(coll.Features), coll.Metadata.Count)
}

func TestSmoke_NormalizeDay(t *testing.T) {
	coll, err := smokeClient().FetchFeed(context.Background(), domain.WindowDay)
	require.NoError(t, err)

	quakes := domain.Normalize(coll.Features)
	// The day feed is never empty in practice.
	require.NotEmpty(t, quakes)
	for i := 1; i < len(quakes); i++ {
		assert.GreaterOrEqual(t, quakes[i-1].Magnitude, quakes[i].Magnitude)
	}
	for _, q := range quakes {
		assert.NotEmpty(t, q.ID)
		assert.GreaterOrEqual(t, q.Coordinates.Depth, 0.0)
	}
}
