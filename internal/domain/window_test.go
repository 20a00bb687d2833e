package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeWindow(t *testing.T) {
	tests := []struct {
		in   string
		want TimeWindow
	}{
		{"hour", WindowHour},
		{"day", WindowDay},
		{" Week ", WindowWeek},
		{"MONTH", WindowMonth},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, err := ParseTimeWindow(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, w)
			assert.True(t, w.Valid())
		})
	}

	for _, bad := range []string{"", "year", "days"} {
		_, err := ParseTimeWindow(bad)
		require.Error(t, err, bad)
	}
}

func TestTimeWindow_Endpoint(t *testing.T) {
	assert.Equal(t,
		"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson",
		WindowHour.Endpoint(""))
	assert.Equal(t, "http://mirror.local/feeds/all_month.geojson", WindowMonth.Endpoint("http://mirror.local/feeds/"))
	assert.Empty(t, TimeWindow("year").Endpoint(""))
}

func TestTimeWindow_Label(t *testing.T) {
	assert.Equal(t, "Past Hour", WindowHour.Label())
	assert.Equal(t, "Past Day", WindowDay.Label())
	assert.Equal(t, "Past Week", WindowWeek.Label())
	assert.Equal(t, "Past Month", WindowMonth.Label())
	assert.Equal(t, "year", TimeWindow("year").Label())
}

func TestWindows_ReturnsCopy(t *testing.T) {
	ws := Windows()
	require.Len(t, ws, 4)
	ws[0].Label = "changed"
	assert.Equal(t, "Past Hour", Windows()[0].Label)
}
