package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FeatureCollection is the GeoJSON envelope returned by a summary feed.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Metadata Metadata  `json:"metadata"`
	Features []Feature `json:"features"`
}

// Metadata describes a generated feed.
type Metadata struct {
	Generated int64  `json:"generated"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	API       string `json:"api"`
	Count     int    `json:"count"`
}

// Feature is a single upstream earthquake record. Nullable upstream fields
// are pointers so normalization can tell "absent" from "zero".
type Feature struct {
	Type       string     `json:"type"`
	ID         FeatureID  `json:"id"`
	Properties Properties `json:"properties"`
	Geometry   Geometry   `json:"geometry"`
}

// Properties holds the subset of feed properties the service reads.
type Properties struct {
	Mag     *float64 `json:"mag"`
	Place   *string  `json:"place"`
	Time    int64    `json:"time"`
	Updated int64    `json:"updated"`
	URL     *string  `json:"url"`
	Sig     *int     `json:"sig"`
	Title   string   `json:"title"`
	MagType string   `json:"magType"`
	Tsunami int      `json:"tsunami"`
}

// Geometry is a GeoJSON point: [longitude, latitude, depth].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates []*float64 `json:"coordinates"`
}

// FeatureID is a feature identifier that may arrive as a JSON string or number.
type FeatureID string

// UnmarshalJSON accepts both `"us7000abcd"` and `12345`.
func (id *FeatureID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("feature id: %w", err)
		}
		*id = FeatureID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("feature id: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*id = FeatureID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = FeatureID(n.String())
	return nil
}

// Coordinates is a validated WGS-84 position with depth in kilometres.
type Coordinates struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Depth float64 `json:"depth"`
}

// Earthquake is the normalized, immutable representation of one event.
type Earthquake struct {
	ID           string      `json:"id"`
	Magnitude    float64     `json:"magnitude"`
	Place        string      `json:"place"`
	Time         time.Time   `json:"time"`
	Coordinates  Coordinates `json:"coordinates"`
	URL          string      `json:"url"`
	Significance int         `json:"significance"`
}
