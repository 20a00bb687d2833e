package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/quakewatch/internal/dashboard"
	"github.com/couchcryptid/quakewatch/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

type report struct {
	Window       domain.TimeWindow `json:"window" yaml:"window"`
	Label        string            `json:"label" yaml:"label"`
	MinMagnitude float64           `json:"min_magnitude" yaml:"min_magnitude"`
	Total        int               `json:"total" yaml:"total"`
	Shown        int               `json:"shown" yaml:"shown"`
	Highest      float64           `json:"highest_magnitude" yaml:"highest_magnitude"`
	HighestScale string            `json:"highest_scale,omitempty" yaml:"highest_scale,omitempty"`
	Earthquakes  []reportRow       `json:"earthquakes" yaml:"earthquakes"`
}

type reportRow struct {
	ID        string  `json:"id" yaml:"id"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`
	Scale     string  `json:"scale" yaml:"scale"`
	Time      string  `json:"time" yaml:"time"`
	Depth     float64 `json:"depth_km" yaml:"depth_km"`
	Lat       float64 `json:"lat" yaml:"lat"`
	Lng       float64 `json:"lng" yaml:"lng"`
	Place     string  `json:"place" yaml:"place"`
	URL       string  `json:"url,omitempty" yaml:"url,omitempty"`
}

// newReport flattens a view for printing. A positive limit truncates the
// list but not the counts.
func newReport(v dashboard.View, limit int) report {
	quakes := v.Earthquakes
	if limit > 0 && len(quakes) > limit {
		quakes = quakes[:limit]
	}

	rows := make([]reportRow, 0, len(quakes))
	for _, q := range quakes {
		rows = append(rows, reportRow{
			ID:        q.ID,
			Magnitude: q.Magnitude,
			Scale:     domain.ScaleFor(q.Magnitude).Description,
			Time:      q.Time.UTC().Format(timeLayout),
			Depth:     q.Coordinates.Depth,
			Lat:       q.Coordinates.Lat,
			Lng:       q.Coordinates.Lng,
			Place:     q.Place,
			URL:       q.URL,
		})
	}

	return report{
		Window:       v.Window,
		Label:        v.WindowLabel,
		MinMagnitude: v.MagnitudeFloor,
		Total:        v.Total,
		Shown:        v.Shown,
		Highest:      v.Highest,
		HighestScale: v.HighestScale,
		Earthquakes:  rows,
	}
}

func writeJSON(w io.Writer, r report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeYAML(w io.Writer, r report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

var tableHeader = []string{"MAG", "SCALE", "TIME", "DEPTH", "PLACE"}

// writeTable prints an aligned table. Widths are measured in display cells
// so wide place names stay aligned; color is applied after padding.
func writeTable(w io.Writer, r report, colorize bool) error {
	summary := fmt.Sprintf("%s: %d of %d earthquakes at M%.1f+", r.Label, r.Shown, r.Total, r.MinMagnitude)
	if r.HighestScale != "" {
		summary += fmt.Sprintf(", strongest M%.1f (%s)", r.Highest, r.HighestScale)
	}
	if _, err := fmt.Fprintln(w, summary); err != nil {
		return err
	}
	if len(r.Earthquakes) == 0 {
		_, err := fmt.Fprintln(w, "No earthquakes found.")
		return err
	}

	table := [][]string{tableHeader}
	for _, row := range r.Earthquakes {
		table = append(table, []string{
			fmt.Sprintf("%.1f", row.Magnitude),
			row.Scale,
			row.Time,
			fmt.Sprintf("%.1f km", row.Depth),
			row.Place,
		})
	}

	widths := make([]int, len(tableHeader))
	for _, cells := range table {
		for i, cell := range cells {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for i, cells := range table {
		paint := color.New(color.Bold)
		if i > 0 {
			paint = scaleColor(r.Earthquakes[i-1].Scale)
		}
		if colorize {
			paint.EnableColor()
		} else {
			paint.DisableColor()
		}

		var sb strings.Builder
		for j, cell := range cells {
			if j > 0 {
				sb.WriteString("  ")
			}
			if j == len(cells)-1 {
				sb.WriteString(cell)
				continue
			}
			sb.WriteString(runewidth.FillRight(cell, widths[j]))
		}
		if _, err := fmt.Fprintln(w, paint.Sprint(sb.String())); err != nil {
			return err
		}
	}
	return nil
}

// scaleColor picks the row color for a magnitude band.
func scaleColor(scale string) *color.Color {
	switch scale {
	case "Great", "Major":
		return color.New(color.FgHiRed, color.Bold)
	case "Strong":
		return color.New(color.FgRed)
	case "Moderate":
		return color.New(color.FgYellow)
	case "Light":
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgWhite)
	}
}
