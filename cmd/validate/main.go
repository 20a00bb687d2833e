// Command validate checks a saved USGS summary feed against the rules the
// service applies when it normalizes one, and optionally checks a dump of
// served or published earthquakes against that normalization.
//
// Usage:
//
//	go run ./cmd/validate \
//	  --feed internal/adapter/usgs/testdata/all_day.geojson \
//	  --earthquakes /tmp/earthquakes.json
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jessevdk/go-flags"

	"github.com/couchcryptid/quakewatch/internal/domain"
)

// Opts with all CLI options
type Opts struct {
	Feed        string `long:"feed" required:"true" description:"GeoJSON summary feed file"`
	Earthquakes string `long:"earthquakes" description:"JSON array of normalized earthquakes to compare"`
	NoColor     bool   `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	var opts Opts
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	os.Exit(run(opts, os.Stdout))
}

func run(opts Opts, out io.Writer) int {
	fmt.Fprintln(out, "=== Earthquake Feed Validation ===")

	coll, err := loadJSON[domain.FeatureCollection](opts.Feed)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load feed: %v\n", err)
		return 1
	}
	quakes, dropped := domain.NormalizeWithStats(coll.Features)

	phases := []*phase{
		validateFeedSchema(coll),
		validateNormalization(quakes),
		validateScaleCoverage(quakes),
	}
	if opts.Earthquakes != "" {
		served, err := loadJSON[[]domain.Earthquake](opts.Earthquakes)
		if err != nil {
			fmt.Fprintf(out, "FATAL: load earthquakes: %v\n", err)
			return 1
		}
		phases = append(phases, validateServedParity(served, quakes))
	}

	fmt.Fprintln(out)
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintfFunc()
	allPassed := true
	for _, p := range phases {
		status := pass("PASS")
		if !p.passed() {
			status = fail("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d features, %d valid, %d dropped\n", len(coll.Features), len(quakes), dropped)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// ── Phase 1: Feed Schema ──
// The envelope is a FeatureCollection of uniquely identified points.

func validateFeedSchema(coll domain.FeatureCollection) *phase {
	p := &phase{name: "Phase 1: Feed Schema (GeoJSON)"}

	if coll.Type != "FeatureCollection" {
		p.errorf("type: got %q, want FeatureCollection", coll.Type)
	}
	if coll.Metadata.Count != len(coll.Features) {
		p.errorf("metadata.count: got %d, feed has %d features", coll.Metadata.Count, len(coll.Features))
	}

	seen := make(map[domain.FeatureID]int, len(coll.Features))
	for i, f := range coll.Features {
		if f.ID == "" {
			p.errorf("feature %d: missing id", i)
		} else if prev, dup := seen[f.ID]; dup {
			p.errorf("feature %d: id %s duplicates feature %d", i, f.ID, prev)
		} else {
			seen[f.ID] = i
		}
		if f.Type != "Feature" {
			p.errorf("feature %d (%s): type %q", i, f.ID, f.Type)
		}
		if f.Geometry.Type != "Point" {
			p.errorf("feature %d (%s): geometry type %q", i, f.ID, f.Geometry.Type)
		}
		if f.Properties.Time <= 0 {
			p.errorf("feature %d (%s): missing origin time", i, f.ID)
		}
	}
	return p
}

// ── Phase 2: Normalization ──
// Every kept record is in bounds and the list is strongest first.

func validateNormalization(quakes []domain.Earthquake) *phase {
	p := &phase{name: "Phase 2: Normalization"}

	for _, q := range quakes {
		if math.IsNaN(q.Magnitude) || math.IsInf(q.Magnitude, 0) {
			p.errorf("%s: magnitude %v", q.ID, q.Magnitude)
		}
		if q.Coordinates.Lat < -90 || q.Coordinates.Lat > 90 || q.Coordinates.Lng < -180 || q.Coordinates.Lng > 180 {
			p.errorf("%s: coordinates out of range (%v, %v)", q.ID, q.Coordinates.Lat, q.Coordinates.Lng)
		}
		if q.Coordinates.Depth < 0 {
			p.errorf("%s: negative depth %v", q.ID, q.Coordinates.Depth)
		}
		if q.Significance < 0 {
			p.errorf("%s: negative significance %d", q.ID, q.Significance)
		}
		if q.Place == "" {
			p.errorf("%s: empty place", q.ID)
		}
	}

	if !slices.IsSortedFunc(quakes, func(a, b domain.Earthquake) int {
		switch {
		case a.Magnitude > b.Magnitude:
			return -1
		case a.Magnitude < b.Magnitude:
			return 1
		}
		return 0
	}) {
		p.errorf("earthquakes are not ordered by magnitude descending")
	}
	return p
}

// ── Phase 3: Scale Coverage ──
// Every magnitude lands in exactly the band whose range holds it.

func validateScaleCoverage(quakes []domain.Earthquake) *phase {
	p := &phase{name: "Phase 3: Scale Coverage"}

	for _, q := range quakes {
		s := domain.ScaleFor(q.Magnitude)
		if q.Magnitude >= 0 && q.Magnitude < s.Min {
			p.errorf("%s: magnitude %.2f below band %s (%s)", q.ID, q.Magnitude, s.Label, s.Description)
		}
		for _, other := range domain.Scales() {
			if other.Min > s.Min && q.Magnitude >= other.Min {
				p.errorf("%s: magnitude %.2f assigned %s but reaches %s", q.ID, q.Magnitude, s.Description, other.Description)
			}
		}
	}
	return p
}

// ── Phase 4: Served Parity ──
// A dump of served earthquakes matches the normalization of the same feed.

func validateServedParity(served, normalized []domain.Earthquake) *phase {
	p := &phase{name: "Phase 4: Served Parity (normalized JSON)"}

	byID := make(map[string]domain.Earthquake, len(normalized))
	for _, q := range normalized {
		byID[q.ID] = q
	}

	for _, got := range served {
		want, ok := byID[got.ID]
		if !ok {
			p.errorf("%s: not present in normalized feed", got.ID)
			continue
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			p.errorf("%s: mismatch (-feed +served):\n%s", got.ID, diff)
		}
		delete(byID, got.ID)
	}
	for _, id := range slices.Sorted(maps.Keys(byID)) {
		p.errorf("%s: missing from served earthquakes", id)
	}
	return p
}
