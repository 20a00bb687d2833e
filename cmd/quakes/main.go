// Command quakes prints the current USGS earthquake feed for one time window.
//
// Usage:
//
//	go run ./cmd/quakes --window week --min-magnitude 4.5 --limit 20
//	go run ./cmd/quakes -w hour -f yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"github.com/couchcryptid/quakewatch/internal/adapter/usgs"
	"github.com/couchcryptid/quakewatch/internal/cache"
	"github.com/couchcryptid/quakewatch/internal/dashboard"
	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/feed"
	"github.com/couchcryptid/quakewatch/internal/observability"
)

// Opts with all CLI options
type Opts struct {
	Window       string        `short:"w" long:"window" default:"day" choice:"hour" choice:"day" choice:"week" choice:"month" description:"time window"`
	MinMagnitude float64       `short:"m" long:"min-magnitude" default:"0" description:"hide events below this magnitude"`
	Format       string        `short:"f" long:"format" default:"table" choice:"table" choice:"json" choice:"yaml" description:"output format"`
	Limit        int           `short:"n" long:"limit" default:"0" description:"print at most this many events, 0 for all"`
	FeedURL      string        `long:"feed-url" env:"FEED_BASE_URL" description:"summary feed base URL"`
	Timeout      time.Duration `long:"timeout" env:"FETCH_TIMEOUT" default:"15s" description:"fetch timeout"`

	Verbose bool `short:"v" long:"verbose" description:"log fetch details to stderr"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
	Version bool `short:"V" long:"version" description:"show version info"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, observability.NewMetrics(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgHiRed).Sprint(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts Opts, metrics *observability.Metrics, out io.Writer) error {
	window, err := domain.ParseTimeWindow(opts.Window)
	if err != nil {
		return err
	}
	if math.IsNaN(opts.MinMagnitude) || opts.MinMagnitude < dashboard.MinMagnitudeFloor || opts.MinMagnitude > dashboard.MaxMagnitudeFloor {
		return fmt.Errorf("min-magnitude must be between %v and %v", dashboard.MinMagnitudeFloor, dashboard.MaxMagnitudeFloor)
	}
	if opts.Limit < 0 {
		return errors.New("limit must not be negative")
	}

	logger := observability.DiscardLogger()
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	client := usgs.NewClient(opts.FeedURL, opts.Timeout, metrics, logger)
	manager := feed.NewManager(client, cache.New(0, nil), opts.Timeout, metrics, logger)

	quakes, err := manager.Fetch(ctx, window)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	r := newReport(dashboard.NewView(window, opts.MinMagnitude, quakes, false, nil), opts.Limit)

	switch opts.Format {
	case "json":
		return writeJSON(out, r)
	case "yaml":
		return writeYAML(out, r)
	default:
		return writeTable(out, r, !color.NoColor)
	}
}
