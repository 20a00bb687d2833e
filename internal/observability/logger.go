// Package observability provides the service logger and Prometheus metrics.
package observability

import (
	"io"
	"log/slog"

	"github.com/couchcryptid/quakewatch/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds a slog logger from LOG_LEVEL and LOG_FORMAT, writing to
// stdout, and installs it as the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
}

// DiscardLogger returns a logger that drops everything, for tests and
// quiet CLI runs.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
