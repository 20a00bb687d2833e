// Package httpadapter serves the REST API, the dashboard websocket, and the
// operational endpoints.
package httpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	appName    = "quakewatch"
	appAuthor  = "couchcryptid"
	maxBodyLen = 64 * 1024
)

// Server exposes the API, websocket, health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	router     *routegroup.Bundle
	logger     *slog.Logger
}

// Options wires the handlers a Server routes to. A nil Dashboard disables /ws.
type Options struct {
	Addr      string
	Version   string
	Ready     sharedobs.ReadinessChecker
	API       *API
	Dashboard http.Handler
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(opts Options, logger *slog.Logger) *Server {
	router := routegroup.New(http.NewServeMux())

	s := &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		router: router,
		logger: logger,
	}

	router.Use(rest.AppInfo(appName, appAuthor, opts.Version))
	router.Use(rest.Ping)
	router.Use(rest.Recoverer(slogBackend{logger}))

	router.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	router.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(opts.Ready))
	router.Handle("GET /metrics", promhttp.Handler())

	if opts.API != nil {
		router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
			r.Use(rest.Throttle(100))
			r.Use(rest.SizeLimit(maxBodyLen))
			r.HandleFunc("GET /windows", opts.API.handleWindows)
			r.HandleFunc("GET /scales", opts.API.handleScales)
			r.HandleFunc("GET /earthquakes", opts.API.handleEarthquakes)
			r.HandleFunc("POST /earthquakes/refresh", opts.API.handleRefresh)
		})
	}

	// Websocket sessions are long lived and stay out of the API throttle.
	if opts.Dashboard != nil {
		router.Handle("GET /ws", opts.Dashboard)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// slogBackend adapts slog to the rest middleware logger.
type slogBackend struct {
	logger *slog.Logger
}

func (b slogBackend) Logf(format string, args ...any) {
	b.logger.Error(fmt.Sprintf(format, args...))
}
