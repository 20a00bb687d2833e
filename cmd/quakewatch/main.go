package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/quakewatch/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/quakewatch/internal/adapter/kafka"
	"github.com/couchcryptid/quakewatch/internal/adapter/usgs"
	"github.com/couchcryptid/quakewatch/internal/adapter/ws"
	"github.com/couchcryptid/quakewatch/internal/cache"
	"github.com/couchcryptid/quakewatch/internal/config"
	"github.com/couchcryptid/quakewatch/internal/feed"
	"github.com/couchcryptid/quakewatch/internal/observability"
	"github.com/couchcryptid/quakewatch/internal/pipeline"
)

var revision = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	logger.Info("starting quakewatch", "version", revision, "feed", cfg.FeedBaseURL)

	client := usgs.NewClient(cfg.FeedBaseURL, cfg.FetchTimeout, metrics, logger)
	feeds := feed.NewFactory(client, cache.New(cfg.CacheTTL, nil), cfg.FetchTimeout, metrics, logger)

	// Publishing is feature-flagged via KAFKA_ENABLED; without it the relay
	// only keeps the cache warm.
	var writer *kafkaadapter.Writer
	opts := pipeline.Options{
		Windows:  cfg.RelayWindows,
		Interval: cfg.RelayInterval,
		SeenSize: cfg.RelaySeenSize,
	}
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts.Loader = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	relay := pipeline.New(feeds.NewManager(), opts, logger, metrics)

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:      cfg.HTTPAddr,
		Version:   revision,
		Ready:     relay,
		API:       httpadapter.NewAPI(feeds, logger),
		Dashboard: ws.NewHandler(feeds, metrics, logger),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return relay.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("quakewatch stopped with error", "error", err)
	}

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
