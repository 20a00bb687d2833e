// Package kafka publishes relayed earthquakes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quakewatch/internal/config"
	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer messageWriter
	retry  *repeater.Repeater
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured earthquake topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchFlushInterval,
		AllowAutoTopicCreation: true,
	}
	return newWriter(w, clockwork.NewRealClock(), logger)
}

func newWriter(mw messageWriter, clock clockwork.Clock, logger *slog.Logger) *Writer {
	return &Writer{
		writer: mw,
		retry:  repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second)),
		clock:  clock,
		logger: logger,
	}
}

// LoadBatch serializes the earthquakes and publishes them in a single
// WriteMessages call, retrying transient broker errors with backoff.
func (w *Writer) LoadBatch(ctx context.Context, window domain.TimeWindow, quakes []domain.Earthquake) error {
	if len(quakes) == 0 {
		return nil
	}

	processedAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(quakes))
	for i := range quakes {
		msg, err := serializeToMessage(quakes[i], window, processedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	attempt := 0
	err := w.retry.Do(ctx, func() error {
		attempt++
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			w.logger.Warn("kafka write failed", "error", err, "attempt", attempt, "batch_size", len(msgs))
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish %d earthquakes: %w", len(msgs), err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Earthquake into a Kafka message keyed by id.
func serializeToMessage(q domain.Earthquake, window domain.TimeWindow, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize earthquake %s: %w", q.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(q.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "window", Value: []byte(window)},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
