// Package ws carries dashboard sessions over websocket connections. The
// client sends intents as JSON; the server pushes the resulting views.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/quakewatch/internal/dashboard"
	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/feed"
	"github.com/couchcryptid/quakewatch/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Intent types accepted from the client.
const (
	IntentChangeWindow    = "change_window"
	IntentChangeMagnitude = "change_magnitude"
	IntentRefresh         = "refresh"
	IntentRetry           = "retry"
	IntentDismissError    = "dismiss_error"
)

// Intent is one client message.
type Intent struct {
	Type   string   `json:"type"`
	Window string   `json:"window,omitempty"`
	Value  *float64 `json:"value,omitempty"`
}

// Handler upgrades requests and runs one dashboard session per connection.
type Handler struct {
	feeds    *feed.Factory
	metrics  *observability.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket handler.
func NewHandler(feeds *feed.Factory, metrics *observability.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		feeds:   feeds,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	h.metrics.DashboardSessions.Inc()
	defer h.metrics.DashboardSessions.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := h.logger.With("remote", r.RemoteAddr)
	out := newOutbox()
	sess := dashboard.NewSession(h.feeds.NewManager(), out.push, logger)

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		defer cancel()
		// Unblocks the read loop when the writer gives up first.
		defer conn.Close()
		h.writeLoop(ctx, conn, out, logger)
	}()

	var intents sync.WaitGroup
	intents.Add(1)
	initial := sess.StartLoad(ctx)
	go func() {
		defer intents.Done()
		initial.Run()
	}()

	logger.Info("dashboard session opened")
	h.readLoop(ctx, conn, sess, &intents, logger)

	sess.Teardown()
	cancel()
	intents.Wait()
	writer.Wait()
	logger.Info("dashboard session closed")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sess *dashboard.Session, intents *sync.WaitGroup, logger *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var in Intent
		if err := json.Unmarshal(data, &in); err != nil {
			logger.Warn("malformed intent", "error", err)
			continue
		}
		if err := dispatch(ctx, sess, in, intents); err != nil {
			logger.Warn("rejected intent", "type", in.Type, "error", err)
		}
	}
}

// dispatch applies an intent. Every intent takes its place in the session
// before dispatch returns, so intents resolve in arrival order; fetches then
// run in their own goroutine so the read loop keeps accepting newer intents.
func dispatch(ctx context.Context, sess *dashboard.Session, in Intent, intents *sync.WaitGroup) error {
	var pending *dashboard.Pending

	switch in.Type {
	case IntentChangeWindow:
		w, err := domain.ParseTimeWindow(in.Window)
		if err != nil {
			return err
		}
		if pending, err = sess.StartTimeWindow(ctx, w); err != nil {
			return err
		}
	case IntentChangeMagnitude:
		if in.Value == nil {
			return errors.New("change_magnitude requires a value")
		}
		return sess.ChangeMagnitudeFloor(*in.Value)
	case IntentRefresh:
		pending = sess.StartRefresh(ctx)
	case IntentRetry:
		pending = sess.StartRetry(ctx)
	case IntentDismissError:
		sess.DismissError()
		return nil
	default:
		return fmt.Errorf("unknown intent type %q", in.Type)
	}

	intents.Add(1)
	go func() {
		defer intents.Done()
		pending.Run()
	}()
	return nil
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, out *outbox, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-out.signal:
			v, ok := out.take()
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				logger.Warn("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

// outbox holds the newest view not yet written. Views published faster than
// the client reads them collapse into the latest one.
type outbox struct {
	mu     sync.Mutex
	latest *dashboard.View
	signal chan struct{}
}

func newOutbox() *outbox {
	return &outbox{signal: make(chan struct{}, 1)}
}

func (o *outbox) push(v dashboard.View) {
	o.mu.Lock()
	o.latest = &v
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
}

func (o *outbox) take() (dashboard.View, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.latest == nil {
		return dashboard.View{}, false
	}
	v := *o.latest
	o.latest = nil
	return v, true
}
