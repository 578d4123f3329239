// Package ws maintains the registry of live push-channel subscribers and
// fans training status updates out to them.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/aquametrics/shrimpd/internal/domain/model"
	"github.com/aquametrics/shrimpd/pkg/logger"
	"github.com/aquametrics/shrimpd/pkg/metrics"
)

// Default hub configuration constants.
const (
	defaultWriteTimeout = 5 * time.Second
)

// Conn is the subset of a websocket connection the hub needs. Satisfied by
// *websocket.Conn from gorilla.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithWriteTimeout bounds each delivery attempt.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(log logger.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// Hub is the live subscription registry. Delivery is best-effort fan-out:
// a subscriber whose write fails is pruned immediately, with no retry and
// no backpressure on the training run.
type Hub struct {
	mu           sync.Mutex
	subs         map[string]Conn
	writeTimeout time.Duration
	log          logger.Logger
}

// NewHub creates an empty subscriber registry.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:         make(map[string]Conn),
		writeTimeout: defaultWriteTimeout,
		log:          logger.Get().Named("ws"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Subscribe registers a connection and returns its handle. New subscribers
// are accepted unconditionally.
func (h *Hub) Subscribe(conn Conn) string {
	id := uuid.NewString()

	h.mu.Lock()
	h.subs[id] = conn
	count := len(h.subs)
	h.mu.Unlock()

	metrics.UpdateWSSubscribers(count)
	h.log.Debug(context.Background(), "subscriber connected",
		logger.String("subscriber_id", id),
		logger.Int("active", count),
	)
	return id
}

// Unsubscribe removes a subscriber and closes its connection. Unknown
// handles are a no-op.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	conn, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	count := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}
	_ = conn.Close()
	metrics.UpdateWSSubscribers(count)
	h.log.Debug(context.Background(), "subscriber disconnected",
		logger.String("subscriber_id", id),
		logger.Int("active", count),
	)
}

// Broadcast delivers an update to every active subscriber, pruning any
// whose delivery fails. Returns the number of successful deliveries.
func (h *Hub) Broadcast(update model.StatusUpdate) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	metrics.RecordWSBroadcast()

	delivered := 0
	for id, conn := range h.subs {
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteJSON(update); err != nil {
			delete(h.subs, id)
			_ = conn.Close()
			metrics.RecordWSDeliveryFailure()
			h.log.Debug(context.Background(), "pruned failed subscriber",
				logger.String("subscriber_id", id),
				logger.Error(err),
			)
			continue
		}
		delivered++
	}

	metrics.UpdateWSSubscribers(len(h.subs))
	return delivered
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// CloseAll disconnects every subscriber, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.subs {
		_ = conn.Close()
		delete(h.subs, id)
	}
	metrics.UpdateWSSubscribers(0)
}
