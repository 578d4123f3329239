// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/aquametrics/shrimpd/internal/domain/model"
	"github.com/aquametrics/shrimpd/pkg/logger"
)

// Websocket handshake buffer sizes.
const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
)

// WSHandler upgrades HTTP requests to live training-update subscriptions.
type WSHandler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(deps Dependencies) *WSHandler {
	return &WSHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsReadBufferSize,
			WriteBufferSize: wsWriteBufferSize,
			// The annotation UI is served from arbitrary origins in lab
			// deployments, so cross-origin upgrades are allowed.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.Get().Named("ws-handler"),
	}
}

// HandleTraining handles GET /ws/training upgrade requests. The subscriber
// immediately receives a snapshot of the current training status, then every
// subsequent status change until the connection drops.
func (h *WSHandler) HandleTraining(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		h.log.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	// Snapshot before registering so late joiners see the in-flight run
	// state right away. Registration would also open the connection to
	// concurrent broadcast writes, which gorilla conns do not allow.
	if err := conn.WriteJSON(model.NewStatusUpdate(h.deps.GetStatus())); err != nil {
		_ = conn.Close()
		return
	}

	hub := h.deps.Hub()
	id := hub.Subscribe(conn)

	// Inbound frames are ignored; the read loop only detects disconnects
	// and answers protocol-level pings.
	go func() {
		defer hub.Unsubscribe(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
