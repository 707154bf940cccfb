package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/app"
)

const (
	writeWait    = 5 * time.Second
	statusBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StatusSource publishes capture snapshots.
type StatusSource interface {
	Latest() app.Snapshot
	Subscribe(buffer int) (<-chan app.Snapshot, func())
}

// StatusHandler pushes capture status snapshots to websocket clients.
type StatusHandler struct {
	source StatusSource
	log    *zap.Logger
}

// NewStatusHandler creates a StatusHandler for the given source.
func NewStatusHandler(source StatusSource, log *zap.Logger) *StatusHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusHandler{source: source, log: log}
}

// ServeHTTP upgrades the connection, sends the current snapshot and then
// every update until either side closes.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.source.Subscribe(statusBuffer)
	defer unsubscribe()

	// Reading detects the client closing the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.send(conn, h.source.Latest()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := h.send(conn, snap); err != nil {
				h.log.Debug("status client gone", zap.Error(err))
				return
			}
		}
	}
}

func (h *StatusHandler) send(conn *websocket.Conn, snap app.Snapshot) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}
