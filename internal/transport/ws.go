package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"go-plate-recognizer/internal/logger"
	"go-plate-recognizer/internal/observer"
)

const writeWait = 5 * time.Second

// Hub pushes recognition events to websocket clients. It is an observer; the
// event loop must be running (Run) before clients connect.
type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	clients    atomic.Int64
}

var _ observer.Observer = (*Hub)(nil)

// NewHub creates a hub that queues up to buffer messages before dropping.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, buffer),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*websocket.Conn]struct{})
	defer func() {
		close(h.done)
		for conn := range clients {
			conn.Close()
		}
		h.clients.Store(0)
	}()

	drop := func(conn *websocket.Conn) {
		if _, ok := clients[conn]; ok {
			delete(clients, conn)
			conn.Close()
			h.clients.Store(int64(len(clients)))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-h.register:
			clients[conn] = struct{}{}
			h.clients.Store(int64(len(clients)))
			logger.WithField("clients", len(clients)).Debug("websocket client connected")
		case conn := <-h.unregister:
			drop(conn)
			logger.WithField("clients", len(clients)).Debug("websocket client disconnected")
		case msg := <-h.broadcast:
			for conn := range clients {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					logger.WithError(err).Warn("websocket write failed, dropping client")
					drop(conn)
				}
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int64 {
	return h.clients.Load()
}

// OnEvent queues the event for every client; it never blocks the publisher.
func (h *Hub) OnEvent(_ context.Context, event observer.RecognitionEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		logger.WithError(err).Error("failed to encode event")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		logger.WithField("event_type", event.EventType).Warn("websocket queue full, dropping event")
	}
}

func (h *Hub) GetObserverName() string {
	return "websocket_observer"
}

// Serve upgrades the request and keeps the connection registered until the
// client goes away.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.WithError(err).Debug("websocket closed unexpectedly")
				}
				return
			}
		}
	}()
}
