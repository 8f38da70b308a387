package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	// Dashboards are served from other origins on the site network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans dashboard updates out to every connected websocket client.  The
// client set is owned by the Run loop.
type Hub struct {
	logger     *log.Logger
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	count      atomic.Int32
	now        func() time.Time
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Run serves the hub until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.Close()
				delete(h.clients, c)
			}
			h.count.Store(0)
			return

		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int32(len(h.clients)))
			h.logger.Printf("ws: client connected (total %d)", len(h.clients))

		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				_ = c.Close()
				h.count.Store(int32(len(h.clients)))
				h.logger.Printf("ws: client disconnected (total %d)", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.logger.Printf("ws: write failed, dropping client: %v", err)
					delete(h.clients, c)
					_ = c.Close()
				}
			}
			h.count.Store(int32(len(h.clients)))
		}
	}
}

// Publish wraps data in an update envelope and queues it for every client.
// A full queue drops the update.
func (h *Hub) Publish(kind string, data any) {
	msg, err := json.Marshal(types.Update{
		Type:      kind,
		Data:      data,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Printf("ws: marshal %s update: %v", kind, err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Printf("ws: broadcast queue full, dropping %s update", kind)
	}
}

// ServeWS upgrades the request and registers the connection.  Inbound
// messages are read and discarded so close frames are noticed.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws: upgrade failed: %v", err)
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
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
					h.logger.Printf("ws: read error: %v", err)
				}
				return
			}
		}
	}()
}
