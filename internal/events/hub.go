package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mmcgeh6/acjobs-engine/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served from arbitrary hosts in development.
		return true
	},
}

// Hub fans progress events out to websocket clients. Events are marshaled
// once per broadcast; each connection has its own write mutex so concurrent
// publishers never interleave frames.
type Hub struct {
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex
	logger      *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:     make(map[*websocket.Conn]bool),
		clientMutex: make(map[*websocket.Conn]*sync.Mutex),
		logger:      log,
	}
}

// Handle upgrades the request and keeps the connection registered until the
// client goes away. Inbound messages are read and dropped; the socket is
// one-way.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade websocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("clients", total).Debug("Websocket client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.WithField("clients", remaining).Debug("Websocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).Warn("Websocket read error")
			}
			return
		}
	}
}

// Publish implements ProgressSink by broadcasting to every client.
func (h *Hub) Publish(ctx context.Context, event ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal progress event")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mu := mutexes[i]
		mu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mu.Unlock()

		if err != nil {
			h.logger.WithError(err).Warn("Failed to send progress event to client")
		}
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
