package adapters

import (
	"encoding/json"
	"sync"

	"freight-tracker/internal/core/logger"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

const sendBufferSize = 8

// Hub fans dashboard snapshots out to connected websocket clients. Slow
// clients are skipped, never allowed to stall a broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  logger.Get(),
	}
}

// Broadcast marshals the payload once and queues it on every client.
func (h *Hub) Broadcast(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, send := range h.clients {
		select {
		case send <- data:
		default:
			h.logger.Debug("send buffer full, dropping frame",
				zap.String("remote", conn.RemoteAddr().String()),
			)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle serves one websocket connection until it drops. It is the body for
// a websocket.New route handler.
func (h *Hub) Handle(conn *websocket.Conn) {
	send := make(chan []byte, sendBufferSize)

	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	h.logger.Info("dashboard client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Writer: drain the send queue onto the socket.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	// Reader: clients send nothing meaningful; reading just detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Unregister before closing send so no broadcast races the close.
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	close(send)
	<-done
	conn.Close()
	h.logger.Info("dashboard client disconnected", zap.String("remote", conn.RemoteAddr().String()))
}
