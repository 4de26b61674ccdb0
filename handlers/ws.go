package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/dkotenko/taskvault/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub fans task events out to every open WebSocket connection of a user.
type Hub struct {
	connections map[uuid.UUID]map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewHub() *Hub {
	return &Hub{connections: make(map[uuid.UUID]map[*websocket.Conn]bool)}
}

// Broadcast sends a task event to all connections of the given user.
func (h *Hub) Broadcast(userID uuid.UUID, event string, task *models.Task) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.connections[userID]
	if !exists {
		return
	}

	message, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"task_id": task.ID,
		"title":   task.Title,
		"status":  task.Status,
	})
	if err != nil {
		log.Printf("Failed to marshal task event: %v", err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Failed to send WebSocket message: %v", err)
			delete(conns, conn)
			conn.Close()
		}
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := r.RemoteAddr
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP) {
		SendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Adjust for production (e.g., check specific origins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.Hub.mutex.Lock()
	if h.Hub.connections[userID] == nil {
		h.Hub.connections[userID] = make(map[*websocket.Conn]bool)
	}
	h.Hub.connections[userID][conn] = true
	h.Hub.mutex.Unlock()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			h.Hub.mutex.Lock()
			delete(h.Hub.connections[userID], conn)
			h.Hub.mutex.Unlock()
			conn.Close()
			return
		}
		// incoming messages are ignored; the socket is server-push only
	}
}
