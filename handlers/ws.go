// File: handlers/ws.go
package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"tripsync/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Hub tracks the open websocket connections per conversation and fans
// itinerary updates out to them. Heartbeat pings are answered here and never
// reach the push path.
type Hub struct {
	// StateProvider returns the latest itinerary payload for a conversation,
	// replayed on request_state. Nil payloads are ignored.
	StateProvider func(conversationID string) json.RawMessage

	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[string][]*hubClient
}

type hubClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (hc *hubClient) send(v any) error {
	hc.writeMu.Lock()
	defer hc.writeMu.Unlock()
	return hc.conn.WriteJSON(v)
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The mock backend serves local frontends on other ports.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  utils.GetLogger(),
		clients: make(map[string][]*hubClient),
	}
}

// Handle serves GET /ws/:conversationId.
func (h *Hub) Handle(c *gin.Context) {
	conversationID := c.Param("conversationId")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &hubClient{conn: conn}
	h.mu.Lock()
	h.clients[conversationID] = append(h.clients[conversationID], client)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", zap.String("conversation_id", conversationID))

	defer func() {
		h.remove(conversationID, client)
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}

		switch gjson.GetBytes(data, "type").String() {
		case "ping":
			if err := client.send(gin.H{"type": "pong", "timestamp": time.Now().UnixMilli()}); err != nil {
				return
			}
		case "request_state":
			if h.StateProvider == nil {
				continue
			}
			if payload := h.StateProvider(conversationID); payload != nil {
				if err := client.send(gin.H{"type": "itinerary_update", "itinerary": payload}); err != nil {
					return
				}
			}
		default:
			// Unknown client messages are ignored; the mock is permissive.
		}
	}
}

// Push sends a message to every open connection of a conversation.
func (h *Hub) Push(conversationID string, v any) {
	h.mu.Lock()
	clients := make([]*hubClient, len(h.clients[conversationID]))
	copy(clients, h.clients[conversationID])
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.send(v); err != nil {
			h.logger.Debug("websocket push failed", zap.Error(err))
		}
	}
}

// Close drops every connection, for server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for _, client := range clients {
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = client.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = client.conn.Close()
		}
	}
	h.clients = make(map[string][]*hubClient)
}

func (h *Hub) remove(conversationID string, client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[conversationID]
	for i, cl := range clients {
		if cl == client {
			h.clients[conversationID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.clients[conversationID]) == 0 {
		delete(h.clients, conversationID)
	}
}
