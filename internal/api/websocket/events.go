package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/drujensen/aibrowser/internal/domain/events"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Envelope is the JSON frame pushed to every subscriber.
type Envelope struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	Data     any    `json:"data,omitempty"`
}

type client struct {
	conn     *websocket.Conn
	threadID string
	mu       sync.Mutex
}

// EventHub relays domain events to websocket clients. A client that passes
// ?thread_id= only receives events for that thread.
type EventHub struct {
	upgrader websocket.Upgrader
	clients  map[*client]bool
	mu       sync.RWMutex
	cancels  []func()
	logger   *zap.Logger
}

func NewEventHub(logger *zap.Logger) *EventHub {
	h := &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]bool),
		logger:  logger,
	}

	h.cancels = append(h.cancels,
		events.SubscribeToToolCallEvents(func(data events.ToolCallEventData) {
			h.Broadcast(Envelope{Type: "tool_call", ThreadID: data.Event.ThreadID, Data: data.Event})
		}),
		events.SubscribeToModelCallEvents(func(data events.ModelCallEventData) {
			h.Broadcast(Envelope{Type: "model_call", ThreadID: data.Event.ThreadID, Data: data.Event})
		}),
		events.SubscribeToScreenshotEvents(func(data events.ScreenshotEventData) {
			h.Broadcast(Envelope{Type: "screenshot", Data: data.Record})
		}),
		events.SubscribeToMessageHistoryEvents(func(data events.MessageHistoryEventData) {
			h.Broadcast(Envelope{
				Type:     "message_history_refresh",
				ThreadID: data.ThreadID,
				Data:     map[string]int{"appended": len(data.Messages)},
			})
		}),
	)
	return h
}

// Close unsubscribes from the event bus and drops every client.
func (h *EventHub) Close() {
	for _, cancel := range h.cancels {
		cancel()
	}
	h.cancels = nil

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
	h.clients = make(map[*client]bool)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends env to every matching client. Clients that fail a write are dropped.
func (h *EventHub) Broadcast(env Envelope) {
	message, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.threadID == "" || env.ThreadID == "" || c.threadID == env.ThreadID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, message)
		c.mu.Unlock()
		if err != nil {
			h.logger.Warn("Failed to send WebSocket message to client, removing from clients", zap.Error(err))
			h.remove(c)
		}
	}
}

func (h *EventHub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// Handle upgrades the request and keeps the connection until the client leaves.
func (h *EventHub) Handle(ctx echo.Context) error {
	conn, err := h.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return err
	}

	c := &client{conn: conn, threadID: ctx.QueryParam("thread_id")}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.logger.Info("WebSocket client connected", zap.String("thread_id", c.threadID))

	defer func() {
		h.remove(c)
		h.logger.Info("WebSocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
