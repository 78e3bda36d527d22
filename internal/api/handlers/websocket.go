package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/graphvis3d/internal/apierr"
	"github.com/onnwee/graphvis3d/internal/cache"
	"github.com/onnwee/graphvis3d/internal/engine"
	"github.com/onnwee/graphvis3d/internal/logger"
	"github.com/onnwee/graphvis3d/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Frames queued per client; older ones are dropped for newer ones.
	clientBuffer = 2
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin: func(r *http.Request) bool {
		// CORS middleware handles origin policy
		return true
	},
}

// Message types sent to clients.
const (
	MessageFrame = "frame"
	MessageReset = "reset"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// clientMessage is what clients may send. "sync" asks for the latest frame.
type clientMessage struct {
	Type string `json:"type"`
}

// Client is one WebSocket connection.
type Client struct {
	hub  *FrameHub
	conn *websocket.Conn
	send chan []byte
}

// FrameHub pushes every published frame to all connected clients.
type FrameHub struct {
	runner LayoutRunner
	frames cache.Cache

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	sync       chan *Client
	done       chan struct{}

	mu sync.RWMutex
}

// NewFrameHub creates a hub. Call Run to start broadcasting.
func NewFrameHub(runner LayoutRunner, frames cache.Cache) *FrameHub {
	return &FrameHub{
		runner:     runner,
		frames:     frames,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sync:       make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run broadcasts frames until ctx is cancelled or the runner stops.
func (h *FrameHub) Run(ctx context.Context) {
	frames, unsubscribe := h.runner.Subscribe(4)
	defer unsubscribe()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()
			logger.Info("WebSocket client connected", "total_clients", n)
			h.deliver(client, h.encode(h.runner.Frame()))

		case client := <-h.unregister:
			h.remove(client)

		case client := <-h.sync:
			h.mu.RLock()
			ok := h.clients[client]
			h.mu.RUnlock()
			if ok {
				h.deliver(client, h.encode(h.runner.Frame()))
			}

		case f, ok := <-frames:
			if !ok {
				return
			}
			msg := h.encode(f)
			if msg == nil {
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				h.deliver(client, msg)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *FrameHub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.WebSocketConnections.Dec()
		logger.Info("WebSocket client disconnected", "total_clients", len(h.clients))
	}
}

func (h *FrameHub) shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		metrics.WebSocketConnections.Dec()
	}
}

// Clients returns the number of connected clients.
func (h *FrameHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// encode builds the message for f; a nil frame becomes a reset message.
func (h *FrameHub) encode(f *engine.Frame) []byte {
	env := envelope{Type: MessageReset}
	if f != nil {
		payload, err := encodeFrame(h.frames, f)
		if err != nil {
			logger.Error("Failed to encode frame for WebSocket broadcast", "run", f.Run, "tick", f.Tick, "error", err)
			return nil
		}
		env = envelope{Type: MessageFrame, Payload: payload}
	}
	data, err := json.Marshal(env)
	if err != nil {
		logger.Error("Failed to marshal WebSocket message", "error", err)
		return nil
	}
	return data
}

// deliver queues msg for client, dropping the oldest queued frame when the
// client is behind. Only the hub goroutine sends on client.send.
func (h *FrameHub) deliver(client *Client, msg []byte) {
	if msg == nil {
		return
	}
	for {
		select {
		case client.send <- msg:
			metrics.WebSocketMessagesSent.Inc()
			return
		default:
		}
		select {
		case <-client.send:
			metrics.WebSocketMessagesDropped.Inc()
		default:
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket unexpected close", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "sync" {
			continue
		}
		select {
		case c.hub.sync <- c:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleWebSocket streams frames to the connecting client, starting with
// the latest one.
// GET /ws
func (h *FrameHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Frame stream is shutting down"))
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logger.WarnContext(r.Context(), "Failed to upgrade to WebSocket", "error", err)
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
