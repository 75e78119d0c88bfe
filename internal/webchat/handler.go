// Package webchat is the WebSocket chat transport: one socket per user, JSON
// frames in both directions, replies produced synchronously by the dialog
// engine.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/andreysiniy/tg-med-bot/internal/dialog"
	"github.com/andreysiniy/tg-med-bot/pkg/logging"
)

// DialogEngine processes one inbound chat message.
type DialogEngine interface {
	HandleMessage(ctx context.Context, in dialog.Inbound) dialog.Reply
}

// InboundFrame is what the chat client sends.
type InboundFrame struct {
	Type      string `json:"type"` // "message", "ping"
	Text      string `json:"text,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// OutboundFrame is what we send to the chat client.
type OutboundFrame struct {
	Type     string           `json:"type"` // "reply", "session", "pong", "error"
	UserID   string           `json:"user_id,omitempty"`
	Messages []dialog.Message `json:"messages,omitempty"`
	Text     string           `json:"text,omitempty"`
}

// Handler manages web chat connections.
type Handler struct {
	engine DialogEngine
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[string]*wsConn // user id -> active connection
}

type wsConn struct {
	conn *websocket.Conn
}

// NewHandler creates the WebSocket transport.
func NewHandler(engine DialogEngine, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("webchat: dialog engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:  engine,
		logger:  logger,
		clients: make(map[string]*wsConn),
	}
}

// generateUserID creates a random identity for clients that did not bring one.
func generateUserID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and serves the chat session.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = generateUserID()
	}

	h.register(userID, conn)
	defer h.unregister(userID, conn)

	// Tell the client which identity this socket speaks for, so it can
	// reconnect as the same user.
	if err := websocket.JSON.Send(conn, OutboundFrame{Type: "session", UserID: userID}); err != nil {
		return
	}

	h.logger.Info("webchat connected", "user_id", userID)

	for {
		var frame InboundFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if err != io.EOF {
				h.logger.Info("webchat receive failed", "user_id", userID, "error", err)
			}
			return
		}

		switch frame.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "pong"})
		case "message":
			if strings.TrimSpace(frame.Text) == "" {
				_ = websocket.JSON.Send(conn, OutboundFrame{Type: "error", Text: "empty message"})
				continue
			}
			reply := h.engine.HandleMessage(r.Context(), dialog.Inbound{
				UserID:    userID,
				ChatID:    userID,
				Username:  frame.Username,
				FirstName: frame.FirstName,
				LastName:  frame.LastName,
				Text:      frame.Text,
			})
			if err := websocket.JSON.Send(conn, OutboundFrame{Type: "reply", Messages: reply.Messages}); err != nil {
				return
			}
		default:
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "error", Text: "unknown frame type"})
		}
	}
}

// register makes conn the user's active connection, displacing a previous one.
func (h *Handler) register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.clients[userID]; ok {
		_ = prev.conn.Close()
	}
	h.clients[userID] = &wsConn{conn: conn}
}

func (h *Handler) unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[userID]; ok && cur.conn == conn {
		delete(h.clients, userID)
	}
	_ = conn.Close()
}

// ActiveConnections reports how many sockets are open.
func (h *Handler) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
