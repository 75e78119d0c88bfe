// Package handlers contains the HTTP-facing chat transport: a webhook that
// feeds inbound messages to the dialog engine and returns its reply.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/andreysiniy/tg-med-bot/internal/dialog"
	"github.com/andreysiniy/tg-med-bot/pkg/logging"
)

// DialogEngine processes one inbound chat message.
type DialogEngine interface {
	HandleMessage(ctx context.Context, in dialog.Inbound) dialog.Reply
}

// WebhookHandler accepts chat messages over plain HTTP. One POST carries one
// user message; the response body carries everything to send back.
type WebhookHandler struct {
	engine DialogEngine
	logger *logging.Logger
}

// NewWebhookHandler creates the webhook transport.
func NewWebhookHandler(engine DialogEngine, logger *logging.Logger) *WebhookHandler {
	if engine == nil {
		panic("handlers: dialog engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{engine: engine, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleMessage processes POST /webhook/message.
func (h *WebhookHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var in dialog.Inbound
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if in.UserID == "" || strings.TrimSpace(in.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id and text are required"})
		return
	}
	if in.ChatID == "" {
		in.ChatID = in.UserID
	}

	reply := h.engine.HandleMessage(r.Context(), in)
	writeJSON(w, http.StatusOK, reply)
}

// HealthCheck reports liveness.
func (h *WebhookHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
