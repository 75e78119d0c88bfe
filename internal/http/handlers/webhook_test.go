package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreysiniy/tg-med-bot/internal/dialog"
)

type stubEngine struct {
	last  dialog.Inbound
	reply dialog.Reply
}

func (s *stubEngine) HandleMessage(_ context.Context, in dialog.Inbound) dialog.Reply {
	s.last = in
	return s.reply
}

func TestHandleMessage(t *testing.T) {
	engine := &stubEngine{reply: dialog.Reply{Messages: []dialog.Message{
		{Text: "Choose a clinic:", Keyboard: [][]string{{"City Clinic"}, {"Cancel"}}},
	}}}
	h := NewWebhookHandler(engine, nil)

	body := `{"user_id":"42","text":"/new_appointment","first_name":"Pat"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/message", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var reply dialog.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "Choose a clinic:", reply.Messages[0].Text)

	assert.Equal(t, "42", engine.last.UserID)
	assert.Equal(t, "42", engine.last.ChatID) // defaults to the user id
	assert.Equal(t, "Pat", engine.last.FirstName)
}

func TestHandleMessageValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "broken json", body: `{"user_id":`},
		{name: "missing user id", body: `{"text":"hi"}`},
		{name: "blank text", body: `{"user_id":"42","text":"   "}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := &stubEngine{}
			h := NewWebhookHandler(engine, nil)

			req := httptest.NewRequest(http.MethodPost, "/webhook/message", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.HandleMessage(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, engine.last.UserID)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewWebhookHandler(&stubEngine{}, nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNewWebhookHandlerPanicsOnNilEngine(t *testing.T) {
	assert.Panics(t, func() { NewWebhookHandler(nil, nil) })
}
