package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/internal/orchestrator/handler"
	"maestro/internal/orchestrator/service"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
)

type stubProcessor struct {
	reply    *service.Reply
	err      error
	tenantID id.TenantID
	in       service.InboundMessage
}

func (p *stubProcessor) ProcessInbound(_ context.Context, tenantID id.TenantID, in service.InboundMessage) (*service.Reply, error) {
	p.tenantID = tenantID
	p.in = in
	if p.err != nil {
		return nil, p.err
	}
	return p.reply, nil
}

func newServer(p *stubProcessor) *httptest.Server {
	r := chi.NewRouter()
	h := handler.New(p, slog.New(slog.DiscardHandler))
	h.Register(r)
	return httptest.NewServer(r)
}

func postMessage(t *testing.T, srv *httptest.Server, tenantID string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/webhook/"+tenantID+"/message", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestHandleInboundMessage(t *testing.T) {
	tenantID := id.TenantID(uuid.New())
	agentID := id.AgentID(uuid.New())
	reply := &service.Reply{
		ConversationID: id.ConversationID(uuid.New()),
		MessageID:      id.MessageID(uuid.New()),
		AgentID:        &agentID,
		Content:        "Olá, Maria!",
		Confidence:     0.44,
	}

	t.Run("success", func(t *testing.T) {
		p := &stubProcessor{reply: reply}
		srv := newServer(p)
		defer srv.Close()

		resp := postMessage(t, srv, tenantID.String(), map[string]string{
			"channel":   "whatsapp",
			"sender_id": "+5511988887777",
			"content":   "oi",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, reply.ConversationID.String(), body["conversation_id"])
		assert.Equal(t, agentID.String(), body["agent_id"])
		assert.Equal(t, "Olá, Maria!", body["content"])
		assert.InDelta(t, 0.44, body["confidence"].(float64), 1e-9)

		assert.Equal(t, tenantID, p.tenantID)
		assert.Equal(t, "+5511988887777", p.in.SenderID)
	})

	t.Run("invalid tenant id", func(t *testing.T) {
		srv := newServer(&stubProcessor{reply: reply})
		defer srv.Close()

		resp := postMessage(t, srv, "not-a-uuid", map[string]string{"content": "oi"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := newServer(&stubProcessor{reply: reply})
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/webhook/"+tenantID.String()+"/message", "application/json", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("validation errors pass through", func(t *testing.T) {
		p := &stubProcessor{err: dErrors.New(dErrors.CodeInvalidInput, "message content is required")}
		srv := newServer(p)
		defer srv.Close()

		resp := postMessage(t, srv, tenantID.String(), map[string]string{"sender_id": "x"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "invalid_input", body["error"])
		assert.Equal(t, "message content is required", body["error_description"])
	})

	t.Run("pipeline failures are masked", func(t *testing.T) {
		p := &stubProcessor{err: dErrors.New(dErrors.CodeInternal, "store unavailable")}
		srv := newServer(p)
		defer srv.Close()

		resp := postMessage(t, srv, tenantID.String(), map[string]string{"sender_id": "x", "content": "oi"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.NotContains(t, body["error_description"], "store unavailable")
	})
}
