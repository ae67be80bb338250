// Package handler exposes the inbound webhook over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	convmodels "maestro/internal/conversation/models"
	"maestro/internal/orchestrator/service"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
	"maestro/pkg/platform/httputil"
)

// Processor runs the message pipeline for one normalized inbound message.
type Processor interface {
	ProcessInbound(ctx context.Context, tenantID id.TenantID, in service.InboundMessage) (*service.Reply, error)
}

// Handler handles webhook deliveries. Channel-specific payload parsing lives
// at the edge; this endpoint accepts the normalized message shape only.
type Handler struct {
	processor Processor
	logger    *slog.Logger
}

func New(processor Processor, logger *slog.Logger) *Handler {
	return &Handler{processor: processor, logger: logger}
}

// Register registers the webhook route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhook/{tenantID}/message", h.handleInboundMessage)
}

type inboundRequest struct {
	Channel    string    `json:"channel"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Content    string    `json:"content"`
	ExternalID string    `json:"external_id,omitempty"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

type inboundResponse struct {
	ConversationID string  `json:"conversation_id"`
	MessageID      string  `json:"message_id"`
	AgentID        string  `json:"agent_id,omitempty"`
	Content        string  `json:"content"`
	Confidence     float64 `json:"confidence"`
}

func (h *Handler) handleInboundMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return
	}

	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	reply, err := h.processor.ProcessInbound(ctx, tenantID, service.InboundMessage{
		Channel:    convmodels.Channel(req.Channel),
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		Content:    req.Content,
		ExternalID: req.ExternalID,
		ReceivedAt: req.ReceivedAt,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) || dErrors.HasCode(err, dErrors.CodeBadRequest) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "inbound message processing failed",
			"tenant_id", tenantID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to process message"))
		return
	}

	resp := inboundResponse{
		ConversationID: reply.ConversationID.String(),
		MessageID:      reply.MessageID.String(),
		Content:        reply.Content,
		Confidence:     reply.Confidence,
	}
	if reply.AgentID != nil {
		resp.AgentID = reply.AgentID.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
