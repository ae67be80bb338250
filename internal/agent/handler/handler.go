// Package handler exposes agent roster administration over HTTP. All routes
// require a valid admin bearer token.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"maestro/internal/agent/models"
	"maestro/internal/agent/service"
	"maestro/internal/platform/middleware"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
	"maestro/pkg/platform/httputil"
)

// Service defines the interface for agent administration.
type Service interface {
	Create(ctx context.Context, tenantID id.TenantID, in service.CreateInput) (*models.Agent, error)
	List(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error)
	SetEnabled(ctx context.Context, agentID id.AgentID, enabled bool) (*models.Agent, error)
}

// Handler handles agent administration endpoints.
type Handler struct {
	agents       Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(agents Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{agents: agents, logger: logger, jwtValidator: jwtValidator}
}

// Register registers the admin agent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/tenants/{tenantID}/agents", func(admin chi.Router) {
		admin.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		admin.Get("/", h.handleList)
		admin.Post("/", h.handleCreate)
		admin.Post("/{agentID}/enable", h.setEnabled(true))
		admin.Post("/{agentID}/disable", h.setEnabled(false))
	})
}

type createRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Kind         string   `json:"kind"`
	Keywords     []string `json:"keywords"`
	Priority     int      `json:"priority"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	agent, err := h.agents.Create(ctx, tenantID, service.CreateInput{
		Name:         req.Name,
		Description:  req.Description,
		Kind:         models.Kind(req.Kind),
		Keywords:     req.Keywords,
		Priority:     req.Priority,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		h.writeServiceError(w, r, "failed to create agent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, agent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return
	}

	agents, err := h.agents.List(ctx, tenantID)
	if err != nil {
		h.writeServiceError(w, r, "failed to list agents", err)
		return
	}
	if agents == nil {
		agents = []*models.Agent{}
	}
	httputil.WriteJSON(w, http.StatusOK, agents)
}

func (h *Handler) setEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		agentID, err := id.ParseAgentID(chi.URLParam(r, "agentID"))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid agent id"))
			return
		}

		agent, err := h.agents.SetEnabled(ctx, agentID, enabled)
		if err != nil {
			h.writeServiceError(w, r, "failed to update agent", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, agent)
	}
}

// writeServiceError passes coded client errors through and masks everything
// else as internal.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeNotFound,
		dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		httputil.WriteError(w, err)
	default:
		h.logger.ErrorContext(r.Context(), msg,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
	}
}
