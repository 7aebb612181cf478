package config

import (
	"net/http"

	"finpulse/pkg/api/render"
	"finpulse/pkg/core/agent"

	"github.com/go-chi/chi/v5"
)

type Response struct {
	ActiveProvider string   `json:"active_provider"`
	Available      []string `json:"available"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr *agent.Manager
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager) *Handler {
	return &Handler{
		AgentMgr: agentMgr,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/providers", h.HandleConfig)
	r.Post("/providers/active", h.HandleSwitch)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, h.response())
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	if err := h.AgentMgr.SetGlobalProvider(req.Provider); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	render.JSON(w, http.StatusOK, h.response())
}

func (h *Handler) response() Response {
	return Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Available(),
	}
}
