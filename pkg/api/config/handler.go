// Package config exposes the LLM provider selection used by deep validation.
package config

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"financial_dashboard/pkg/core/agent"
)

type Response struct {
	ActiveProvider    string   `json:"active_provider"`
	ValidatorProvider string   `json:"validator_provider"`
	Available         []string `json:"available"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr *agent.Manager
	log      zerolog.Logger
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager, log zerolog.Logger) *Handler {
	return &Handler{AgentMgr: agentMgr, log: log}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/config", h.HandleConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config/switch", h.HandleSwitch).Methods(http.MethodPost, http.MethodOptions)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		ActiveProvider:    h.AgentMgr.GetActiveProvider(),
		ValidatorProvider: h.AgentMgr.ProviderName(agent.FinancialValidator),
		Available:         h.AgentMgr.Providers(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.AgentMgr.SetGlobalProvider(req.Provider); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Info().Str("provider", req.Provider).Msg("provider switched")
	h.HandleConfig(w, r)
}
