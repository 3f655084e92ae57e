// Package pipeline exposes the normalization pipeline over HTTP.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	core "financial_dashboard/pkg/core/pipeline"
	"financial_dashboard/pkg/models"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 10 << 20

// ProjectionRequest is the body of POST /api/projection. Fields are keyed by
// canonical name and already expressed in Unit.
type ProjectionRequest struct {
	Fields map[string]float64 `json:"fields"`
	Unit   models.Unit        `json:"unit,omitempty"`
	core.ProjectionRequest
}

// ProjectionResponse is returned by POST /api/projection.
type ProjectionResponse struct {
	Projection *core.ProjectionResult   `json:"projection,omitempty"`
	Issues     []models.ValidationIssue `json:"issues"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the pipeline endpoints.
type Handler struct {
	Pipeline *core.Pipeline
	log      zerolog.Logger
}

func NewHandler(p *core.Pipeline, log zerolog.Logger) *Handler {
	return &Handler{Pipeline: p, log: log}
}

// Register mounts the endpoints on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/health", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/pipeline/run", h.HandleRun).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/projection", h.HandleProjection).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/charts", h.HandleCharts).Methods(http.MethodGet)
	r.HandleFunc("/api/fields", h.HandleFields).Methods(http.MethodGet)
	r.HandleFunc("/api/overrides/{client}", h.HandleGetOverrides).Methods(http.MethodGet)
	r.HandleFunc("/api/overrides/{client}", h.HandlePutOverrides).Methods(http.MethodPut, http.MethodOptions)
}

// NewRouter returns a router with CORS and the pipeline endpoints.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(CORS)
	h.Register(r)
	return r
}

// CORS adds permissive headers for local dashboards and answers preflight
// requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var in core.Input
	if err := decode(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if len(in.Fields) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "fields must not be empty"})
		return
	}

	res, err := h.Pipeline.Run(r.Context(), in)
	if err != nil {
		h.log.Error().Err(err).Msg("pipeline run failed")
		status := http.StatusInternalServerError
		if errors.Is(err, r.Context().Err()) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleProjection(w http.ResponseWriter, r *http.Request) {
	var req ProjectionRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	unit := req.Unit
	if unit == "" {
		unit = models.UnitEuros
	}
	if !unit.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown unit %q", req.Unit)})
		return
	}

	base := models.NewFieldSet(unit)
	for name, v := range req.Fields {
		f, ok := models.ParseField(name)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown canonical field %q", name)})
			return
		}
		base.Set(f, v, models.ProvenanceReported)
	}

	proj, issues := h.Pipeline.Project(base, req.ProjectionRequest)
	if issues == nil {
		issues = []models.ValidationIssue{}
	}
	status := http.StatusOK
	if proj == nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, ProjectionResponse{Projection: proj, Issues: issues})
}

func (h *Handler) HandleCharts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Pipeline.ChartRegistry().Definitions())
}

func (h *Handler) HandleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Vocabulary())
}

func (h *Handler) HandleGetOverrides(w http.ResponseWriter, r *http.Request) {
	client := mux.Vars(r)["client"]
	m := h.Pipeline.Overrides().For(client)
	if m == nil {
		m = map[string]models.CanonicalField{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"client_id": client, "mappings": m})
}

// HandlePutOverrides merges raw name -> canonical mappings for a client and
// persists the registry.
func (h *Handler) HandlePutOverrides(w http.ResponseWriter, r *http.Request) {
	reg := h.Pipeline.Overrides()
	if reg == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "client overrides are not enabled"})
		return
	}
	client := mux.Vars(r)["client"]
	var mappings map[string]models.CanonicalField
	if err := decode(w, r, &mappings); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	for raw, canonical := range mappings {
		if err := reg.Set(client, raw, canonical); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	if err := reg.SaveToFile(""); err != nil {
		h.log.Error().Err(err).Str("client", client).Msg("persist overrides")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "overrides updated but not persisted"})
		return
	}
	h.log.Info().Str("client", client).Int("mappings", len(mappings)).Msg("client overrides updated")
	writeJSON(w, http.StatusOK, map[string]interface{}{"client_id": client, "mappings": reg.For(client)})
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
