package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/vcon-datasets/internal/model"
)

// OutcomeSource exposes recent ingestion outcomes.
type OutcomeSource interface {
	Get(name string) (model.IngestionOutcome, bool)
	List() []model.IngestionOutcome
}

// IngestionHandler reports the outcome of recent pipeline runs from both intake paths.
type IngestionHandler struct {
	outcomes OutcomeSource
}

// NewIngestionHandler creates a new ingestion handler.
func NewIngestionHandler(outcomes OutcomeSource) *IngestionHandler {
	return &IngestionHandler{outcomes: outcomes}
}

// List handles GET /api/v1/ingestions
func (h *IngestionHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.outcomes.List()
	total := len(all)

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := all[:0:0]
		for _, o := range all {
			if string(o.Status) == status {
				filtered = append(filtered, o)
			}
		}
		all = filtered
		total = len(all)
	}

	if len(all) > limit {
		all = all[:limit]
	}

	writeJSON(w, http.StatusOK, model.ListOutcomesResponse{
		Ingestions: all,
		Total:      total,
	})
}

// Get handles GET /api/v1/ingestions/{name}
func (h *IngestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	outcome, ok := h.outcomes.Get(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "ingestion not found")
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}
