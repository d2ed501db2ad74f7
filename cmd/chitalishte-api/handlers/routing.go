package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chitalishte-ai/query-engine/internal/observability"
	"github.com/chitalishte-ai/query-engine/internal/routing"
)

// RoutingHandler exposes the intent router for inspection.
type RoutingHandler struct {
	logger *observability.Logger
	router *routing.HybridRouter
}

// NewRoutingHandler creates a new routing handler.
func NewRoutingHandler(logger *observability.Logger, router *routing.HybridRouter) *RoutingHandler {
	return &RoutingHandler{logger: logger, router: router}
}

// ClassifyRequestDTO is the API request for intent classification.
type ClassifyRequestDTO struct {
	Query string `json:"query"`
}

// ClassifyResponseDTO is the API response for intent classification.
type ClassifyResponseDTO struct {
	Intent         string   `json:"intent"`
	Confidence     float64  `json:"confidence"`
	MatchedSignals []string `json:"matchedSignals,omitempty"`
	Explanation    string   `json:"explanation"`
}

// Classify handles POST /api/v1/routing/classify.
func (h *RoutingHandler) Classify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO ClassifyRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	decision, err := h.router.Route(ctx, reqDTO.Query)
	if err != nil {
		h.logger.Error().Err(err).Msg("Classification failed")
		writeError(w, http.StatusInternalServerError, "classification failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ClassifyResponseDTO{
		Intent:         string(decision.Intent),
		Confidence:     decision.Confidence,
		MatchedSignals: decision.MatchedSignals,
		Explanation:    decision.Explanation,
	})
}
