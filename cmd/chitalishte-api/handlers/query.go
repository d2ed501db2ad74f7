package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chitalishte-ai/query-engine/internal/engine"
	"github.com/chitalishte-ai/query-engine/internal/observability"
)

// QueryHandler handles chat question requests.
type QueryHandler struct {
	logger   *observability.Logger
	pipeline *engine.Pipeline
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(logger *observability.Logger, pipeline *engine.Pipeline) *QueryHandler {
	return &QueryHandler{logger: logger, pipeline: pipeline}
}

// QueryRequestDTO is the API request for a chat question.
type QueryRequestDTO struct {
	Question string `json:"question"`
}

// QueryResponseDTO is the API response for a chat question.
type QueryResponseDTO struct {
	RequestID  string             `json:"requestId"`
	Intent     string             `json:"intent"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
	SQL        *engine.SQLOutcome `json:"sql,omitempty"`
	Passages   []engine.Passage   `json:"passages,omitempty"`
	LatencyMs  int64              `json:"latencyMs"`
	Cached     bool               `json:"cached"`
}

// Query handles POST /api/v1/chat/query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if reqDTO.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required", "")
		return
	}

	answer, err := h.pipeline.Answer(ctx, reqDTO.Question)
	if err != nil {
		h.logger.Error().Err(err).Msg("Answer pipeline failed")
		writeError(w, http.StatusInternalServerError, "query failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, QueryResponseDTO{
		RequestID:  answer.RequestID,
		Intent:     string(answer.Decision.Intent),
		Confidence: answer.Decision.Confidence,
		Reasoning:  answer.Decision.Explanation,
		SQL:        answer.SQL,
		Passages:   answer.Passages,
		LatencyMs:  answer.LatencyMs,
		Cached:     answer.Cached,
	})
}
