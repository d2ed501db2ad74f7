package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chitalishte-ai/query-engine/internal/observability"
	"github.com/chitalishte-ai/query-engine/internal/sqlguard"
)

// SQLCheckHandler runs the validator and rewriter without executing.
type SQLCheckHandler struct {
	logger  *observability.Logger
	catalog *sqlguard.SchemaCatalog
}

// NewSQLCheckHandler creates a new SQL check handler.
func NewSQLCheckHandler(logger *observability.Logger, catalog *sqlguard.SchemaCatalog) *SQLCheckHandler {
	return &SQLCheckHandler{logger: logger, catalog: catalog}
}

// SQLCheckRequestDTO is the API request for a dry-run check.
type SQLCheckRequestDTO struct {
	SQL string `json:"sql"`
}

// SQLCheckResponseDTO is the API response for a dry-run check.
type SQLCheckResponseDTO struct {
	IsValid        bool     `json:"isValid"`
	Category       string   `json:"category"`
	Message        string   `json:"message,omitempty"`
	InvalidColumns []string `json:"invalidColumns,omitempty"`
	Rewritten      string   `json:"rewritten,omitempty"`
	AppliedPasses  []string `json:"appliedPasses,omitempty"`
}

// Check handles POST /api/v1/sql/check. Valid queries are also run
// through the rewriter so callers see the final executable text.
func (h *SQLCheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	var reqDTO SQLCheckRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result := sqlguard.Validate(reqDTO.SQL, h.catalog)

	respDTO := SQLCheckResponseDTO{
		IsValid:        result.IsValid,
		Category:       string(result.Category),
		Message:        result.Message,
		InvalidColumns: result.InvalidColumns,
	}

	if result.IsValid {
		rewritten := sqlguard.Rewrite(reqDTO.SQL, h.catalog)
		respDTO.Rewritten = rewritten.SQL
		respDTO.AppliedPasses = rewritten.AppliedPasses
	}

	writeJSON(w, http.StatusOK, respDTO)
}
