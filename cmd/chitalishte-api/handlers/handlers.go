// Package handlers provides HTTP handlers for the chitalishte API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorDTO is the error envelope returned on failed requests.
type ErrorDTO struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorDTO{Error: message, Details: details})
}
