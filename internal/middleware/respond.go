package middleware

import (
	"encoding/json"
	"net/http"

	"genstudio/internal/domain"
)

type errorBody struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty"`
}

// writeError renders the same envelope the handlers use so middleware
// rejections look like any other API error.
func writeError(w http.ResponseWriter, status int, kind domain.ErrorKind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Message: msg, ErrorKind: kind})
}
