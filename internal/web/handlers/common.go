package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/verify"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// decodeJSON parses a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps typed domain failures to HTTP status codes. Pipeline
// outcomes carried inside an attempt view are not errors and never reach
// this mapping.
func statusForError(err error) int {
	switch {
	case errors.Is(err, attendance.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrSessionNotFound),
		errors.Is(err, verify.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, verify.ErrWrongStage):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
