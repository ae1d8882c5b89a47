package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/verify"
)

// SessionsHandler manages instructor-facing attendance sessions.
type SessionsHandler struct {
	sessions store.SessionRepository
	records  store.AttendanceRepository
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(sessions store.SessionRepository, records store.AttendanceRepository) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, records: records}
}

type createSessionRequest struct {
	Title     string               `json:"title"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
	Geofence  *attendance.Geofence `json:"geofence,omitempty"`
}

// Create handles POST /sessions. The code is generated server-side; clients
// never pick their own.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Geofence != nil && req.Geofence.RadiusMeters <= 0 {
		respondError(w, http.StatusBadRequest, "geofence radius must be positive")
		return
	}

	code, err := verify.GenerateCode()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate session code")
		return
	}

	session := &attendance.Session{
		ID:        uuid.New(),
		Code:      code,
		Title:     req.Title,
		ExpiresAt: req.ExpiresAt,
		Geofence:  req.Geofence,
		Status:    attendance.SessionStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.sessions.Create(r.Context(), session); err != nil {
		log.Printf("failed to create session %q: %v", sanitizeForLog(req.Title), err)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// Close handles POST /sessions/{id}/close.
func (h *SessionsHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.sessions.Close(r.Context(), id); err != nil {
		if errors.Is(err, attendance.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to close session")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(attendance.SessionStatusClosed)})
}

// Attendance handles GET /sessions/{id}/attendance.
func (h *SessionsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if _, err := h.sessions.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, attendance.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	recs, err := h.records.ListBySession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": recs,
		"count":   len(recs),
	})
}
