package handlers

import (
	"encoding/base64"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/capture"
	"github.com/kozaktomas/face-attend/internal/geo"
	"github.com/kozaktomas/face-attend/internal/liveness"
	"github.com/kozaktomas/face-attend/internal/verify"
)

// VerifyHandler drives the verification pipeline over HTTP. Each endpoint
// pushes one event into the orchestrator and returns the attempt snapshot;
// the state machine itself lives in the verify package.
type VerifyHandler struct {
	orch         *verify.Orchestrator
	maxFrameSize int
}

// NewVerifyHandler creates a new verification handler.
func NewVerifyHandler(orch *verify.Orchestrator, maxFrameSize int) *VerifyHandler {
	return &VerifyHandler{orch: orch, maxFrameSize: maxFrameSize}
}

type startRequest struct {
	Code     string           `json:"code"`
	OwnerID  string           `json:"owner_id"`
	Location *geo.Coordinates `json:"location,omitempty"`
}

// Start handles POST /verify/start.
func (h *VerifyHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	view, err := h.orch.Start(r.Context(), req.Code, req.OwnerID, req.Location)
	if err != nil {
		log.Printf("verification start rejected for %s: %v", sanitizeForLog(req.OwnerID), err)
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// Status handles GET /verify/{id}.
func (h *VerifyHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	view, err := h.orch.Get(id)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	// Error reports a client-side acquisition failure: "denied" or
	// "timeout". Coordinates are ignored when set.
	Error string `json:"error,omitempty"`
}

// Location handles POST /verify/{id}/location.
func (h *VerifyHandler) Location(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var (
		view verify.View
		err  error
	)
	switch {
	case req.Error != "":
		view, err = h.orch.ReportLocationFailure(id, req.Error == "timeout")
	case req.Latitude != nil && req.Longitude != nil:
		view, err = h.orch.SubmitLocation(id, geo.Coordinates{
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
		})
	default:
		respondError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type livenessRequest struct {
	// Sample is the face bounding box the client's detector saw this tick.
	// Absent means no face was detected.
	Sample *liveness.Sample `json:"sample,omitempty"`
}

// Liveness handles POST /verify/{id}/liveness with a pre-extracted sample.
func (h *VerifyHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	var req livenessRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	view, err := h.orch.LivenessTick(id, req.Sample)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type frameRequest struct {
	// Frame is a base64-encoded JPEG or PNG.
	Frame string `json:"frame"`
}

// Frame handles POST /verify/{id}/frame: a raw camera frame during the
// liveness stage, for clients without an on-device detector.
func (h *VerifyHandler) Frame(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	frame, ok := decodeFrame(w, r, h.maxFrameSize)
	if !ok {
		return
	}

	view, err := h.orch.ObserveFrame(r.Context(), id, frame)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Confirm handles POST /verify/{id}/confirm: the single user-acknowledged
// frame for the face match.
func (h *VerifyHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	frame, ok := decodeFrame(w, r, h.maxFrameSize)
	if !ok {
		return
	}

	view, err := h.orch.ConfirmFace(r.Context(), id, frame)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Cancel handles DELETE /verify/{id}.
func (h *VerifyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	if err := h.orch.Cancel(id); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// attemptID parses the {id} URL parameter, writing the error response on
// failure.
func attemptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid attempt id")
		return uuid.Nil, false
	}
	return id, true
}

// decodeFrame reads a base64 frame from the request body and normalizes it
// for the detector, writing the error response on failure.
func decodeFrame(w http.ResponseWriter, r *http.Request, maxSize int) ([]byte, bool) {
	var req frameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return nil, false
	}
	if req.Frame == "" {
		respondError(w, http.StatusBadRequest, "frame is required")
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(req.Frame)
	if err != nil {
		respondError(w, http.StatusBadRequest, "frame is not valid base64")
		return nil, false
	}
	frame, err := capture.NormalizeFrame(raw, maxSize)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "frame is not a decodable image")
		return nil, false
	}
	return frame, true
}
