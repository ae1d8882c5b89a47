package handlers

import (
	"encoding/base64"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/capture"
	"github.com/kozaktomas/face-attend/internal/store"
)

// EnrollHandler stores face profiles for later verification.
type EnrollHandler struct {
	profiles     store.ProfileRepository
	detector     capture.FaceCapability
	index        *store.ProfileIndex
	dupThreshold float64
	maxFrameSize int
}

// NewEnrollHandler creates a new enrollment handler. dupThreshold is the
// embedding distance under which a new profile is flagged as a possible
// duplicate of an already-enrolled owner.
func NewEnrollHandler(profiles store.ProfileRepository, detector capture.FaceCapability, index *store.ProfileIndex, dupThreshold float64, maxFrameSize int) *EnrollHandler {
	return &EnrollHandler{
		profiles:     profiles,
		detector:     detector,
		index:        index,
		dupThreshold: dupThreshold,
		maxFrameSize: maxFrameSize,
	}
}

type enrollRequest struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name,omitempty"`
	Frame   string `json:"frame"`
}

type enrollResponse struct {
	OwnerID string `json:"owner_id"`
	Dim     int    `json:"dim"`
	// DuplicateOf is set when the new embedding is suspiciously close to a
	// different owner's profile. Enrollment still succeeds; an operator
	// decides what to do about it.
	DuplicateOf       string   `json:"duplicate_of,omitempty"`
	DuplicateDistance *float64 `json:"duplicate_distance,omitempty"`
}

// Enroll handles POST /enroll. Re-enrollment of an existing owner
// overwrites the stored profile.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	frame, ok := decodeEnrollFrame(w, req.Frame, h.maxFrameSize)
	if !ok {
		return
	}

	det, err := h.detector.DetectFace(r.Context(), frame)
	if err != nil {
		log.Printf("enrollment detection failed for %s: %v", sanitizeForLog(req.OwnerID), err)
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}
	if det == nil {
		respondError(w, http.StatusUnprocessableEntity, "no face detected in frame")
		return
	}

	profile := &attendance.EnrolledProfile{
		OwnerID:    req.OwnerID,
		Name:       req.Name,
		Embedding:  det.Embedding,
		Dim:        len(det.Embedding),
		EnrolledAt: time.Now().UTC(),
	}
	if err := h.profiles.Upsert(r.Context(), profile); err != nil {
		log.Printf("enrollment upsert failed for %s: %v", sanitizeForLog(req.OwnerID), err)
		respondError(w, http.StatusInternalServerError, "failed to store profile")
		return
	}

	resp := enrollResponse{OwnerID: profile.OwnerID, Dim: profile.Dim}
	if h.index != nil {
		// Check against existing profiles before indexing the new one, so
		// the profile cannot match itself.
		if owner, dist, ok := h.index.Nearest(det.Embedding, req.OwnerID); ok && dist < h.dupThreshold {
			log.Printf("enrollment for %s is %.3f from existing profile %s",
				sanitizeForLog(req.OwnerID), dist, sanitizeForLog(owner))
			resp.DuplicateOf = owner
			resp.DuplicateDistance = &dist
		}
		h.index.Add(profile)
	}
	respondJSON(w, http.StatusCreated, resp)
}

// decodeEnrollFrame mirrors decodeFrame but takes the already-parsed base64
// payload.
func decodeEnrollFrame(w http.ResponseWriter, encoded string, maxSize int) ([]byte, bool) {
	if encoded == "" {
		respondError(w, http.StatusBadRequest, "frame is required")
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
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
