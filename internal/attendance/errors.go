package attendance

import "errors"

// Terminal failures: the user must restart from code entry.
var (
	ErrInvalidCode    = errors.New("invalid session code")
	ErrSessionExpired = errors.New("session expired")
	ErrAlreadyMarked  = errors.New("attendance already marked for this session")
)

// Environmental failures: retryable with user action.
var (
	ErrCameraDenied     = errors.New("camera access denied")
	ErrLocationRequired = errors.New("location required for this session")
	ErrLocationDenied   = errors.New("location access denied")
	ErrLocationTimeout  = errors.New("timed out waiting for a location fix")
	ErrNoFaceDetected   = errors.New("no face detected in frame")
	ErrLivenessTimeout  = errors.New("liveness challenge not completed in time")
)

// Verification failures: retryable up to a bounded budget.
var (
	ErrLowConfidence = errors.New("face does not match enrolled profile")
	ErrOutOfRange    = errors.New("outside the session geofence")
)

// Lookup and persistence failures.
var (
	ErrProfileNotFound = errors.New("no enrolled face profile for this identity")
	ErrSessionNotFound = errors.New("session not found")
	ErrPersistence     = errors.New("attendance could not be stored")
)

// Terminal reports whether err ends the verification attempt for good, as
// opposed to failures the orchestrator lets the user retry.
func Terminal(err error) bool {
	return errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrAlreadyMarked) ||
		errors.Is(err, ErrProfileNotFound)
}
