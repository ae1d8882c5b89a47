// Package verify sequences the attendance verification pipeline: session
// code, optional geofence, liveness challenge, face match, idempotent
// record. Each stage either advances the attempt or produces a typed
// failure the orchestrator maps to a retry or a terminal state.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/capture"
	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/facematch"
	"github.com/kozaktomas/face-attend/internal/geo"
	"github.com/kozaktomas/face-attend/internal/liveness"
	"github.com/kozaktomas/face-attend/internal/metrics"
	"github.com/kozaktomas/face-attend/internal/store"
)

// Stage is the orchestrator's position in the pipeline.
type Stage string

const (
	StageCodeEntry     Stage = "code_entry"
	StageLocationCheck Stage = "location_check"
	StageLivenessCheck Stage = "liveness_check"
	StageFaceVerify    Stage = "face_verify"
	StageRecording     Stage = "recording"
	StageSuccess       Stage = "success"
	StageFailed        Stage = "failed"
)

// ErrAttemptNotFound is returned for unknown or already-completed attempts.
var ErrAttemptNotFound = errors.New("verification attempt not found")

// ErrWrongStage is returned when an operation does not match the attempt's
// current stage.
var ErrWrongStage = errors.New("operation not valid in current stage")

// attempt is the orchestrator's per-verification state. Everything lives on
// this struct; nothing is shared between attempts, so two browser tabs can
// never see each other's liveness history.
type attempt struct {
	mu sync.Mutex

	id      uuid.UUID
	ownerID string
	session *attendance.Session

	stage         Stage
	liveness      *liveness.Session
	lastChallenge liveness.Challenge
	location      *geo.Result
	match         *facematch.Result
	record        *attendance.Record
	failure       error

	geoRetries      int
	livenessRetries int
	matchRetries    int
	noFaceRetries   int

	done     chan struct{}
	finished bool
}

// finish marks the attempt terminal and stops its expiry watcher. Callers
// hold a.mu.
func (a *attempt) finish() {
	if !a.finished {
		a.finished = true
		close(a.done)
	}
}

// View is a caller-facing snapshot of an attempt. Failure carries the typed
// outcome of the last operation; a non-terminal failure means the same stage
// accepts a retry.
type View struct {
	ID        uuid.UUID          `json:"id"`
	SessionID uuid.UUID          `json:"session_id"`
	OwnerID   string             `json:"owner_id"`
	Stage     Stage              `json:"stage"`
	Challenge liveness.Challenge `json:"challenge,omitempty"`
	Liveness  *liveness.Progress `json:"liveness,omitempty"`
	Location  *geo.Result        `json:"location,omitempty"`
	Match     *facematch.Result  `json:"match,omitempty"`
	Record    *attendance.Record `json:"record,omitempty"`
	Failure   error              `json:"-"`
	Reason    string             `json:"reason,omitempty"`
	Terminal  bool               `json:"terminal"`
}

func (a *attempt) view() View {
	v := View{
		ID:        a.id,
		SessionID: a.session.ID,
		OwnerID:   a.ownerID,
		Stage:     a.stage,
		Location:  a.location,
		Match:     a.match,
		Record:    a.record,
		Failure:   a.failure,
		Terminal:  a.stage == StageFailed || a.stage == StageSuccess,
	}
	if a.liveness != nil {
		v.Challenge = a.liveness.Challenge()
	}
	if a.failure != nil {
		v.Reason = a.failure.Error()
	}
	return v
}

// Orchestrator owns all active verification attempts and the retry policy
// between stages.
type Orchestrator struct {
	sessions  store.SessionRepository
	profiles  store.ProfileRepository
	records   store.AttendanceRepository
	detector  capture.FaceCapability
	validator *CodeValidator
	recorder  *Recorder
	cfg       config.VerificationConfig
	metrics   *metrics.Metrics
	clock     func() time.Time

	mu       sync.Mutex
	attempts map[uuid.UUID]*attempt
}

// New creates an orchestrator over the given collaborators.
func New(
	sessions store.SessionRepository,
	profiles store.ProfileRepository,
	records store.AttendanceRepository,
	detector capture.FaceCapability,
	cfg config.VerificationConfig,
	m *metrics.Metrics,
) *Orchestrator {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Orchestrator{
		sessions:  sessions,
		profiles:  profiles,
		records:   records,
		detector:  detector,
		validator: NewCodeValidator(sessions, records),
		recorder:  NewRecorder(records, cfg.RecordTimeout),
		cfg:       cfg,
		metrics:   m,
		clock:     time.Now,
		attempts:  make(map[uuid.UUID]*attempt),
	}
}

// Start validates a claimed session code and opens a verification attempt.
// When the session has a geofence and location is already available the
// location check runs inline; without a geofence the attempt goes straight
// to the liveness challenge.
func (o *Orchestrator) Start(ctx context.Context, rawCode, ownerID string, location *geo.Coordinates) (View, error) {
	session, err := o.validator.Validate(ctx, rawCode, ownerID, o.clock())
	if err != nil {
		o.metrics.StageFailures.WithLabelValues(string(StageCodeEntry), reasonLabel(err)).Inc()
		return View{}, err
	}

	a := &attempt{
		id:      uuid.New(),
		ownerID: ownerID,
		session: session,
		stage:   StageLocationCheck,
		done:    make(chan struct{}),
	}
	o.metrics.AttemptsStarted.Inc()

	a.mu.Lock()
	defer a.mu.Unlock()

	if session.Geofence == nil {
		// No geofence configured: the stage is skipped, not failed.
		o.beginLiveness(a)
	} else if location != nil {
		o.checkLocation(a, *location)
	} else {
		a.failure = attendance.ErrLocationRequired
	}

	if a.stage != StageFailed {
		o.register(a)
		go o.watchExpiry(a)
	}
	return a.view(), nil
}

// SubmitLocation runs (or retries) the geofence check for an attempt.
func (o *Orchestrator) SubmitLocation(id uuid.UUID, location geo.Coordinates) (View, error) {
	a, err := o.get(id)
	if err != nil {
		return View{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stage != StageLocationCheck {
		return a.view(), ErrWrongStage
	}
	if v, expired := o.expireIfNeeded(a); expired {
		return v, nil
	}

	o.checkLocation(a, location)
	if a.stage == StageFailed {
		o.unregister(a.id)
	}
	return a.view(), nil
}

// ReportLocationFailure records that the client could not acquire a
// location fix. The failure is environmental and retryable; the attempt
// stays in the location stage.
func (o *Orchestrator) ReportLocationFailure(id uuid.UUID, timedOut bool) (View, error) {
	a, err := o.get(id)
	if err != nil {
		return View{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stage != StageLocationCheck {
		return a.view(), ErrWrongStage
	}
	if timedOut {
		a.failure = attendance.ErrLocationTimeout
	} else {
		a.failure = attendance.ErrLocationDenied
	}
	o.metrics.StageFailures.WithLabelValues(string(StageLocationCheck), reasonLabel(a.failure)).Inc()
	return a.view(), nil
}

// checkLocation evaluates the geofence and advances or burns a retry.
// Callers hold a.mu.
func (o *Orchestrator) checkLocation(a *attempt, location geo.Coordinates) {
	gf := a.session.Geofence
	res := geo.Verify(location, geo.Coordinates{Latitude: gf.Latitude, Longitude: gf.Longitude}, gf.RadiusMeters)
	a.location = &res

	if res.WithinRange {
		a.failure = nil
		o.beginLiveness(a)
		return
	}

	a.geoRetries++
	a.failure = fmt.Errorf("%w: %.0f m from venue, limit %.0f m",
		attendance.ErrOutOfRange, res.DistanceMeters, gf.RadiusMeters)
	o.metrics.StageFailures.WithLabelValues(string(StageLocationCheck), reasonLabel(a.failure)).Inc()
	if a.geoRetries > o.cfg.GeofenceRetries {
		o.fail(a, a.failure)
	}
}

// beginLiveness opens a fresh liveness session. State never carries over
// from a previous challenge; a retry only inherits the exclusion of the
// challenge that just failed. Callers hold a.mu.
func (o *Orchestrator) beginLiveness(a *attempt) {
	a.liveness = liveness.NewSession(o.cfg.Liveness, a.lastChallenge)
	a.lastChallenge = a.liveness.Challenge()
	a.stage = StageLivenessCheck
}

// LivenessTick feeds one detection tick into the attempt's liveness
// session. A nil sample means the detector saw no face this tick.
func (o *Orchestrator) LivenessTick(id uuid.UUID, sample *liveness.Sample) (View, error) {
	a, err := o.get(id)
	if err != nil {
		return View{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stage != StageLivenessCheck {
		return a.view(), ErrWrongStage
	}
	if v, expired := o.expireIfNeeded(a); expired {
		return v, nil
	}

	progress := a.liveness.Observe(sample)
	v := a.view()
	v.Liveness = &progress

	switch progress.State {
	case liveness.StatePassed:
		o.metrics.LivenessTicks.Observe(float64(progress.TicksUsed))
		a.failure = nil
		a.stage = StageFaceVerify
		v = a.view()
		v.Liveness = &progress
	case liveness.StateFailed:
		o.metrics.StageFailures.WithLabelValues(string(StageLivenessCheck), reasonLabel(attendance.ErrLivenessTimeout)).Inc()
		a.livenessRetries++
		if a.livenessRetries > o.cfg.LivenessRetries {
			o.fail(a, attendance.ErrLivenessTimeout)
			o.unregister(a.id)
			v = a.view()
			v.Liveness = &progress
			return v, nil
		}
		// Fresh challenge, never the one that just failed, never any
		// history from it.
		a.failure = fmt.Errorf("%w: %s", attendance.ErrLivenessTimeout, progress.Reason)
		o.beginLiveness(a)
		v = a.view()
		v.Liveness = &progress
	}
	return v, nil
}

// ObserveFrame runs face detection on a frame and feeds the result into the
// liveness session as one tick.
func (o *Orchestrator) ObserveFrame(ctx context.Context, id uuid.UUID, frame []byte) (View, error) {
	det, err := o.detector.DetectFace(ctx, frame)
	if err != nil {
		return View{}, fmt.Errorf("face detection: %w", err)
	}

	var sample *liveness.Sample
	if det != nil {
		s := det.Sample()
		s.Timestamp = o.clock()
		sample = &s
	}
	return o.LivenessTick(id, sample)
}

// ConfirmFace captures the single user-acknowledged probe frame, matches it
// against the enrolled profile and, on success, records attendance.
func (o *Orchestrator) ConfirmFace(ctx context.Context, id uuid.UUID, frame []byte) (View, error) {
	a, err := o.get(id)
	if err != nil {
		return View{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stage != StageFaceVerify {
		return a.view(), ErrWrongStage
	}
	if v, expired := o.expireIfNeeded(a); expired {
		return v, nil
	}

	det, err := o.detector.DetectFace(ctx, frame)
	if err != nil {
		return a.view(), fmt.Errorf("face detection: %w", err)
	}
	if det == nil {
		o.metrics.StageFailures.WithLabelValues(string(StageFaceVerify), reasonLabel(attendance.ErrNoFaceDetected)).Inc()
		a.noFaceRetries++
		a.failure = attendance.ErrNoFaceDetected
		if a.noFaceRetries > o.cfg.NoFaceRetries {
			o.fail(a, attendance.ErrNoFaceDetected)
			o.unregister(a.id)
		}
		return a.view(), nil
	}

	profile, err := o.profiles.Get(ctx, a.ownerID)
	if err != nil {
		if errors.Is(err, attendance.ErrProfileNotFound) {
			o.fail(a, err)
			o.unregister(a.id)
			return a.view(), nil
		}
		return a.view(), fmt.Errorf("load enrolled profile: %w", err)
	}
	if len(profile.Embedding) != len(det.Embedding) {
		// A stored embedding with the wrong dimension is corrupt data, not
		// a user failure. Abort the attempt and leave a trail for the
		// operator.
		fatal := fmt.Errorf("stored embedding for %s has %d dimensions, probe has %d",
			a.ownerID, len(profile.Embedding), len(det.Embedding))
		log.Printf("fatal verification error: %v", fatal)
		o.fail(a, fatal)
		o.unregister(a.id)
		return a.view(), fatal
	}

	res := facematch.Match(profile.Embedding, det.Embedding, o.cfg.MatchThreshold)
	a.match = &res

	if !res.IsMatch {
		o.metrics.StageFailures.WithLabelValues(string(StageFaceVerify), reasonLabel(attendance.ErrLowConfidence)).Inc()
		a.matchRetries++
		a.failure = fmt.Errorf("%w: confidence %.1f%%", attendance.ErrLowConfidence, res.ConfidencePercent)
		if a.matchRetries > o.cfg.MatchRetries {
			o.fail(a, a.failure)
			o.unregister(a.id)
		}
		return a.view(), nil
	}

	// Recording: the write is idempotent at the storage layer, so a racing
	// duplicate resolves deterministically no matter what this attempt saw
	// in its pre-check.
	a.failure = nil
	a.stage = StageRecording

	locationVerified := a.location != nil && a.location.WithinRange
	var distance *float64
	if a.location != nil {
		d := a.location.DistanceMeters
		distance = &d
	}

	rec, err := o.recorder.Record(ctx, a.session.ID, a.ownerID, res.ConfidencePercent, locationVerified, distance)
	if err != nil {
		o.metrics.StageFailures.WithLabelValues(string(StageRecording), reasonLabel(err)).Inc()
		o.fail(a, err)
		o.unregister(a.id)
		return a.view(), nil
	}

	a.record = rec
	a.stage = StageSuccess
	a.finish()
	o.unregister(a.id)
	o.metrics.AttendanceRecorded.Inc()
	o.metrics.MatchConfidence.Observe(res.ConfidencePercent)
	return a.view(), nil
}

// Cancel aborts an attempt, e.g. when the user navigates away. No partial
// record is ever left behind since the only write happens after a full
// match.
func (o *Orchestrator) Cancel(id uuid.UUID) error {
	a, err := o.get(id)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.finish()
	a.stage = StageFailed
	a.failure = errors.New("cancelled")
	a.mu.Unlock()
	o.unregister(id)
	return nil
}

// Get returns a snapshot of an active attempt.
func (o *Orchestrator) Get(id uuid.UUID) (View, error) {
	a, err := o.get(id)
	if err != nil {
		return View{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view(), nil
}

// fail moves an attempt to the terminal failed state. Callers hold a.mu.
func (o *Orchestrator) fail(a *attempt, reason error) {
	a.stage = StageFailed
	a.failure = reason
	a.finish()
}

// expireIfNeeded applies the expiry clock synchronously on every operation,
// on top of the background watcher, so a stale session can never slip a
// late write through. Callers hold a.mu.
func (o *Orchestrator) expireIfNeeded(a *attempt) (View, bool) {
	if a.session.Expired(o.clock()) {
		o.metrics.StageFailures.WithLabelValues(string(a.stage), reasonLabel(attendance.ErrSessionExpired)).Inc()
		o.fail(a, attendance.ErrSessionExpired)
		o.unregister(a.id)
		return a.view(), true
	}
	return View{}, false
}

// watchExpiry rechecks the session expiry clock on a fixed cadence while
// the attempt is live, so expiry mid-stage aborts promptly instead of at
// the next user action.
func (o *Orchestrator) watchExpiry(a *attempt) {
	interval := o.cfg.ExpiryCheck
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.mu.Lock()
			if _, expired := o.expireIfNeeded(a); expired {
				a.mu.Unlock()
				return
			}
			a.mu.Unlock()
		}
	}
}

func (o *Orchestrator) register(a *attempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts[a.id] = a
}

func (o *Orchestrator) unregister(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.attempts, id)
}

func (o *Orchestrator) get(id uuid.UUID) (*attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.attempts[id]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// reasonLabel collapses a typed failure into a low-cardinality metric label.
func reasonLabel(err error) string {
	switch {
	case errors.Is(err, attendance.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, attendance.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return "already_marked"
	case errors.Is(err, attendance.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, attendance.ErrLocationDenied):
		return "location_denied"
	case errors.Is(err, attendance.ErrLocationTimeout):
		return "location_timeout"
	case errors.Is(err, attendance.ErrLivenessTimeout):
		return "liveness_timeout"
	case errors.Is(err, attendance.ErrNoFaceDetected):
		return "no_face"
	case errors.Is(err, attendance.ErrLowConfidence):
		return "low_confidence"
	case errors.Is(err, attendance.ErrProfileNotFound):
		return "no_profile"
	case errors.Is(err, attendance.ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
