package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/store"
)

// Recorder performs the final idempotent attendance write. The marking
// timestamp is assigned here, server-side, so a client clock can never
// influence it.
type Recorder struct {
	records store.AttendanceRepository
	clock   func() time.Time
	timeout time.Duration
}

// NewRecorder creates a recorder over the given attendance store.
func NewRecorder(records store.AttendanceRepository, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Recorder{
		records: records,
		clock:   time.Now,
		timeout: timeout,
	}
}

// Record writes one attendance event. A transient persistence failure is
// retried once automatically; a duplicate (session, owner) pair surfaces as
// attendance.ErrAlreadyMarked from either write.
func (r *Recorder) Record(ctx context.Context, sessionID uuid.UUID, ownerID string, confidence float64, locationVerified bool, distanceMeters *float64) (*attendance.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec := &attendance.Record{
		SessionID:              sessionID,
		OwnerID:                ownerID,
		MarkedAt:               r.clock().UTC(),
		Method:                 attendance.MethodFace,
		ConfidencePercent:      confidence,
		LocationVerified:       locationVerified,
		LocationDistanceMeters: distanceMeters,
	}

	err := r.records.Insert(ctx, rec)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, attendance.ErrAlreadyMarked) {
		return nil, err
	}

	// One automatic retry for transient persistence failures. The retry
	// gets a fresh timestamp since it is a new write.
	rec.MarkedAt = r.clock().UTC()
	if retryErr := r.records.Insert(ctx, rec); retryErr != nil {
		if errors.Is(retryErr, attendance.ErrAlreadyMarked) {
			return nil, retryErr
		}
		return nil, fmt.Errorf("%w (after retry): %v", attendance.ErrPersistence, retryErr)
	}
	return rec, nil
}
