package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/store/memory"
)

func TestRecordAssignsServerTimestamp(t *testing.T) {
	records := memory.NewAttendanceRepository()
	r := NewRecorder(records, time.Second)
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	r.clock = func() time.Time { return now }

	sessionID := uuid.New()
	rec, err := r.Record(context.Background(), sessionID, "student-1", 87.5, true, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.MarkedAt.Equal(now) {
		t.Errorf("expected server timestamp %v, got %v", now, rec.MarkedAt)
	}
	if rec.Method != attendance.MethodFace {
		t.Errorf("expected method %q, got %q", attendance.MethodFace, rec.Method)
	}
	if rec.ConfidencePercent != 87.5 {
		t.Errorf("expected confidence 87.5, got %v", rec.ConfidencePercent)
	}
	if !rec.LocationVerified {
		t.Error("expected location verified flag to survive the write")
	}

	marked, err := records.Has(context.Background(), sessionID, "student-1")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !marked {
		t.Error("record not found in store")
	}
}

func TestRecordRetriesOnceOnTransientFailure(t *testing.T) {
	records := memory.NewAttendanceRepository()
	records.InsertErrors = []error{errors.New("connection reset")}

	r := NewRecorder(records, time.Second)
	first := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	calls := 0
	r.clock = func() time.Time {
		calls++
		return first.Add(time.Duration(calls) * time.Second)
	}

	rec, err := r.Record(context.Background(), uuid.New(), "student-1", 90, false, nil)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	// The retry is a new write and carries a fresh timestamp.
	if !rec.MarkedAt.After(first.Add(time.Second)) {
		t.Errorf("expected a refreshed timestamp on retry, got %v", rec.MarkedAt)
	}
}

func TestRecordPersistenceFailureAfterRetry(t *testing.T) {
	records := memory.NewAttendanceRepository()
	records.InsertErrors = []error{errors.New("down"), errors.New("still down")}

	r := NewRecorder(records, time.Second)
	_, err := r.Record(context.Background(), uuid.New(), "student-1", 90, false, nil)
	if !errors.Is(err, attendance.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestRecordAlreadyMarkedPassthrough(t *testing.T) {
	records := memory.NewAttendanceRepository()
	r := NewRecorder(records, time.Second)
	sessionID := uuid.New()

	if _, err := r.Record(context.Background(), sessionID, "student-1", 90, false, nil); err != nil {
		t.Fatalf("first record: %v", err)
	}
	_, err := r.Record(context.Background(), sessionID, "student-1", 95, false, nil)
	if !errors.Is(err, attendance.ErrAlreadyMarked) {
		t.Fatalf("expected ErrAlreadyMarked, got %v", err)
	}

	recs, err := records.ListBySession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(recs))
	}
	if recs[0].ConfidencePercent != 90 {
		t.Errorf("original record must win, got confidence %v", recs[0].ConfidencePercent)
	}
}

func TestRecordCarriesLocationDistance(t *testing.T) {
	records := memory.NewAttendanceRepository()
	r := NewRecorder(records, time.Second)

	d := 42.5
	rec, err := r.Record(context.Background(), uuid.New(), "student-1", 90, true, &d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LocationDistanceMeters == nil || *rec.LocationDistanceMeters != 42.5 {
		t.Errorf("expected distance 42.5, got %v", rec.LocationDistanceMeters)
	}
}
