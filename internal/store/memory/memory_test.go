package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

func TestAttendanceRepository_InsertIsIdempotent(t *testing.T) {
	repo := NewAttendanceRepository()
	ctx := context.Background()
	sessionID := uuid.New()

	rec := &attendance.Record{
		SessionID:         sessionID,
		OwnerID:           "student-1",
		MarkedAt:          time.Now(),
		Method:            attendance.MethodFace,
		ConfidencePercent: 82.5,
	}
	if err := repo.Insert(ctx, rec); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := &attendance.Record{
		SessionID: sessionID,
		OwnerID:   "student-1",
		MarkedAt:  time.Now().Add(time.Minute),
		Method:    attendance.MethodFace,
	}
	if err := repo.Insert(ctx, dup); !errors.Is(err, attendance.ErrAlreadyMarked) {
		t.Errorf("expected ErrAlreadyMarked, got %v", err)
	}

	// The original record survives untouched.
	records, err := repo.ListBySession(ctx, sessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
	if !records[0].MarkedAt.Equal(rec.MarkedAt) {
		t.Error("duplicate insert must not overwrite the original marked_at")
	}
}

func TestAttendanceRepository_ConcurrentInsertsResolveDeterministically(t *testing.T) {
	repo := NewAttendanceRepository()
	ctx := context.Background()
	sessionID := uuid.New()

	const writers = 16
	var wg sync.WaitGroup
	results := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.Insert(ctx, &attendance.Record{
				SessionID: sessionID,
				OwnerID:   "student-1",
				MarkedAt:  time.Now(),
				Method:    attendance.MethodFace,
			})
		}()
	}
	wg.Wait()
	close(results)

	var successes, duplicates int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, attendance.ErrAlreadyMarked):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly one winner, got %d", successes)
	}
	if duplicates != writers-1 {
		t.Errorf("expected %d AlreadyMarked outcomes, got %d", writers-1, duplicates)
	}
}

func TestAttendanceRepository_DifferentOwnersDoNotCollide(t *testing.T) {
	repo := NewAttendanceRepository()
	ctx := context.Background()
	sessionID := uuid.New()

	for _, owner := range []string{"a", "b", "c"} {
		err := repo.Insert(ctx, &attendance.Record{
			SessionID: sessionID,
			OwnerID:   owner,
			MarkedAt:  time.Now(),
			Method:    attendance.MethodFace,
		})
		if err != nil {
			t.Errorf("owner %s: %v", owner, err)
		}
	}

	records, _ := repo.ListBySession(ctx, sessionID)
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}
}

func TestSessionRepository_CodeLookup(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	s := &attendance.Session{
		ID:        uuid.New(),
		Code:      "AB3XQ9",
		Status:    attendance.SessionStatusActive,
		CreatedAt: time.Now(),
	}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByCode(ctx, "AB3XQ9")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if got.ID != s.ID {
		t.Errorf("wrong session returned")
	}

	if _, err := repo.GetByCode(ctx, "ZZZZZZ"); !errors.Is(err, attendance.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestProfileRepository_ReEnrollmentOverwrites(t *testing.T) {
	repo := NewProfileRepository()
	ctx := context.Background()

	first := &attendance.EnrolledProfile{OwnerID: "s1", Embedding: []float32{1, 0}, Dim: 2}
	second := &attendance.EnrolledProfile{OwnerID: "s1", Embedding: []float32{0, 1}, Dim: 2}

	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Embedding[0] != 0 || got.Embedding[1] != 1 {
		t.Errorf("re-enrollment must overwrite, got %v", got.Embedding)
	}
}
