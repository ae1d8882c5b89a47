package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/capture"
)

type fakeFrameSource struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeFrameSource) NextFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte("frame"), nil
}

func (s *fakeFrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeFrameSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeCamera struct {
	mu         sync.Mutex
	sources    []*fakeFrameSource
	acquireErr error
}

func (c *fakeCamera) Acquire(ctx context.Context) (capture.FrameSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acquireErr != nil {
		return nil, c.acquireErr
	}
	s := &fakeFrameSource{}
	c.sources = append(c.sources, s)
	return s, nil
}

func TestRunnerLivenessReleasesCamera(t *testing.T) {
	p := newPipeline(t, testConfig())
	p.addSession(t, "AB3XQ9", nil, nil)

	v, err := p.orch.Start(context.Background(), "AB3XQ9", "student-1", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Script a stable baseline and then the motion that completes the
	// assigned challenge.
	baseline := faceAt(220, 200, 100, []float32{1, 0, 0})
	var final *capture.Detection
	switch v.Challenge {
	case "blink":
		final = faceAt(220, 200, 90, []float32{1, 0, 0})
	case "turn_left":
		final = faceAt(180, 200, 100, []float32{1, 0, 0})
	case "turn_right":
		final = faceAt(260, 200, 100, []float32{1, 0, 0})
	}
	p.detector.dets = []*capture.Detection{baseline, baseline, baseline, baseline, final}

	camera := &fakeCamera{}
	runner := NewRunner(p.orch, camera, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := runner.RunLiveness(ctx, v.ID)
	if err != nil {
		t.Fatalf("run liveness: %v", err)
	}
	if got.Stage != StageFaceVerify {
		t.Fatalf("expected face verify stage, got %s (failure %v)", got.Stage, got.Failure)
	}
	if len(camera.sources) != 1 {
		t.Fatalf("expected one camera acquisition, got %d", len(camera.sources))
	}
	if !camera.sources[0].isClosed() {
		t.Error("camera must be released when the liveness stage ends")
	}
}

func TestRunnerConfirmTakesSingleFrame(t *testing.T) {
	p := newPipeline(t, testConfig())
	p.addSession(t, "AB3XQ9", nil, nil)
	enrolled := []float32{1, 0, 0}
	p.enroll(t, "student-1", enrolled)

	v, err := p.orch.Start(context.Background(), "AB3XQ9", "student-1", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	driveLivenessPass(t, p.orch, v.ID)

	p.detector.dets = []*capture.Detection{faceAt(220, 200, 100, enrolled)}

	camera := &fakeCamera{}
	runner := NewRunner(p.orch, camera, time.Millisecond)

	got, err := runner.ConfirmWithCamera(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Stage != StageSuccess {
		t.Fatalf("expected success, got %s (failure %v)", got.Stage, got.Failure)
	}
	if len(camera.sources) != 1 {
		t.Fatalf("expected one camera acquisition, got %d", len(camera.sources))
	}
	if !camera.sources[0].isClosed() {
		t.Error("camera must be released after the confirmation frame")
	}
}

func TestRunnerCameraDenied(t *testing.T) {
	p := newPipeline(t, testConfig())
	p.addSession(t, "AB3XQ9", nil, nil)

	v, err := p.orch.Start(context.Background(), "AB3XQ9", "student-1", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	camera := &fakeCamera{acquireErr: errors.New("device busy")}
	runner := NewRunner(p.orch, camera, time.Millisecond)

	if _, err := runner.RunLiveness(context.Background(), v.ID); !errors.Is(err, attendance.ErrCameraDenied) {
		t.Errorf("expected ErrCameraDenied, got %v", err)
	}
	if _, err := runner.ConfirmWithCamera(context.Background(), v.ID); !errors.Is(err, attendance.ErrCameraDenied) {
		t.Errorf("expected ErrCameraDenied, got %v", err)
	}

	// The attempt survives a camera failure; a browser client can still
	// push frames.
	if _, err := p.orch.Get(v.ID); err != nil {
		t.Errorf("attempt must survive camera denial: %v", err)
	}
}
