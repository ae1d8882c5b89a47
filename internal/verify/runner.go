package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/capture"
)

// Runner drives an attempt's camera-backed stages when the process owns the
// camera, e.g. a kiosk at the venue door. Browser clients push frames over
// HTTP instead and never touch this type.
//
// The camera is acquired per stage and released before the next stage runs,
// so the preview indicator goes dark between the liveness challenge and the
// confirmation shot.
type Runner struct {
	orch   *Orchestrator
	camera capture.Camera
	// tick paces the liveness sampling loop. One frame per tick.
	tick time.Duration
}

// NewRunner creates a runner over an orchestrator and a camera device.
func NewRunner(orch *Orchestrator, camera capture.Camera, tick time.Duration) *Runner {
	if tick <= 0 {
		tick = 200 * time.Millisecond
	}
	return &Runner{orch: orch, camera: camera, tick: tick}
}

// RunLiveness acquires the camera and feeds frames into the attempt's
// liveness session until the challenge passes, the attempt goes terminal,
// or ctx is cancelled. The camera is released before returning regardless
// of outcome.
func (r *Runner) RunLiveness(ctx context.Context, id uuid.UUID) (View, error) {
	source, err := r.camera.Acquire(ctx)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", attendance.ErrCameraDenied, err)
	}
	defer source.Close()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return View{}, ctx.Err()
		case <-ticker.C:
		}

		frame, err := source.NextFrame(ctx)
		if err != nil {
			return View{}, fmt.Errorf("read camera frame: %w", err)
		}

		view, err := r.orch.ObserveFrame(ctx, id, frame)
		if err != nil {
			if errors.Is(err, ErrWrongStage) {
				// The liveness stage ended underneath us, e.g. the expiry
				// watcher failed the attempt between frames.
				return r.orch.Get(id)
			}
			return View{}, err
		}
		if view.Stage != StageLivenessCheck || view.Terminal {
			return view, nil
		}
	}
}

// ConfirmWithCamera acquires the camera for the single confirmation frame
// and runs the face match. The user has already acknowledged the capture;
// exactly one frame is taken.
func (r *Runner) ConfirmWithCamera(ctx context.Context, id uuid.UUID) (View, error) {
	source, err := r.camera.Acquire(ctx)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", attendance.ErrCameraDenied, err)
	}

	frame, err := source.NextFrame(ctx)
	if closeErr := source.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return View{}, fmt.Errorf("read camera frame: %w", err)
	}

	return r.orch.ConfirmFace(ctx, id, frame)
}
