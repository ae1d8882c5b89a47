// Package capture abstracts the face detection capability. The detector is
// an external HTTP service that, given an image frame, returns zero or one
// face with a bounding box and a fixed-length embedding. This package treats
// it as a black box.
package capture

import (
	"context"

	"github.com/kozaktomas/face-attend/internal/liveness"
)

// BoundingBox is a detected face's position in frame pixels, as [x, y, w, h]
// with x/y the top-left corner.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CenterX returns the horizontal center of the box.
func (b BoundingBox) CenterX() float64 {
	return b.X + b.Width/2
}

// Detection is one detected face: its bounding box, detection score and
// fixed-length embedding.
type Detection struct {
	Box       BoundingBox
	Score     float64
	Embedding []float32
}

// Sample converts the detection's geometry into a liveness sample, using the
// box center as the horizontal position.
func (d *Detection) Sample() liveness.Sample {
	return liveness.Sample{
		X:      d.Box.CenterX(),
		Y:      d.Box.Y,
		Width:  d.Box.Width,
		Height: d.Box.Height,
	}
}

// FaceCapability detects a face in a single video frame. A nil Detection
// with a nil error means no face was found; that is an ordinary outcome, not
// a failure.
type FaceCapability interface {
	DetectFace(ctx context.Context, frame []byte) (*Detection, error)
}

// FrameSource yields frames from an acquired camera. Implementations must be
// closed when the stage that acquired them ends, before another stage
// acquires the camera again.
type FrameSource interface {
	// NextFrame blocks until the next frame is available or ctx is done.
	NextFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// Camera is an acquirable camera device. One verification attempt owns at
// most one open FrameSource at a time.
type Camera interface {
	Acquire(ctx context.Context) (FrameSource, error)
}
