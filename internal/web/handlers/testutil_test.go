package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/capture"
	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/liveness"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/store/memory"
	"github.com/kozaktomas/face-attend/internal/verify"
	"github.com/kozaktomas/face-attend/internal/web"
)

// fakeDetector pops one scripted detection per call, repeating the last one
// once the script runs out. A nil entry means no face in the frame.
type fakeDetector struct {
	mu   sync.Mutex
	dets []*capture.Detection
	err  error
}

func (d *fakeDetector) DetectFace(_ context.Context, _ []byte) (*capture.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if len(d.dets) == 0 {
		return nil, nil
	}
	det := d.dets[0]
	if len(d.dets) > 1 {
		d.dets = d.dets[1:]
	}
	return det, nil
}

type testEnv struct {
	server   *web.Server
	sessions *memory.SessionRepository
	profiles *memory.ProfileRepository
	records  *memory.AttendanceRepository
	detector *fakeDetector
	index    *store.ProfileIndex
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Detector: config.DetectorConfig{MaxFrameSize: 640},
		Verification: config.VerificationConfig{
			Liveness:        liveness.DefaultConfig(),
			MatchThreshold:  0.4,
			LivenessRetries: 3,
			MatchRetries:    3,
			NoFaceRetries:   5,
			GeofenceRetries: 3,
			ExpiryCheck:     time.Hour,
			RecordTimeout:   time.Second,
		},
	}

	env := &testEnv{
		sessions: memory.NewSessionRepository(),
		profiles: memory.NewProfileRepository(),
		records:  memory.NewAttendanceRepository(),
		detector: &fakeDetector{},
		index:    store.NewProfileIndex(),
	}

	orch := verify.New(env.sessions, env.profiles, env.records, env.detector, cfg.Verification, nil)
	env.server = web.NewServer(cfg, 0, "localhost", web.Deps{
		Orchestrator: orch,
		Sessions:     env.sessions,
		Profiles:     env.profiles,
		Records:      env.records,
		Detector:     env.detector,
		Index:        env.index,
	})
	return env
}

func (e *testEnv) addSession(t *testing.T, code string) *attendance.Session {
	t.Helper()
	s := &attendance.Session{
		ID:        uuid.New(),
		Code:      code,
		Title:     "Lecture 12",
		Status:    attendance.SessionStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.sessions.Create(context.Background(), s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// testFrame returns a base64 JPEG for frame endpoints.
func testFrame(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func faceDetection(x, w, h float64, embedding []float32) *capture.Detection {
	return &capture.Detection{
		Box:       capture.BoundingBox{X: x, Y: 120, Width: w, Height: h},
		Score:     0.92,
		Embedding: embedding,
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d (body %q)", want, rec.Code, rec.Body.String())
	}
}
