package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
)

// testJPEG produces a small in-memory JPEG frame.
func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

// mockDetector serves a canned detection response.
func mockDetector(t *testing.T, faces []detectedFace) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/detect/face", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(detectResponse{Dim: 4, Faces: faces})
	})
	return httptest.NewServer(mux)
}

func TestDetectFace_SingleFace(t *testing.T) {
	srv := mockDetector(t, []detectedFace{
		{BBox: []float64{100, 50, 200, 180}, DetScore: 0.92, Embedding: []float32{0.1, 0.2, 0.3, 0.4}},
	})
	defer srv.Close()

	c := NewClient(srv.URL, 4)
	det, err := c.DetectFace(context.Background(), testJPEG(t, 64, 64))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det == nil {
		t.Fatal("expected a detection")
	}
	if det.Box.Width != 100 || det.Box.Height != 130 {
		t.Errorf("unexpected box geometry: %+v", det.Box)
	}
	if det.Box.CenterX() != 150 {
		t.Errorf("expected center x 150, got %f", det.Box.CenterX())
	}

	s := det.Sample()
	if s.X != 150 || s.Height != 130 {
		t.Errorf("sample does not reflect box geometry: %+v", s)
	}
}

func TestDetectFace_NoFaceIsNotAnError(t *testing.T) {
	srv := mockDetector(t, nil)
	defer srv.Close()

	c := NewClient(srv.URL, 4)
	det, err := c.DetectFace(context.Background(), testJPEG(t, 64, 64))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det != nil {
		t.Error("expected nil detection for empty frame")
	}
}

func TestDetectFace_PicksHighestScore(t *testing.T) {
	srv := mockDetector(t, []detectedFace{
		{BBox: []float64{0, 0, 10, 10}, DetScore: 0.40, Embedding: []float32{1, 0, 0, 0}},
		{BBox: []float64{50, 50, 90, 90}, DetScore: 0.95, Embedding: []float32{0, 1, 0, 0}},
	})
	defer srv.Close()

	c := NewClient(srv.URL, 4)
	det, err := c.DetectFace(context.Background(), testJPEG(t, 64, 64))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det.Score != 0.95 {
		t.Errorf("expected the higher-scored face, got score %f", det.Score)
	}
}

func TestDetectFace_RejectsWrongDimension(t *testing.T) {
	srv := mockDetector(t, []detectedFace{
		{BBox: []float64{0, 0, 10, 10}, DetScore: 0.9, Embedding: []float32{1, 2}},
	})
	defer srv.Close()

	c := NewClient(srv.URL, 4)
	if _, err := c.DetectFace(context.Background(), testJPEG(t, 64, 64)); err == nil {
		t.Error("expected dimension validation error")
	}
}

func TestNormalizeFrame_Downscales(t *testing.T) {
	big := testJPEG(t, 400, 200)

	out, err := NormalizeFrame(big, 100)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode normalized frame: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("expected 100x50, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestNormalizeFrame_SmallFramePassesThrough(t *testing.T) {
	small := testJPEG(t, 64, 48)

	out, err := NormalizeFrame(small, 640)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("small frame must keep its dimensions, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestNormalizeFrame_RejectsGarbage(t *testing.T) {
	if _, err := NormalizeFrame([]byte("not an image"), 100); err == nil {
		t.Error("expected decode error")
	}
}
