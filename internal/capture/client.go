package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultDetectorURL = "http://localhost:8000"
	defaultTimeout     = 10 * time.Second
)

// Client talks to the face detection server over HTTP. The server accepts a
// multipart frame upload and responds with detected faces and their
// embeddings.
type Client struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewClient creates a detector client. dim is the embedding dimension the
// deployment expects; responses with a different dimension are rejected.
func NewClient(baseURL string, dim int) *Client {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// detectResponse is the detection server's reply.
type detectResponse struct {
	Dim   int            `json:"dim"`
	Faces []detectedFace `json:"faces"`
}

type detectedFace struct {
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in frame pixels
	DetScore  float64   `json:"det_score"`
	Embedding []float32 `json:"embedding"`
}

// DetectFace uploads one frame and returns the detected face, or nil when
// the frame contains none. When the server reports several faces the one
// with the highest detection score wins.
func (c *Client) DetectFace(ctx context.Context, frame []byte) (*Detection, error) {
	body, err := c.postMultipartFrame(ctx, "/detect/face", frame)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse detector response: %w", err)
	}

	if len(resp.Faces) == 0 {
		return nil, nil
	}

	best := resp.Faces[0]
	for _, f := range resp.Faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}

	if len(best.BBox) != 4 {
		return nil, fmt.Errorf("detector returned malformed bbox of %d elements", len(best.BBox))
	}
	if c.dim > 0 && len(best.Embedding) != c.dim {
		return nil, fmt.Errorf("detector returned %d-dim embedding, expected %d", len(best.Embedding), c.dim)
	}

	return &Detection{
		Box: BoundingBox{
			X:      best.BBox[0],
			Y:      best.BBox[1],
			Width:  best.BBox[2] - best.BBox[0],
			Height: best.BBox[3] - best.BBox[1],
		},
		Score:     best.DetScore,
		Embedding: best.Embedding,
	}, nil
}

// postMultipartFrame constructs a multipart form with the frame data and
// posts it to the given endpoint.
func (c *Client) postMultipartFrame(ctx context.Context, endpoint string, frame []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return nil, fmt.Errorf("failed to write frame data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read detector response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
