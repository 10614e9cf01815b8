// Package classifier provides the HTTP client for the image content
// classifier sidecar. Image decoding and model inference are CPU-bound, so
// they run out of process; this client only does request/response mapping
// and bounds how many scans are in flight at once.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"glint/internal/domain/capture"
	"glint/internal/shared/logger"
)

const (
	// HTTP request timeout for one detection call.
	detectTimeout = 30 * time.Second

	// defaultConcurrency bounds concurrent inference requests so a burst of
	// captures cannot overload the sidecar.
	defaultConcurrency = 2
)

// Client calls the detection endpoint of the classifier sidecar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sem        *semaphore.Weighted
	logger     logger.Interface
}

// NewClient creates a classifier client for the sidecar at baseURL.
// concurrency <= 0 selects the default bound.
func NewClient(baseURL string, concurrency int, log logger.Interface) *Client {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: detectTimeout,
		},
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: log,
	}
}

type detectResponse struct {
	Detections []capture.Detection `json:"detections"`
}

// Detect posts the image to the sidecar and returns its detections.
func (c *Client) Detect(ctx context.Context, image []byte) ([]capture.Detection, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire classifier slot: %w", err)
	}
	defer c.sem.Release(1)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "capture.png")
	if err != nil {
		return nil, fmt.Errorf("failed to build detect request: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to build detect request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build detect request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, data)
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	c.logger.Debugw("image classified",
		"detections", len(parsed.Detections),
		"duration_ms", time.Since(start).Milliseconds())
	return parsed.Detections, nil
}
