// Package inference holds the HTTP clients for the external model
// backends. Every transport or application failure surfaces as
// domain.ErrUpstreamInference: tasks are retried by being re-requested,
// never by in-process retry loops.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/logger"
)

// RegionOutput is one region reported by a detection backend. Labels and
// lesion types arrive as the backend's wire strings; translation to domain
// enums is the worker's job.
type RegionOutput struct {
	Border     []domain.Vertex `json:"border"`
	Label      string          `json:"label"`
	Score      float64         `json:"score"`
	LesionType string          `json:"lesion_type"`
}

// DetectionOutput is the per-image result of a batch detection call.
type DetectionOutput struct {
	Regions []RegionOutput `json:"regions"`
}

// ClassificationOutput is the result of classifying one image.
type ClassificationOutput struct {
	AnatomicalSite string `json:"anatomical_site"`
	LesionType     string `json:"lesion_type"`
	HPStatus       string `json:"hp_status,omitempty"`
}

// Client calls one inference backend endpoint.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. name appears in logs and errors so
// operators can tell backends apart.
func NewClient(name, baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the backend in logs.
func (c *Client) Name() string {
	return c.name
}

// BatchDetect submits a batch of images and returns one output per image,
// in request order.
func (c *Client) BatchDetect(ctx context.Context, images [][]byte) ([]DetectionOutput, error) {
	type imagePayload struct {
		Content string `json:"content"`
	}
	request := struct {
		Images []imagePayload `json:"images"`
	}{}
	for _, img := range images {
		request.Images = append(request.Images, imagePayload{
			Content: base64.StdEncoding.EncodeToString(img),
		})
	}

	var response struct {
		Results []DetectionOutput `json:"results"`
	}
	if err := c.post(ctx, "/v1/batch-detect", request, &response); err != nil {
		return nil, err
	}

	if len(response.Results) != len(images) {
		return nil, fmt.Errorf("%w: backend %s returned %d results for %d images",
			domain.ErrUpstreamInference, c.name, len(response.Results), len(images))
	}
	return response.Results, nil
}

// Classify submits one image for classification.
func (c *Client) Classify(ctx context.Context, image []byte) (*ClassificationOutput, error) {
	request := struct {
		Content string `json:"content"`
	}{Content: base64.StdEncoding.EncodeToString(image)}

	var response ClassificationOutput
	if err := c.post(ctx, "/v1/classify", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	log := logger.FromContext(ctx)

	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("invalid backend path %q: %w", path, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode backend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("inference backend call failed",
			"backend", c.name,
			"path", path,
			"error", err)
		return fmt.Errorf("%w: backend %s: %v", domain.ErrUpstreamInference, c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("inference backend returned error status",
			"backend", c.name,
			"path", path,
			"status", resp.StatusCode,
			"body", string(raw))
		return fmt.Errorf("%w: backend %s returned status %d",
			domain.ErrUpstreamInference, c.name, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: backend %s: invalid response: %v",
			domain.ErrUpstreamInference, c.name, err)
	}
	return nil
}
