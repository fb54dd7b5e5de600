// Package imageservice is the HTTP client for the source-of-truth image
// service. The model service reads image metadata here and writes back
// detected regions and AI tags; it never owns image data.
package imageservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/logger"
)

// Image is the image metadata the model service consumes.
type Image struct {
	ID               int64  `json:"id"`
	ImageTypeID      int64  `json:"image_type_id"`
	OriginalFileName string `json:"original_file_name"`
}

// ImageTag is a display tag attached to images.
type ImageTag struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// ImageTagGroup is a named group of tags; AI tags live in dedicated groups.
type ImageTagGroup struct {
	ID          int64      `json:"id"`
	DisplayName string     `json:"display_name"`
	Tags        []ImageTag `json:"tags"`
}

// RegionRequest is one detected region to record on an image.
type RegionRequest struct {
	Border []domain.Vertex `json:"border"`
	Label  string          `json:"label"`
}

// Client talks to the image service over HTTP JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an image service client. timeout bounds each call;
// zero means 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetImage fetches image metadata. A 404 maps to domain.ErrImageNotFound,
// which callers treat as "subject vanished", not as a failure.
func (c *Client) GetImage(ctx context.Context, id int64) (*Image, error) {
	var image Image
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/images/%d", id), nil, nil, &image)
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// CreateRegions records detected regions on an image.
func (c *Client) CreateRegions(ctx context.Context, imageID int64, regions []RegionRequest) error {
	body := struct {
		Regions []RegionRequest `json:"regions"`
	}{Regions: regions}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/images/%d/regions", imageID), nil, body, nil)
}

// ListRegionLabels returns the labels of regions already recorded on an
// image. The detect worker uses it to avoid re-creating regions when a
// reclaimed task is reprocessed.
func (c *Client) ListRegionLabels(ctx context.Context, imageID int64) ([]string, error) {
	var resp struct {
		Labels []string `json:"labels"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/images/%d/regions/labels", imageID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Labels, nil
}

// GetImageTagGroups returns all tag groups with their tags.
func (c *Client) GetImageTagGroups(ctx context.Context) ([]ImageTagGroup, error) {
	var resp struct {
		ImageTagGroups []ImageTagGroup `json:"image_tag_groups"`
	}
	query := url.Values{"with_image_tag": []string{"true"}}
	if err := c.do(ctx, http.MethodGet, "/api/image-tag-groups", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ImageTagGroups, nil
}

// AddImageTag attaches a tag to an image.
func (c *Client) AddImageTag(ctx context.Context, imageID, imageTagID int64) error {
	return c.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/images/%d/tags/%d", imageID, imageTagID), nil, nil, nil)
}

// RemoveImageTag detaches a tag from an image. Removing a tag that is not
// attached is a no-op on the image service side.
func (c *Client) RemoveImageTag(ctx context.Context, imageID, imageTagID int64) error {
	return c.do(ctx, http.MethodDelete,
		fmt.Sprintf("/api/images/%d/tags/%d", imageID, imageTagID), nil, nil, nil)
}

// do sends one request. query must stay out of path: url.JoinPath escapes
// a ? embedded in a path element.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	log := logger.FromContext(ctx)

	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("invalid image service path %q: %w", path, err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode image service request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build image service request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("image service call failed",
			"method", method,
			"path", path,
			"error", err)
		return fmt.Errorf("image service %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrImageNotFound
	case resp.StatusCode >= 400:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("image service returned error status",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(payload))
		return fmt.Errorf("image service %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode image service response: %w", err)
		}
	}
	return nil
}
