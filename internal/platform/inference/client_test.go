package inference_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/inference"
)

func TestBatchDetect(t *testing.T) {
	ctx := context.Background()

	t.Run("encodes images and decodes per-image results", func(t *testing.T) {
		var gotPath string
		var gotContents []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			var req struct {
				Images []struct {
					Content string `json:"content"`
				} `json:"images"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			for _, img := range req.Images {
				gotContents = append(gotContents, img.Content)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []inference.DetectionOutput{
					{Regions: []inference.RegionOutput{{Label: "polyp-1", Score: 0.93}}},
					{Regions: nil},
				},
			})
		}))
		defer server.Close()

		client := inference.NewClient("polyp_detection", server.URL, 0)
		outputs, err := client.BatchDetect(ctx, [][]byte{[]byte("first"), []byte("second")})
		require.NoError(t, err)

		assert.Equal(t, "/v1/batch-detect", gotPath)
		assert.Equal(t, []string{
			base64.StdEncoding.EncodeToString([]byte("first")),
			base64.StdEncoding.EncodeToString([]byte("second")),
		}, gotContents)

		require.Len(t, outputs, 2)
		require.Len(t, outputs[0].Regions, 1)
		assert.Equal(t, "polyp-1", outputs[0].Regions[0].Label)
		assert.Empty(t, outputs[1].Regions)
	})

	t.Run("result count mismatch is an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []inference.DetectionOutput{{}},
			})
		}))
		defer server.Close()

		client := inference.NewClient("polyp_detection", server.URL, 0)
		_, err := client.BatchDetect(ctx, [][]byte{[]byte("a"), []byte("b")})
		assert.ErrorIs(t, err, domain.ErrUpstreamInference)
	})

	t.Run("error status is an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := inference.NewClient("polyp_detection", server.URL, 0)
		_, err := client.BatchDetect(ctx, [][]byte{[]byte("a")})
		assert.ErrorIs(t, err, domain.ErrUpstreamInference)
	})

	t.Run("unreachable backend is an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		client := inference.NewClient("polyp_detection", server.URL, 0)
		_, err := client.BatchDetect(ctx, [][]byte{[]byte("a")})
		assert.ErrorIs(t, err, domain.ErrUpstreamInference)
	})
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes the classification output", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_ = json.NewEncoder(w).Encode(inference.ClassificationOutput{
				AnatomicalSite: "GASTRIC_BODY",
				LesionType:     "GASTRITIS",
				HPStatus:       "POSITIVE",
			})
		}))
		defer server.Close()

		client := inference.NewClient("gastric_classification", server.URL, 0)
		output, err := client.Classify(ctx, []byte("jpeg-bytes"))
		require.NoError(t, err)

		assert.Equal(t, "/v1/classify", gotPath)
		assert.Equal(t, "GASTRIC_BODY", output.AnatomicalSite)
		assert.Equal(t, "GASTRITIS", output.LesionType)
		assert.Equal(t, "POSITIVE", output.HPStatus)
	})

	t.Run("malformed response is an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		client := inference.NewClient("gastric_classification", server.URL, 0)
		_, err := client.Classify(ctx, []byte("jpeg-bytes"))
		assert.ErrorIs(t, err, domain.ErrUpstreamInference)
	})
}
