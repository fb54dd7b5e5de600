package imageservice_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/imageservice"
)

// capturedRequest records what the client actually sent.
type capturedRequest struct {
	method     string
	requestURI string
	body       []byte
}

func newCapturingServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()

	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.requestURI = r.URL.RequestURI()
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestGetImage(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes image metadata", func(t *testing.T) {
		server, captured := newCapturingServer(t, http.StatusOK,
			`{"id": 42, "image_type_id": 10, "original_file_name": "scope-1.jpg"}`)
		client := imageservice.NewClient(server.URL, 0)

		image, err := client.GetImage(ctx, 42)
		require.NoError(t, err)

		assert.Equal(t, http.MethodGet, captured.method)
		assert.Equal(t, "/api/images/42", captured.requestURI)
		assert.Equal(t, int64(42), image.ID)
		assert.Equal(t, int64(10), image.ImageTypeID)
		assert.Equal(t, "scope-1.jpg", image.OriginalFileName)
	})

	t.Run("404 maps to ErrImageNotFound", func(t *testing.T) {
		server, _ := newCapturingServer(t, http.StatusNotFound, "")
		client := imageservice.NewClient(server.URL, 0)

		_, err := client.GetImage(ctx, 42)
		assert.ErrorIs(t, err, domain.ErrImageNotFound)
	})

	t.Run("server errors do not map to ErrImageNotFound", func(t *testing.T) {
		server, _ := newCapturingServer(t, http.StatusInternalServerError, "")
		client := imageservice.NewClient(server.URL, 0)

		_, err := client.GetImage(ctx, 42)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrImageNotFound)
	})
}

func TestGetImageTagGroups(t *testing.T) {
	ctx := context.Background()

	server, captured := newCapturingServer(t, http.StatusOK,
		`{"image_tag_groups": [{"id": 1, "display_name": "AI-Anatomical site",
			"tags": [{"id": 101, "display_name": "(AI)Gastric body"}]}]}`)
	client := imageservice.NewClient(server.URL, 0)

	groups, err := client.GetImageTagGroups(ctx)
	require.NoError(t, err)

	// The query string must survive as a query string, not get escaped
	// into the path.
	assert.Equal(t, "/api/image-tag-groups?with_image_tag=true", captured.requestURI)

	require.Len(t, groups, 1)
	assert.Equal(t, "AI-Anatomical site", groups[0].DisplayName)
	require.Len(t, groups[0].Tags, 1)
	assert.Equal(t, int64(101), groups[0].Tags[0].ID)
}

func TestCreateRegions(t *testing.T) {
	ctx := context.Background()

	server, captured := newCapturingServer(t, http.StatusCreated, "")
	client := imageservice.NewClient(server.URL, 0)

	regions := []imageservice.RegionRequest{
		{Border: []domain.Vertex{{X: 1, Y: 2}, {X: 3, Y: 4}}, Label: "polyp-1"},
	}
	require.NoError(t, client.CreateRegions(ctx, 42, regions))

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/api/images/42/regions", captured.requestURI)

	var sent struct {
		Regions []imageservice.RegionRequest `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(captured.body, &sent))
	require.Len(t, sent.Regions, 1)
	assert.Equal(t, "polyp-1", sent.Regions[0].Label)
	assert.Equal(t, regions[0].Border, sent.Regions[0].Border)
}

func TestListRegionLabels(t *testing.T) {
	server, captured := newCapturingServer(t, http.StatusOK, `{"labels": ["polyp-1", "polyp-2"]}`)
	client := imageservice.NewClient(server.URL, 0)

	labels, err := client.ListRegionLabels(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "/api/images/42/regions/labels", captured.requestURI)
	assert.Equal(t, []string{"polyp-1", "polyp-2"}, labels)
}

func TestImageTagOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("add", func(t *testing.T) {
		server, captured := newCapturingServer(t, http.StatusOK, "")
		client := imageservice.NewClient(server.URL, 0)

		require.NoError(t, client.AddImageTag(ctx, 42, 101))
		assert.Equal(t, http.MethodPost, captured.method)
		assert.Equal(t, "/api/images/42/tags/101", captured.requestURI)
	})

	t.Run("remove", func(t *testing.T) {
		server, captured := newCapturingServer(t, http.StatusOK, "")
		client := imageservice.NewClient(server.URL, 0)

		require.NoError(t, client.RemoveImageTag(ctx, 42, 101))
		assert.Equal(t, http.MethodDelete, captured.method)
		assert.Equal(t, "/api/images/42/tags/101", captured.requestURI)
	})
}
