package detect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamod-server/pkg/metrics"
)

func init() {
	metrics.EnableMetrics(false)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := DefaultConfig()
	config.BaseURL = server.URL
	return NewClient(logrus.New(), config)
}

func TestDetect(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		assert.Equal(t, "0.4", r.URL.Query().Get("min_confidence"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		json.NewEncoder(w).Encode(detectResponse{
			Detections: []detectionItem{
				{ClassID: 43, ClassName: "knife", Confidence: 0.87},
				{ClassID: 0, ClassName: "person", Confidence: 0.99},
			},
		})
	})

	detections, err := client.Detect(context.Background(), frame)

	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, "knife", detections[0].ClassName)
	assert.Equal(t, "person", detections[1].ClassName)
}

func TestDetectResolvesClassIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/classes":
			json.NewEncoder(w).Encode(classesResponse{
				Classes: map[string]string{"43": "knife", "76": "gun"},
			})
		case "/detect":
			json.NewEncoder(w).Encode(detectResponse{
				Detections: []detectionItem{{ClassID: 76, Confidence: 0.71}},
			})
		}
	})

	require.NoError(t, client.LoadClasses(context.Background()))

	detections, err := client.Detect(context.Background(), []byte{0xFF, 0xD8})

	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "gun", detections[0].ClassName, "unnamed detections resolve through the class table")
}

func TestDetectEmptyFrameResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(detectResponse{})
	})

	detections, err := client.Detect(context.Background(), []byte{0xFF, 0xD8})

	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestDetectAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad frame", http.StatusUnprocessableEntity)
	})

	_, err := client.Detect(context.Background(), []byte{0x00})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
