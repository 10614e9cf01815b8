package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glint/internal/domain/capture"
	"glint/internal/shared/logger"
)

func TestClient_Detect(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[
			{"class":"FACE_FEMALE","score":0.93,"box":{"x":10,"y":20,"width":30,"height":40}},
			{"class":"FEMALE_BREAST_EXPOSED","score":0.61,"box":{"x":5,"y":5,"width":10,"height":10}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 2, logger.NewLogger())

	detections, err := client.Detect(context.Background(), []byte("png-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "/detect", gotPath)
	require.Len(t, detections, 2)
	assert.Equal(t, "FACE_FEMALE", detections[0].Label)
	assert.InDelta(t, 0.93, detections[0].Score, 0.001)
	assert.Equal(t, 30, detections[0].Box.Width)
	assert.True(t, capture.ContainsExplicit(detections))
}

func TestClient_Detect_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, logger.NewLogger())

	_, err := client.Detect(context.Background(), []byte("png-bytes"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_Detect_ContextCancelled(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", 1, logger.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Detect(ctx, []byte("png-bytes"))
	assert.Error(t, err)
}
