package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamod-server/pkg/analysis"
)

func dialHub(t *testing.T, hub *AnalysisHub, query string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(stdhttp.HandlerFunc(hub.ServeWs))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestHubBroadcastsProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewAnalysisHub(logrus.New())
	go hub.Run(ctx)

	conn := dialHub(t, hub, "")

	// Give the hub a moment to register the client
	time.Sleep(50 * time.Millisecond)

	hub.Publish(analysis.Event{
		UploadID:  "u-1",
		Stage:     analysis.StageTranscribing,
		Timestamp: time.Now(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var message ProgressMessage
	require.NoError(t, json.Unmarshal(data, &message))
	assert.Equal(t, "u-1", message.UploadID)
	assert.Equal(t, analysis.StageTranscribing, message.Stage)
}

func TestHubFiltersBySubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewAnalysisHub(logrus.New())
	go hub.Run(ctx)

	conn := dialHub(t, hub, "?upload_id=u-2")
	time.Sleep(50 * time.Millisecond)

	hub.Publish(analysis.Event{UploadID: "u-other", Stage: analysis.StageComplete, Timestamp: time.Now()})
	hub.Publish(analysis.Event{UploadID: "u-2", Stage: analysis.StageComplete, Timestamp: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var message ProgressMessage
	require.NoError(t, json.Unmarshal(data, &message))
	assert.Equal(t, "u-2", message.UploadID, "subscribed clients only see their upload")
}

func TestPublishDoesNotBlockWithoutRunningHub(t *testing.T) {
	hub := NewAnalysisHub(logrus.New())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Publish(analysis.Event{UploadID: "u-3", Stage: analysis.StageExtracting, Timestamp: time.Now()})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no hub consumer")
	}
}
