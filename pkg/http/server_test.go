package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnection struct {
	connected bool
}

func (s *stubConnection) IsConnected() bool {
	return s.connected
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	config := DefaultConfig()
	config.EnableMetrics = false
	return NewServer(logrus.New(), config)
}

func TestHealthHandlerHealthy(t *testing.T) {
	server := newTestServer(t)
	server.SetUploadHandler(NewUploadHandler(logrus.New(), new(MockAnalyzer), nil))
	server.SetWebSocketHub(NewAnalysisHub(logrus.New()))

	recorder := httptest.NewRecorder()
	server.HealthHandler(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	var health HealthStatus
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Checks["pipeline"].Status)
	assert.Equal(t, "healthy", health.Checks["websocket"].Status)
}

func TestHealthHandlerUnhealthyWithoutPipeline(t *testing.T) {
	server := newTestServer(t)

	recorder := httptest.NewRecorder()
	server.HealthHandler(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestHealthHandlerDegradedAMQP(t *testing.T) {
	server := newTestServer(t)
	server.SetUploadHandler(NewUploadHandler(logrus.New(), new(MockAnalyzer), nil))
	server.SetAMQPClient(&stubConnection{connected: false})

	recorder := httptest.NewRecorder()
	server.HealthHandler(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	var health HealthStatus
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
}

func TestReadinessHandler(t *testing.T) {
	server := newTestServer(t)

	recorder := httptest.NewRecorder()
	server.ReadinessHandler(recorder, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	server.SetUploadHandler(NewUploadHandler(logrus.New(), new(MockAnalyzer), nil))

	recorder = httptest.NewRecorder()
	server.ReadinessHandler(recorder, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil))

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}
