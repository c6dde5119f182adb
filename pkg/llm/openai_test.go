package llm

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

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("OPENAI_API_KEY", "test-key")
	client := NewOpenAIClient(logrus.New(), "gpt-4o-mini")
	require.NoError(t, client.Initialize())
	client.SetAPIURL(server.URL)
	return client
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, `Summarize the following text: "a short talk"`, req.Messages[0].Content)

		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"choices": [{"message": {"role": "assistant", "content": "A short talk."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4}
		}`))
	})

	reply, err := client.Complete(context.Background(), `Summarize the following text: "a short talk"`)

	require.NoError(t, err)
	assert.Equal(t, "A short talk.", reply)
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "chatcmpl-2", "choices": []}`))
	})

	_, err := client.Complete(context.Background(), "prompt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion")
}

func TestCompleteAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"rate_limit_exceeded"}}`, http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "prompt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestInitializeMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	client := NewOpenAIClient(logrus.New(), "")

	assert.Error(t, client.Initialize())
}
