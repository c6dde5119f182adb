package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/metrics"
	"mediamod-server/pkg/version"
)

// OpenAIClient calls the OpenAI chat completions API. It implements
// analysis.Completer.
type OpenAIClient struct {
	logger     *logrus.Logger
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI completion client.
func NewOpenAIClient(logger *logrus.Logger, model string) *OpenAIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		logger:     logger,
		apiURL:     "https://api.openai.com/v1/chat/completions",
		model:      model,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Initialize reads the API key from the environment.
func (c *OpenAIClient) Initialize() error {
	c.apiKey = os.Getenv("OPENAI_API_KEY")
	if c.apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set in the environment")
	}
	c.logger.WithField("model", c.model).Info("OpenAI completion client initialized")
	return nil
}

// SetAPIURL overrides the API endpoint. Used in tests.
func (c *OpenAIClient) SetAPIURL(url string) {
	c.apiURL = url
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends a single-turn prompt and returns the model's reply.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	startTime := time.Now()
	reply, err := c.complete(ctx, prompt)
	metrics.ObserveCapability("completion", time.Since(startTime), err)
	return reply, err
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create OpenAI request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request to OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("OpenAI API returned non-200 status code: %d (%s)", resp.StatusCode, body)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode OpenAI response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no completion found in OpenAI response")
	}

	c.logger.WithFields(logrus.Fields{
		"model":             c.model,
		"prompt_tokens":     result.Usage.PromptTokens,
		"completion_tokens": result.Usage.CompletionTokens,
	}).Debug("Completion received from OpenAI")

	return result.Choices[0].Message.Content, nil
}
