package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/metrics"
	"mediamod-server/pkg/version"
)

// Config holds configuration for the text classification service.
type Config struct {
	BaseURL string // classification API URL, e.g. "http://localhost:8001"
	Timeout time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8001",
		Timeout: 30 * time.Second,
	}
}

// Client calls a text classification inference service that labels a
// sentence with its dominant moderation category. It implements
// analysis.Classifier.
type Client struct {
	logger     *logrus.Logger
	config     Config
	httpClient *http.Client
}

// NewClient creates a new text classification client.
func NewClient(logger *logrus.Logger, config Config) *Client {
	return &Client{
		logger: logger,
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

// apiResponse represents the inference service response.
type apiResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify sends one sentence to the classification service and returns its
// top label with confidence.
func (c *Client) Classify(ctx context.Context, text string) (*analysis.Classification, error) {
	startTime := time.Now()
	classification, err := c.classify(ctx, text)
	metrics.ObserveCapability("classification", time.Since(startTime), err)
	return classification, err
}

func (c *Client) classify(ctx context.Context, text string) (*analysis.Classification, error) {
	payload, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := c.config.BaseURL + "/classify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call classification API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classification API returned status %d: %s", resp.StatusCode, body)
	}

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode classification response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"label": result.Label,
		"score": result.Score,
	}).Debug("Sentence classified")

	return &analysis.Classification{
		Label:      result.Label,
		Confidence: result.Score,
	}, nil
}
