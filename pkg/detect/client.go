package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/metrics"
	"mediamod-server/pkg/version"
)

// Config holds configuration for the object detection service.
type Config struct {
	BaseURL       string // detection API URL, e.g. "http://localhost:8002"
	Timeout       time.Duration
	MinConfidence float64 // detections below this score are dropped server-side
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:8002",
		Timeout:       30 * time.Second,
		MinConfidence: analysis.DetectionConfidenceStrict,
	}
}

// Client calls an object detection inference service on JPEG frames. It
// implements analysis.Detector.
type Client struct {
	logger     *logrus.Logger
	config     Config
	httpClient *http.Client
	classNames map[int]string
}

// NewClient creates a new object detection client.
func NewClient(logger *logrus.Logger, config Config) *Client {
	return &Client{
		logger: logger,
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// classesResponse maps model class IDs to names.
type classesResponse struct {
	Classes map[string]string `json:"classes"`
}

// LoadClasses fetches the model's class ID to name table. Detections that
// arrive without a name are resolved against it.
func (c *Client) LoadClasses(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/classes", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call detection API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detection API returned status %d for class table", resp.StatusCode)
	}

	var result classesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode class table: %w", err)
	}

	c.classNames = make(map[int]string, len(result.Classes))
	for id, name := range result.Classes {
		classID, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		c.classNames[classID] = name
	}

	c.logger.WithField("classes", len(c.classNames)).Info("Loaded detection class table")
	return nil
}

type detectionItem struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
}

type detectResponse struct {
	Detections []detectionItem `json:"detections"`
}

// Detect submits one JPEG frame and returns the objects found above the
// configured confidence floor.
func (c *Client) Detect(ctx context.Context, frame []byte) ([]analysis.Detection, error) {
	startTime := time.Now()
	detections, err := c.detect(ctx, frame)
	metrics.ObserveCapability("detection", time.Since(startTime), err)
	metrics.AddFramesInspected("object-detection", 1)
	return detections, err
}

func (c *Client) detect(ctx context.Context, frame []byte) ([]analysis.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return nil, fmt.Errorf("failed to write frame data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	url := fmt.Sprintf("%s/detect?min_confidence=%g", c.config.BaseURL, c.config.MinConfidence)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call detection API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detection API returned status %d: %s", resp.StatusCode, respBody)
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode detection response: %w", err)
	}

	detections := make([]analysis.Detection, 0, len(result.Detections))
	for _, d := range result.Detections {
		name := d.ClassName
		if name == "" {
			name = c.classNames[d.ClassID]
		}
		detections = append(detections, analysis.Detection{ClassName: name})
	}

	return detections, nil
}
