package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/errors"
	"mediamod-server/pkg/version"
)

// DeepgramProvider implements the Provider interface against the Deepgram
// prerecorded transcription API
type DeepgramProvider struct {
	logger     *logrus.Logger
	apiKey     string
	apiURL     string
	model      string
	language   string
	httpClient *http.Client
}

// NewDeepgramProvider creates a new Deepgram provider
func NewDeepgramProvider(logger *logrus.Logger) *DeepgramProvider {
	return &DeepgramProvider{
		logger:     logger,
		apiURL:     "https://api.deepgram.com/v1/listen",
		model:      "general",
		language:   "en",
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Name returns the provider name
func (p *DeepgramProvider) Name() string {
	return "deepgram"
}

// Initialize initializes the Deepgram client
func (p *DeepgramProvider) Initialize() error {
	p.apiKey = os.Getenv("DEEPGRAM_API_KEY")
	if p.apiKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is not set in the environment: %w", ErrMissingAPIKey)
	}
	p.logger.Info("Deepgram provider initialized successfully")
	return nil
}

// SetAPIURL overrides the API endpoint. Used in tests.
func (p *DeepgramProvider) SetAPIURL(url string) {
	p.apiURL = url
}

// DeepgramResponse defines the structure for the Deepgram API response
type DeepgramResponse struct {
	RequestID string `json:"request_id"`
	Results   struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word           string  `json:"word"`
					PunctuatedWord string  `json:"punctuated_word,omitempty"`
					Start          float64 `json:"start"`
					End            float64 `json:"end"`
					Confidence     float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
	Metadata struct {
		RequestID string  `json:"request_id"`
		Created   string  `json:"created"`
		Duration  float64 `json:"duration"`
		Channels  int     `json:"channels"`
	} `json:"metadata"`
}

// Transcribe sends the complete audio stream to Deepgram and returns the
// word-level transcript. Words carry punctuation when Deepgram provides
// punctuated variants, so downstream sentence grouping sees terminal marks.
func (p *DeepgramProvider) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*analysis.Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", p.apiURL, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("User-Agent", version.UserAgent())

	query := req.URL.Query()
	query.Add("model", p.model)
	query.Add("language", p.language)
	query.Add("punctuate", "true")
	query.Add("diarize", "false")
	req.URL.RawQuery = query.Encode()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Deepgram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Wrap(errors.ErrTranscriptionFailed,
			fmt.Sprintf("deepgram API returned non-200 status code: %d (%s)", resp.StatusCode, body))
	}

	var deepgramResp DeepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&deepgramResp); err != nil {
		return nil, fmt.Errorf("failed to decode Deepgram response: %w", err)
	}

	if len(deepgramResp.Results.Channels) == 0 || len(deepgramResp.Results.Channels[0].Alternatives) == 0 {
		p.logger.WithField("request_id", deepgramResp.RequestID).Warn("Deepgram returned no alternatives")
		return &analysis.Transcript{}, nil
	}

	alternative := deepgramResp.Results.Channels[0].Alternatives[0]

	transcript := &analysis.Transcript{
		Text:  alternative.Transcript,
		Words: make([]analysis.Word, 0, len(alternative.Words)),
	}
	for _, w := range alternative.Words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		transcript.Words = append(transcript.Words, analysis.Word{
			Text:  text,
			Start: w.Start,
			End:   w.End,
		})
	}

	p.logger.WithFields(logrus.Fields{
		"request_id": deepgramResp.RequestID,
		"confidence": alternative.Confidence,
		"duration":   deepgramResp.Metadata.Duration,
		"words":      len(transcript.Words),
	}).Info("Transcription received from Deepgram")

	return transcript, nil
}
