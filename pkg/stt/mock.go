package stt

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
)

// MockProvider implements a mock speech-to-text provider for local
// development without cloud credentials
type MockProvider struct {
	logger *logrus.Logger
}

// NewMockProvider creates a new mock provider
func NewMockProvider(logger *logrus.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Initialize initializes the mock provider
func (p *MockProvider) Initialize() error {
	p.logger.Info("Mock STT provider initialized")
	return nil
}

// Transcribe drains the audio stream and returns a canned transcript with a
// long pause, so the full pipeline can be exercised end to end.
func (p *MockProvider) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*analysis.Transcript, error) {
	n, err := io.Copy(io.Discard, audio)
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"bytes":     n,
		"mime_type": mimeType,
	}).Info("Mock STT provider processed audio stream")

	words := []analysis.Word{
		{Text: "This", Start: 0.0, End: 0.3},
		{Text: "is", Start: 0.3, End: 0.5},
		{Text: "a", Start: 0.5, End: 0.6},
		{Text: "mock", Start: 0.6, End: 0.9},
		{Text: "transcription.", Start: 0.9, End: 1.4},
		{Text: "It", Start: 4.0, End: 4.2},
		{Text: "resumes", Start: 4.2, End: 4.6},
		{Text: "after", Start: 4.6, End: 4.9},
		{Text: "a", Start: 4.9, End: 5.0},
		{Text: "long", Start: 5.0, End: 5.3},
		{Text: "pause.", Start: 5.3, End: 5.8},
	}

	text := ""
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w.Text
	}

	return &analysis.Transcript{Words: words, Text: text}, nil
}
