package stt

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/metrics"
)

// Provider defines the interface for prerecorded speech-to-text providers.
type Provider interface {
	// Initialize initializes the provider with any required configuration
	Initialize() error

	// Name returns the provider name
	Name() string

	// Transcribe processes a complete audio stream and returns the
	// word-level transcript
	Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*analysis.Transcript, error)
}

// ProviderManager manages speech-to-text providers and routes transcription
// requests to the configured default. It implements analysis.Transcriber.
type ProviderManager struct {
	logger          *logrus.Logger
	providers       map[string]Provider
	defaultProvider string
}

// NewProviderManager creates a new provider manager
func NewProviderManager(logger *logrus.Logger, defaultProvider string) *ProviderManager {
	return &ProviderManager{
		logger:          logger,
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider registers a speech-to-text provider
func (m *ProviderManager) RegisterProvider(provider Provider) error {
	if err := provider.Initialize(); err != nil {
		m.logger.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"error":    err,
		}).Error("Failed to initialize speech-to-text provider")
		return err
	}

	m.providers[provider.Name()] = provider
	m.logger.WithField("provider", provider.Name()).Info("Registered speech-to-text provider")

	return nil
}

// GetProvider returns a provider by name
func (m *ProviderManager) GetProvider(name string) (Provider, bool) {
	provider, exists := m.providers[name]
	return provider, exists
}

// SetDefaultProvider changes the provider used when no explicit provider is
// named.
func (m *ProviderManager) SetDefaultProvider(name string) {
	m.defaultProvider = name
}

// GetDefaultProvider returns the default provider
func (m *ProviderManager) GetDefaultProvider() (Provider, bool) {
	return m.GetProvider(m.defaultProvider)
}

// Transcribe routes the audio stream to the default provider.
func (m *ProviderManager) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*analysis.Transcript, error) {
	return m.TranscribeWith(ctx, m.defaultProvider, audio, mimeType)
}

// TranscribeWith routes the audio stream to the named provider, falling back
// to the default when the name is unknown.
func (m *ProviderManager) TranscribeWith(ctx context.Context, providerName string, audio io.Reader, mimeType string) (*analysis.Transcript, error) {
	startTime := time.Now()

	provider, exists := m.GetProvider(providerName)
	if !exists {
		m.logger.WithFields(logrus.Fields{
			"provider":         providerName,
			"default_provider": m.defaultProvider,
		}).Warn("Provider not found, falling back to default")

		provider, exists = m.GetDefaultProvider()
		if !exists {
			return nil, ErrNoProviderAvailable
		}
	}

	transcript, err := provider.Transcribe(ctx, audio, mimeType)

	latency := time.Since(startTime)
	metrics.ObserveCapability("transcription", latency, err)

	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"latency":  latency,
			"error":    err,
		}).Error("Transcription failed")
		return nil, err
	}

	metrics.AddWordsTranscribed(provider.Name(), len(transcript.Words))
	m.logger.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"latency":  latency,
		"words":    len(transcript.Words),
	}).Info("Transcription complete")

	return transcript, nil
}
