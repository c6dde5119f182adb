package stt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/metrics"
)

func init() {
	metrics.EnableMetrics(false)
}

// MockSttProvider implements Provider interface for testing
type MockSttProvider struct {
	mock.Mock
}

func (m *MockSttProvider) Initialize() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSttProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSttProvider) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*analysis.Transcript, error) {
	args := m.Called(ctx, audio, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.Transcript), args.Error(1)
}

func TestNewProviderManager(t *testing.T) {
	logger := logrus.New()
	defaultProvider := "test"

	manager := NewProviderManager(logger, defaultProvider)

	assert.NotNil(t, manager, "ProviderManager should not be nil")
	assert.Equal(t, defaultProvider, manager.defaultProvider, "Default provider should match")
	assert.Empty(t, manager.providers, "Providers map should be initialized and empty")
}

func TestRegisterProvider(t *testing.T) {
	logger := logrus.New()
	manager := NewProviderManager(logger, "test")

	// Create a mock provider that initializes successfully
	provider := new(MockSttProvider)
	provider.On("Initialize").Return(nil)
	provider.On("Name").Return("test")

	err := manager.RegisterProvider(provider)

	assert.NoError(t, err, "RegisterProvider should not return an error")
	registered, exists := manager.GetProvider("test")
	assert.True(t, exists, "Provider should be registered")
	assert.Equal(t, provider, registered, "Registered provider should match")
	provider.AssertExpectations(t)
}

func TestRegisterProviderInitializationFailure(t *testing.T) {
	logger := logrus.New()
	manager := NewProviderManager(logger, "test")

	provider := new(MockSttProvider)
	provider.On("Initialize").Return(errors.New("missing credentials"))
	provider.On("Name").Return("test")

	err := manager.RegisterProvider(provider)

	assert.Error(t, err, "RegisterProvider should propagate initialization errors")
	_, exists := manager.GetProvider("test")
	assert.False(t, exists, "Failed provider should not be registered")
}

func TestGetDefaultProvider(t *testing.T) {
	logger := logrus.New()
	manager := NewProviderManager(logger, "mock")

	require.NoError(t, manager.RegisterProvider(NewMockProvider(logger)))

	provider, exists := manager.GetDefaultProvider()
	assert.True(t, exists)
	assert.Equal(t, "mock", provider.Name())
}

func TestTranscribeRoutesToDefaultProvider(t *testing.T) {
	logger := logrus.New()
	manager := NewProviderManager(logger, "test")

	expected := &analysis.Transcript{Text: "hello there.", Words: []analysis.Word{{Text: "hello", Start: 0, End: 0.4}}}

	provider := new(MockSttProvider)
	provider.On("Initialize").Return(nil)
	provider.On("Name").Return("test")
	provider.On("Transcribe", mock.Anything, mock.Anything, "audio/wav").Return(expected, nil)
	require.NoError(t, manager.RegisterProvider(provider))

	transcript, err := manager.Transcribe(context.Background(), bytes.NewReader([]byte("audio")), "audio/wav")

	require.NoError(t, err)
	assert.Equal(t, expected, transcript)
	provider.AssertExpectations(t)
}

func TestTranscribeWithUnknownProviderFallsBack(t *testing.T) {
	logger := logrus.New()
	manager := NewProviderManager(logger, "test")

	provider := new(MockSttProvider)
	provider.On("Initialize").Return(nil)
	provider.On("Name").Return("test")
	provider.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).
		Return(&analysis.Transcript{}, nil)
	require.NoError(t, manager.RegisterProvider(provider))

	_, err := manager.TranscribeWith(context.Background(), "nonexistent", bytes.NewReader(nil), "audio/wav")

	assert.NoError(t, err, "Unknown provider should fall back to default")
	provider.AssertNumberOfCalls(t, "Transcribe", 1)
}

func TestTranscribeNoProviderAvailable(t *testing.T) {
	logger := logrus.New()
	manager := NewProviderManager(logger, "missing")

	_, err := manager.Transcribe(context.Background(), bytes.NewReader(nil), "audio/wav")

	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestMockProviderTranscribe(t *testing.T) {
	logger := logrus.New()
	provider := NewMockProvider(logger)
	require.NoError(t, provider.Initialize())

	transcript, err := provider.Transcribe(context.Background(), bytes.NewReader([]byte("audio")), "audio/wav")

	require.NoError(t, err)
	assert.NotEmpty(t, transcript.Words)
	assert.NotEmpty(t, transcript.Text)

	// The canned transcript carries a gap wide enough for pause detection.
	var widest float64
	for i := 1; i < len(transcript.Words); i++ {
		if gap := transcript.Words[i].Start - transcript.Words[i-1].End; gap > widest {
			widest = gap
		}
	}
	assert.Greater(t, widest, analysis.DefaultPauseThreshold)
}
