package stt

import (
	"context"
	"fmt"
	"io"
	"os"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/errors"
)

// GoogleConfig holds Google Speech-to-Text settings
type GoogleConfig struct {
	APIKey          string
	CredentialsFile string
	Language        string
	SampleRate      int32
	Model           string
}

// DefaultGoogleConfig returns sensible defaults for the extracted mono
// 16kHz audio the pipeline feeds this provider.
func DefaultGoogleConfig() *GoogleConfig {
	return &GoogleConfig{
		Language:   "en-US",
		SampleRate: 16000,
		Model:      "default",
	}
}

// GoogleProvider implements the Provider interface for Google Speech-to-Text
type GoogleProvider struct {
	logger *logrus.Logger
	client *speech.Client
	config *GoogleConfig
}

// NewGoogleProvider creates a new Google Speech-to-Text provider
func NewGoogleProvider(logger *logrus.Logger, cfg *GoogleConfig) *GoogleProvider {
	if cfg == nil {
		cfg = DefaultGoogleConfig()
	}
	return &GoogleProvider{
		logger: logger,
		config: cfg,
	}
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return "google"
}

// Initialize initializes the Google Speech-to-Text client
func (p *GoogleProvider) Initialize() error {
	var clientOptions []option.ClientOption

	// Use API key if provided, otherwise use credentials file
	if p.config.APIKey != "" {
		clientOptions = append(clientOptions, option.WithAPIKey(p.config.APIKey))
		p.logger.Debug("Using Google STT API key authentication")
	} else if p.config.CredentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(p.config.CredentialsFile))
		p.logger.WithField("credentials_file", p.config.CredentialsFile).Debug("Using Google STT credentials file")
	} else if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		p.logger.Warn("No Google STT credentials provided (API key or credentials file)")
		return fmt.Errorf("Google STT requires either API key or credentials file: %w", ErrMissingAPIKey)
	}

	var err error
	p.client, err = speech.NewClient(context.Background(), clientOptions...)
	if err != nil {
		p.logger.WithError(err).Error("Failed to create Google Speech client")
		return fmt.Errorf("failed to create Google Speech client: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"language":    p.config.Language,
		"sample_rate": p.config.SampleRate,
		"model":       p.config.Model,
	}).Info("Google Speech-to-Text client initialized successfully")

	return nil
}

// Close releases the underlying gRPC client.
func (p *GoogleProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Transcribe runs batch recognition with word time offsets and automatic
// punctuation enabled.
func (p *GoogleProvider) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*analysis.Transcript, error) {
	if p.client == nil {
		return nil, ErrInitializationFailed
	}

	content, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encodingForMimeType(mimeType),
			SampleRateHertz:            p.config.SampleRate,
			LanguageCode:               p.config.Language,
			Model:                      p.config.Model,
			EnableWordTimeOffsets:      true,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrTranscriptionFailed, err.Error())
	}

	transcript := &analysis.Transcript{}
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alternative := result.Alternatives[0]

		if transcript.Text != "" {
			transcript.Text += " "
		}
		transcript.Text += alternative.Transcript

		for _, w := range alternative.Words {
			transcript.Words = append(transcript.Words, analysis.Word{
				Text:  w.Word,
				Start: w.StartTime.AsDuration().Seconds(),
				End:   w.EndTime.AsDuration().Seconds(),
			})
		}
	}

	p.logger.WithFields(logrus.Fields{
		"results": len(resp.Results),
		"words":   len(transcript.Words),
	}).Info("Transcription received from Google")

	return transcript, nil
}

// encodingForMimeType maps the upload's audio type to a recognition encoding.
// The extracted track is always WAV; MP3 uploads pass through unconverted.
func encodingForMimeType(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	switch mimeType {
	case "audio/mpeg":
		return speechpb.RecognitionConfig_MP3
	case "audio/wav":
		return speechpb.RecognitionConfig_LINEAR16
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
