package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/errors"
)

// AmazonConfig holds Amazon Transcribe settings
type AmazonConfig struct {
	Region     string
	Language   string
	SampleRate int32
}

// DefaultAmazonConfig returns defaults matching the extracted mono 16kHz
// audio the pipeline produces.
func DefaultAmazonConfig() *AmazonConfig {
	return &AmazonConfig{
		Region:     "us-east-1",
		Language:   "en-US",
		SampleRate: 16000,
	}
}

// AmazonTranscribeProvider implements the Provider interface for Amazon
// Transcribe. The service only exposes a streaming API, so a prerecorded
// file is streamed through in chunks and the final results are accumulated
// into one transcript.
type AmazonTranscribeProvider struct {
	logger *logrus.Logger
	client *transcribestreaming.Client
	config *AmazonConfig
	mutex  sync.RWMutex
}

// NewAmazonTranscribeProvider creates a new Amazon Transcribe provider
func NewAmazonTranscribeProvider(logger *logrus.Logger, cfg *AmazonConfig) *AmazonTranscribeProvider {
	if cfg == nil {
		cfg = DefaultAmazonConfig()
	}
	return &AmazonTranscribeProvider{
		logger: logger,
		config: cfg,
	}
}

// Name returns the provider name
func (p *AmazonTranscribeProvider) Name() string {
	return "amazon-transcribe"
}

// Initialize initializes the Amazon Transcribe client. Credentials come from
// the default AWS credential chain.
func (p *AmazonTranscribeProvider) Initialize() error {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(p.config.Region),
		awsconfig.WithRetryMaxAttempts(3),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
	)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load AWS configuration")
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	p.mutex.Lock()
	p.client = transcribestreaming.NewFromConfig(cfg)
	p.mutex.Unlock()

	p.logger.WithFields(logrus.Fields{
		"region":      p.config.Region,
		"language":    p.config.Language,
		"sample_rate": p.config.SampleRate,
	}).Info("Amazon Transcribe client initialized successfully")

	return nil
}

// Transcribe streams the audio through Amazon Transcribe and accumulates the
// final results into a word-level transcript.
func (p *AmazonTranscribeProvider) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*analysis.Transcript, error) {
	p.mutex.RLock()
	client := p.client
	p.mutex.RUnlock()
	if client == nil {
		return nil, ErrInitializationFailed
	}

	input := &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(p.config.Language),
		MediaSampleRateHertz: aws.Int32(p.config.SampleRate),
		MediaEncoding:        types.MediaEncodingPcm,
	}

	resp, err := client.StartStreamTranscription(ctx, input)
	if err != nil {
		p.logger.WithError(err).Error("Failed to start Amazon Transcribe stream")
		return nil, errors.Wrap(errors.ErrTranscriptionFailed, err.Error())
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 2)
	doneChan := make(chan struct{})

	transcript := &analysis.Transcript{}

	// Audio sender goroutine
	go func() {
		defer func() {
			if closeErr := resp.GetStream().Close(); closeErr != nil {
				p.logger.WithError(closeErr).Debug("Failed to close stream")
			}
		}()

		buffer := make([]byte, 1024)
		for {
			select {
			case <-streamCtx.Done():
				return
			default:
				n, readErr := audio.Read(buffer)
				if n > 0 {
					audioEvent := &types.AudioStreamMemberAudioEvent{
						Value: types.AudioEvent{
							AudioChunk: buffer[:n],
						},
					}
					if sendErr := resp.GetStream().Send(streamCtx, audioEvent); sendErr != nil {
						errChan <- sendErr
						return
					}
				}
				if readErr == io.EOF {
					return
				}
				if readErr != nil {
					errChan <- readErr
					return
				}
			}
		}
	}()

	// Response receiver goroutine
	go func() {
		defer close(doneChan)

		for event := range resp.GetStream().Events() {
			if transcriptEvent, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent); ok {
				p.accumulateTranscriptEvent(transcriptEvent.Value, transcript)
			}
		}

		if streamErr := resp.GetStream().Err(); streamErr != nil {
			errChan <- streamErr
		}
	}()

	select {
	case err := <-errChan:
		cancel()
		return nil, errors.Wrap(errors.ErrTranscriptionFailed, err.Error())
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	case <-doneChan:
	}

	p.logger.WithField("words", len(transcript.Words)).Info("Transcription received from Amazon Transcribe")

	return transcript, nil
}

// accumulateTranscriptEvent folds the final results of one transcript event
// into the accumulated transcript. Punctuation items attach to the previous
// word so sentence grouping sees terminal marks.
func (p *AmazonTranscribeProvider) accumulateTranscriptEvent(event types.TranscriptEvent, transcript *analysis.Transcript) {
	if event.Transcript == nil {
		return
	}

	for _, result := range event.Transcript.Results {
		if result.IsPartial || len(result.Alternatives) == 0 {
			continue
		}

		alternative := result.Alternatives[0]
		if alternative.Transcript != nil && *alternative.Transcript != "" {
			if transcript.Text != "" {
				transcript.Text += " "
			}
			transcript.Text += *alternative.Transcript
		}

		for _, item := range alternative.Items {
			if item.Content == nil {
				continue
			}
			switch item.Type {
			case types.ItemTypePronunciation:
				transcript.Words = append(transcript.Words, analysis.Word{
					Text:  *item.Content,
					Start: item.StartTime,
					End:   item.EndTime,
				})
			case types.ItemTypePunctuation:
				if n := len(transcript.Words); n > 0 {
					transcript.Words[n-1].Text += *item.Content
				}
			}
		}
	}
}
