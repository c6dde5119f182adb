package analysis

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/errors"
	"mediamod-server/pkg/metrics"
)

// Transcriber is the external transcription capability: an audio buffer in,
// an ordered word sequence plus flattened transcript text out.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*Transcript, error)
}

// Classifier is the external single-label text-classification capability.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
}

// Detector is the external object-detection capability. The frame is a single
// encoded image; the detector applies its own confidence floor.
type Detector interface {
	Detect(ctx context.Context, frame []byte) ([]Detection, error)
}

// Completer is the external language-model completion capability.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// FrameSource yields video frames in decode order. ReadFrame returns io.EOF
// when the decoder reports no more frames.
type FrameSource interface {
	FPS() float64
	ReadFrame() ([]byte, error)
	Close() error
}

// VideoOpener opens a decodable video source by path.
type VideoOpener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}

// AudioExtractor extracts the audio track of a video file, returning the path
// of the extracted audio. The extracted file is left for caller cleanup.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
}

// Event is a pipeline progress notification.
type Event struct {
	UploadID  string                 `json:"upload_id"`
	Stage     string                 `json:"stage"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Pipeline stage names published as progress events.
const (
	StageExtracting    = "extracting_audio"
	StageTranscribing  = "transcribing"
	StageAudioAnalysis = "audio_analysis"
	StageVideoAnalysis = "video_analysis"
	StageSummarizing   = "summarizing"
	StageComplete      = "complete"
	StageFailed        = "failed"
)

// EventSink receives pipeline progress events. Implementations must not block.
type EventSink interface {
	Publish(event Event)
}

// ReportSink receives completed reports, e.g. for publication to a message queue.
type ReportSink interface {
	PublishReport(ctx context.Context, report *Report) error
}

// Config holds pipeline-wide configuration.
type Config struct {
	Audio AudioConfig
	Video VideoConfig

	// MergeByTimestamp orders the combined issue list by offset instead of
	// keeping audio issues grouped before video issues.
	MergeByTimestamp bool

	// Timeout bounds a single end-to-end analysis. Zero disables the bound.
	Timeout time.Duration
}

// DefaultConfig returns default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Audio:            DefaultAudioConfig(),
		Video:            DefaultVideoConfig(),
		MergeByTimestamp: false,
		Timeout:          10 * time.Minute,
	}
}

// Pipeline runs the full media-to-report analysis for one uploaded file.
// Processing is synchronous: transcription, audio analysis, video analysis
// and summarization run strictly in sequence, suspending only at capability
// call boundaries.
type Pipeline struct {
	transcriber Transcriber
	audio       *AudioAnalyzer
	video       *VideoAnalyzer
	summaries   *SummaryGenerator
	extractor   AudioExtractor
	config      Config
	logger      *logrus.Logger

	events  EventSink
	reports ReportSink
}

// NewPipeline creates a new Pipeline.
func NewPipeline(
	logger *logrus.Logger,
	transcriber Transcriber,
	audio *AudioAnalyzer,
	video *VideoAnalyzer,
	summaries *SummaryGenerator,
	extractor AudioExtractor,
	config Config,
) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		audio:       audio,
		video:       video,
		summaries:   summaries,
		extractor:   extractor,
		config:      config,
		logger:      logger,
	}
}

// SetEventSink attaches an optional sink for progress events.
func (p *Pipeline) SetEventSink(sink EventSink) {
	p.events = sink
}

// SetReportSink attaches an optional sink for completed reports.
func (p *Pipeline) SetReportSink(sink ReportSink) {
	p.reports = sink
}

var audioMimeTypes = map[string]string{
	"mp3": "audio/mpeg",
	"wav": "audio/wav",
}

// IsVideoExtension reports whether the extension selects the video path.
func IsVideoExtension(ext string) bool {
	return strings.ToLower(ext) == "mp4"
}

// Analyze processes one uploaded media file end to end and returns the report.
// Any capability failure aborts the whole analysis and discards partial
// results; an unopenable video degrades to an empty video-issue list.
func (p *Pipeline) Analyze(ctx context.Context, uploadID, path string) (*Report, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	log := p.logger.WithFields(logrus.Fields{
		"upload_id": uploadID,
		"path":      path,
	})
	started := time.Now()

	report, err := p.analyze(ctx, uploadID, path, log)
	if err != nil {
		p.publish(uploadID, StageFailed, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	p.publish(uploadID, StageComplete, map[string]interface{}{
		"issues":   len(report.Issues),
		"duration": time.Since(started).String(),
	})

	if p.reports != nil {
		if err := p.reports.PublishReport(ctx, report); err != nil {
			log.WithError(err).Warn("Failed to publish report")
		}
	}

	log.WithFields(logrus.Fields{
		"issues":    len(report.Issues),
		"sentiment": report.Sentiment,
		"elapsed":   time.Since(started),
	}).Info("Analysis complete")

	return report, nil
}

func (p *Pipeline) analyze(ctx context.Context, uploadID, path string, log *logrus.Entry) (*Report, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	isVideo := IsVideoExtension(ext)

	audioPath := path
	mimeType, ok := audioMimeTypes[ext]
	if isVideo {
		p.publish(uploadID, StageExtracting, nil)
		extracted, err := p.extractor.ExtractAudio(ctx, path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrExtractionFailed, err.Error())
		}
		audioPath = extracted
		mimeType = "audio/wav"
		defer func() {
			if removeErr := os.Remove(extracted); removeErr != nil {
				log.WithError(removeErr).Warn("Could not remove extracted audio")
			}
		}()
	} else if !ok {
		return nil, errors.NewUnsupportedMedia(ext)
	}

	p.publish(uploadID, StageTranscribing, nil)
	transcript, err := p.transcribe(ctx, audioPath, mimeType)
	if err != nil {
		return nil, err
	}
	log.WithField("words", len(transcript.Words)).Debug("Transcription received")

	p.publish(uploadID, StageAudioAnalysis, nil)
	audioIssues, err := p.audio.Analyze(ctx, transcript.Words)
	if err != nil {
		return nil, err
	}

	videoIssues := []Issue{}
	if isVideo {
		p.publish(uploadID, StageVideoAnalysis, nil)
		videoIssues, err = p.video.Analyze(ctx, path)
		if err != nil {
			return nil, err
		}
	}

	for _, issue := range audioIssues {
		metrics.RecordIssue(issue.Kind.Label())
	}
	for _, issue := range videoIssues {
		metrics.RecordIssue(issue.Kind.Label())
	}

	report := &Report{
		ID:        uploadID,
		Issues:    AggregateIssues(audioIssues, videoIssues, p.config.MergeByTimestamp),
		Sentiment: NeutralSentiment,
	}

	// An empty transcript gets no summary or sentiment call: there is nothing
	// to summarize and the capability would be answering an empty prompt.
	if strings.TrimSpace(transcript.Text) == "" {
		log.Debug("Empty transcript, skipping summary and sentiment")
		return report, nil
	}

	p.publish(uploadID, StageSummarizing, nil)
	if report.Summary, err = p.summaries.Summarize(ctx, transcript.Text); err != nil {
		return nil, err
	}
	if report.Sentiment, err = p.summaries.Sentiment(ctx, transcript.Text); err != nil {
		return nil, err
	}

	return report, nil
}

func (p *Pipeline) transcribe(ctx context.Context, audioPath, mimeType string) (*Transcript, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrTranscriptionFailed, err.Error())
	}
	defer file.Close()

	transcript, err := p.transcriber.Transcribe(ctx, file, mimeType)
	if err != nil {
		return nil, errors.Wrap(errors.ErrTranscriptionFailed, err.Error())
	}
	return transcript, nil
}

func (p *Pipeline) publish(uploadID, stage string, metadata map[string]interface{}) {
	if p.events == nil {
		return
	}
	p.events.Publish(Event{
		UploadID:  uploadID,
		Stage:     stage,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
}
