package analysis

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/errors"
)

// VideoConfig holds configuration for the frame sampler / violence detector.
type VideoConfig struct {
	// FallbackFPS is used when the source reports an invalid or zero frame rate.
	FallbackFPS int

	// ViolentClasses are the detected object classes that flag a frame.
	ViolentClasses []string
}

// DefaultVideoConfig returns default configuration.
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		FallbackFPS:    DefaultFallbackFPS,
		ViolentClasses: DefaultViolentClasses(),
	}
}

// VideoAnalyzer samples one frame per second of source video and flags frames
// in which the object-detection capability finds a violent object class.
type VideoAnalyzer struct {
	opener   VideoOpener
	detector Detector
	config   VideoConfig
	logger   *logrus.Logger

	violent map[string]struct{}
}

// NewVideoAnalyzer creates a new VideoAnalyzer.
func NewVideoAnalyzer(logger *logrus.Logger, opener VideoOpener, detector Detector, config VideoConfig) *VideoAnalyzer {
	if config.FallbackFPS <= 0 {
		config.FallbackFPS = DefaultFallbackFPS
	}
	if len(config.ViolentClasses) == 0 {
		config.ViolentClasses = DefaultViolentClasses()
	}

	violent := make(map[string]struct{}, len(config.ViolentClasses))
	for _, class := range config.ViolentClasses {
		violent[strings.ToLower(class)] = struct{}{}
	}

	return &VideoAnalyzer{
		opener:   opener,
		detector: detector,
		config:   config,
		logger:   logger,
		violent:  violent,
	}
}

// Analyze opens the video at path and scans it. A source that cannot be
// opened yields an empty issue list rather than aborting the pipeline; a
// detection capability failure on an opened source does abort.
func (v *VideoAnalyzer) Analyze(ctx context.Context, path string) ([]Issue, error) {
	source, err := v.opener.Open(ctx, path)
	if err != nil {
		v.logger.WithError(err).WithField("path", path).Warn("Could not open video source, skipping frame analysis")
		return []Issue{}, nil
	}
	defer source.Close()

	return v.scan(ctx, source)
}

// scan iterates frames in decode order, sampling one per elapsed second of
// source video.
func (v *VideoAnalyzer) scan(ctx context.Context, source FrameSource) ([]Issue, error) {
	fps := int(source.FPS())
	if fps <= 0 {
		v.logger.WithField("fallback_fps", v.config.FallbackFPS).Warn("Source reported invalid frame rate, using fallback")
		fps = v.config.FallbackFPS
	}
	frameSkip := fps

	issues := make([]Issue, 0)
	frameCount := 0

	for {
		frame, err := source.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			v.logger.WithError(err).Warn("Frame decode stopped early")
			break
		}

		if frameCount%frameSkip == 0 {
			timestamp := float64(frameCount) / float64(fps)

			flagged, err := v.frameIsViolent(ctx, frame)
			if err != nil {
				return nil, errors.Wrap(errors.ErrDetectionFailed, err.Error())
			}
			if flagged {
				issues = append(issues, NewIssue(IssueViolentImagery, timestamp))
			}
		}

		frameCount++
	}

	v.logger.WithFields(logrus.Fields{
		"frames": frameCount,
		"fps":    fps,
		"issues": len(issues),
	}).Debug("Frame scan complete")

	return issues, nil
}

// frameIsViolent reports whether any detection in the frame matches the
// violent class set. The first match short-circuits, so a frame contributes
// at most one issue regardless of how many matching objects it contains.
func (v *VideoAnalyzer) frameIsViolent(ctx context.Context, frame []byte) (bool, error) {
	detections, err := v.detector.Detect(ctx, frame)
	if err != nil {
		return false, err
	}

	for _, detection := range detections {
		if _, ok := v.violent[strings.ToLower(detection.ClassName)]; ok {
			return true, nil
		}
	}

	return false, nil
}
