package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Extractor extracts audio tracks from video files by shelling out to ffmpeg.
type Extractor struct {
	logger     *logrus.Logger
	ffmpegPath string
}

// NewExtractor creates a new Extractor. ffmpegPath may be empty to use the
// binary from PATH.
func NewExtractor(logger *logrus.Logger, ffmpegPath string) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Extractor{
		logger:     logger,
		ffmpegPath: ffmpegPath,
	}
}

// ExtractAudio writes a mono 16kHz WAV next to the video file and returns its
// path. The extracted file is left in place for the caller to clean up.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	out := stripExtension(videoPath) + ".wav"

	// ffmpeg -y -i input -vn -ac 1 -ar 16000 -f wav output
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-y", "-i", videoPath,
		"-vn",
		"-ac", "1", "-ar", "16000",
		"-f", "wav",
		out,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		e.logger.WithFields(logrus.Fields{
			"video":  videoPath,
			"stderr": truncate(stderr.String(), 512),
		}).Error("ffmpeg audio extraction failed")
		return "", fmt.Errorf("ffmpeg: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"video": videoPath,
		"audio": out,
	}).Debug("Extracted audio track")

	return out, nil
}

func stripExtension(path string) string {
	if idx := strings.LastIndex(path, "."); idx > strings.LastIndex(path, "/") {
		return path[:idx]
	}
	return path
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
