package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
)

// FFmpegOpener opens video files as frame streams. It probes the frame rate
// with ffprobe, then decodes the video into a stream of JPEG-encoded frames
// through an ffmpeg image2pipe.
type FFmpegOpener struct {
	logger      *logrus.Logger
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegOpener creates a new FFmpegOpener. Empty paths use the binaries
// from PATH.
func NewFFmpegOpener(logger *logrus.Logger, ffmpegPath, ffprobePath string) *FFmpegOpener {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegOpener{
		logger:      logger,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Open probes and starts decoding the video at path. A probe failure means
// the source is not decodable and is reported as an open error; the caller
// decides whether that is fatal.
func (o *FFmpegOpener) Open(ctx context.Context, path string) (analysis.FrameSource, error) {
	fps, err := o.probeFPS(ctx, path)
	if err != nil {
		return nil, err
	}

	// ffmpeg -i input -f image2pipe -vcodec mjpeg -q:v 5 pipe:1
	cmd := exec.CommandContext(ctx, o.ffmpegPath,
		"-i", path,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	o.logger.WithFields(logrus.Fields{
		"path": path,
		"fps":  fps,
	}).Debug("Opened video frame stream")

	return newFrameStream(fps, stdout, cmd), nil
}

// probeFPS asks ffprobe for the average frame rate of the first video stream.
func (o *FFmpegOpener) probeFPS(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, o.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w (%s)", err, truncate(strings.TrimSpace(stderr.String()), 256))
	}

	return ParseFrameRate(strings.TrimSpace(stdout.String())), nil
}

// ParseFrameRate parses an ffprobe frame-rate expression such as
// "30000/1001", "25/1" or "29.97". Unparseable or degenerate expressions
// yield 0, which callers treat as an invalid rate.
func ParseFrameRate(expr string) float64 {
	if expr == "" {
		return 0
	}

	if num, den, found := strings.Cut(expr, "/"); found {
		n, errN := strconv.ParseFloat(num, 64)
		d, errD := strconv.ParseFloat(den, 64)
		if errN != nil || errD != nil || d == 0 {
			return 0
		}
		return n / d
	}

	value, err := strconv.ParseFloat(expr, 64)
	if err != nil {
		return 0
	}
	return value
}

// frameStream reads JPEG frames from an ffmpeg image2pipe.
type frameStream struct {
	fps    float64
	reader *bufio.Reader
	closer io.Closer
	cmd    *exec.Cmd
}

func newFrameStream(fps float64, stdout io.ReadCloser, cmd *exec.Cmd) *frameStream {
	return &frameStream{
		fps:    fps,
		reader: bufio.NewReaderSize(stdout, 1<<16),
		closer: stdout,
		cmd:    cmd,
	}
}

// FPS returns the probed frame rate of the source.
func (s *frameStream) FPS() float64 {
	return s.fps
}

// JPEG markers delimiting frames in the MJPEG stream. 0xFF bytes inside
// entropy-coded data are always stuffed with 0x00, so scanning for the raw
// EOI marker is safe.
const (
	jpegMarkerPrefix = 0xFF
	jpegSOI          = 0xD8
	jpegEOI          = 0xD9
)

// ReadFrame returns the next JPEG-encoded frame, or io.EOF when the decoder
// reports no more frames.
func (s *frameStream) ReadFrame() ([]byte, error) {
	// Scan to the next start-of-image marker.
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		if b != jpegMarkerPrefix {
			continue
		}
		next, err := s.reader.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		if next == jpegSOI {
			break
		}
	}

	frame := []byte{jpegMarkerPrefix, jpegSOI}

	// Accumulate until the end-of-image marker.
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		frame = append(frame, b)

		if b == jpegEOI && len(frame) >= 4 && frame[len(frame)-2] == jpegMarkerPrefix {
			return frame, nil
		}
	}
}

// Close releases the pipe and reaps the ffmpeg process.
func (s *frameStream) Close() error {
	s.closer.Close()
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		return s.cmd.Wait()
	}
	return nil
}
