package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/errors"
	"mediamod-server/pkg/metrics"
)

// Analyzer runs the moderation pipeline on an uploaded file.
type Analyzer interface {
	Analyze(ctx context.Context, uploadID, path string) (*analysis.Report, error)
}

// UploadHandler accepts media uploads and runs them through the analysis
// pipeline synchronously, returning the flagged issues and report.
type UploadHandler struct {
	logger            *logrus.Logger
	analyzer          Analyzer
	uploadDir         string
	maxUploadBytes    int64
	allowedExtensions map[string]bool
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(logger *logrus.Logger, analyzer Analyzer, config *Config) *UploadHandler {
	if config == nil {
		config = DefaultConfig()
	}

	allowed := make(map[string]bool, len(config.AllowedExtensions))
	for _, ext := range config.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimSpace(ext))] = true
	}

	return &UploadHandler{
		logger:            logger,
		analyzer:          analyzer,
		uploadDir:         config.UploadDir,
		maxUploadBytes:    config.MaxUploadBytes,
		allowedExtensions: allowed,
	}
}

// ServeHTTP handles POST /api/v1/analyze with a multipart "file" field.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	startTime := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		errors.WriteError(w, errors.NewInvalidInput("missing or oversized file field", map[string]interface{}{"error": err.Error()}))
		return
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !h.allowedExtensions[ext] {
		metrics.RecordUpload(ext, "rejected", 0)
		errors.WriteError(w, errors.NewUnsupportedMedia(ext))
		return
	}

	uploadID := uuid.New().String()
	path := filepath.Join(h.uploadDir, uploadID+"."+ext)

	size, err := h.savePart(file, path)
	if err != nil {
		h.logger.WithError(err).Error("Failed to store upload")
		errors.WriteError(w, errors.NewInternalError("failed to store upload", map[string]interface{}{"error": err.Error()}))
		return
	}
	defer os.Remove(path)

	h.logger.WithFields(logrus.Fields{
		"upload_id": uploadID,
		"filename":  header.Filename,
		"bytes":     size,
	}).Info("Upload received")

	metrics.SetActiveAnalyses(1)
	report, err := h.analyzer.Analyze(r.Context(), uploadID, path)
	metrics.SetActiveAnalyses(-1)
	if err != nil {
		metrics.RecordUpload(ext, "failed", size)
		h.logger.WithFields(logrus.Fields{
			"upload_id": uploadID,
			"error":     err,
		}).Error("Analysis failed")
		errors.WriteError(w, err)
		return
	}

	metrics.RecordUpload(ext, "analyzed", size)
	metrics.RecordPipeline(ext, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.logger.WithError(err).Error("Failed to encode analysis report")
	}
}

// savePart streams the uploaded part to disk and returns its size.
func (h *UploadHandler) savePart(part io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return 0, err
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	return io.Copy(out, part)
}
