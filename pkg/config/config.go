package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
)

// Configuration defines the structure for storing application configuration
type Configuration struct {
	// HTTP server configuration
	HTTPPort          int
	HTTPEnableMetrics bool

	// Upload configuration
	UploadDir         string
	MaxUploadBytes    int64
	AllowedExtensions []string

	// Pipeline configuration
	PipelineTimeout  time.Duration
	MergeByTimestamp bool
	PauseThreshold   float64
	MaxSentenceWords int

	// Speech-to-text configuration
	SupportedVendors []string
	DefaultVendor    string
	AWSRegion        string

	// Google STT configuration
	GoogleAPIKey          string
	GoogleCredentialsFile string

	// Classification configuration
	ClassifyBaseURL       string
	ClassifyMinConfidence float64
	DisallowedLabels      []string

	// Detection configuration
	DetectBaseURL       string
	DetectMinConfidence float64
	ViolentClasses      []string

	// Completion configuration
	OpenAIModel string

	// External tools
	FFmpegPath  string
	FFprobePath string

	// Logging
	LogLevel logrus.Level

	// AMQP configuration
	AMQPUrl       string
	AMQPQueueName string
}

// LoadConfig loads the application configuration from environment variables
func LoadConfig(logger *logrus.Logger) (*Configuration, error) {
	// A missing .env file is fine; the environment may carry everything.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("Could not load .env file")
	}

	config := &Configuration{}

	// Load HTTP configuration
	config.HTTPPort = getEnvInt(logger, "HTTP_PORT", 8080)
	config.HTTPEnableMetrics = os.Getenv("HTTP_ENABLE_METRICS") != "false"

	// Load upload configuration
	config.UploadDir = os.Getenv("UPLOAD_DIR")
	if config.UploadDir == "" {
		logger.Warn("UPLOAD_DIR not set; using ./uploads")
		config.UploadDir = "./uploads"
	}

	maxUploadMB := getEnvInt(logger, "MAX_UPLOAD_MB", 512)
	config.MaxUploadBytes = int64(maxUploadMB) << 20

	extensionsEnv := os.Getenv("ALLOWED_EXTENSIONS")
	if extensionsEnv == "" {
		config.AllowedExtensions = []string{"mp4", "mp3", "wav"}
	} else {
		config.AllowedExtensions = strings.Split(extensionsEnv, ",")
	}

	// Load pipeline configuration
	config.PipelineTimeout = getEnvDuration(logger, "PIPELINE_TIMEOUT", 10*time.Minute)
	config.MergeByTimestamp = os.Getenv("PIPELINE_MERGE_BY_TIMESTAMP") == "true"
	config.PauseThreshold = getEnvFloat(logger, "PAUSE_THRESHOLD_SECONDS", analysis.DefaultPauseThreshold)
	config.MaxSentenceWords = getEnvInt(logger, "MAX_SENTENCE_WORDS", analysis.DefaultMaxSentenceWords)

	// Load vendors
	vendorsEnv := os.Getenv("SUPPORTED_VENDORS")
	if vendorsEnv == "" {
		config.SupportedVendors = []string{"deepgram", "google", "amazon-transcribe", "mock"}
	} else {
		config.SupportedVendors = strings.Split(vendorsEnv, ",")
	}

	config.DefaultVendor = os.Getenv("DEFAULT_SPEECH_VENDOR")
	if config.DefaultVendor == "" {
		logger.Warn("DEFAULT_SPEECH_VENDOR not set; using 'deepgram' as default")
		config.DefaultVendor = "deepgram"
	}

	config.AWSRegion = os.Getenv("AWS_REGION")
	if config.AWSRegion == "" {
		config.AWSRegion = "us-east-1"
	}

	config.GoogleAPIKey = os.Getenv("GOOGLE_STT_API_KEY")
	config.GoogleCredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")

	// Load classification configuration
	config.ClassifyBaseURL = os.Getenv("CLASSIFY_BASE_URL")
	if config.ClassifyBaseURL == "" {
		config.ClassifyBaseURL = "http://localhost:8001"
	}
	config.ClassifyMinConfidence = getEnvFloat(logger, "CLASSIFY_MIN_CONFIDENCE", 0)

	labelsEnv := os.Getenv("DISALLOWED_LABELS")
	if labelsEnv == "" {
		config.DisallowedLabels = analysis.DefaultDisallowedLabels()
	} else {
		config.DisallowedLabels = strings.Split(labelsEnv, ",")
	}

	// Load detection configuration
	config.DetectBaseURL = os.Getenv("DETECT_BASE_URL")
	if config.DetectBaseURL == "" {
		config.DetectBaseURL = "http://localhost:8002"
	}
	config.DetectMinConfidence = getEnvFloat(logger, "DETECT_MIN_CONFIDENCE", analysis.DetectionConfidenceStrict)

	classesEnv := os.Getenv("VIOLENT_CLASSES")
	if classesEnv == "" {
		config.ViolentClasses = analysis.DefaultViolentClasses()
	} else {
		config.ViolentClasses = strings.Split(classesEnv, ",")
	}

	// Load completion configuration
	config.OpenAIModel = os.Getenv("OPENAI_MODEL")

	// Load external tool paths
	config.FFmpegPath = os.Getenv("FFMPEG_PATH")
	config.FFprobePath = os.Getenv("FFPROBE_PATH")

	// Set the log level from the environment variable
	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', defaulting to 'info'", logLevelStr)
		config.LogLevel = logrus.InfoLevel
	} else {
		config.LogLevel = level
	}

	// Load AMQP configuration
	config.AMQPUrl = os.Getenv("AMQP_URL")
	config.AMQPQueueName = os.Getenv("AMQP_QUEUE_NAME")
	if config.AMQPUrl == "" || config.AMQPQueueName == "" {
		logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, report publishing will be disabled")
	}

	return config, nil
}

// Validate checks the loaded configuration for inconsistencies.
func (c *Configuration) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if c.PipelineTimeout <= 0 {
		return fmt.Errorf("PIPELINE_TIMEOUT must be positive")
	}
	if c.PauseThreshold <= 0 {
		return fmt.Errorf("PAUSE_THRESHOLD_SECONDS must be positive")
	}
	if c.MaxSentenceWords <= 0 {
		return fmt.Errorf("MAX_SENTENCE_WORDS must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("ALLOWED_EXTENSIONS must not be empty")
	}

	supported := false
	for _, vendor := range c.SupportedVendors {
		if strings.TrimSpace(vendor) == c.DefaultVendor {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("DEFAULT_SPEECH_VENDOR %q is not among SUPPORTED_VENDORS", c.DefaultVendor)
	}

	return nil
}

func getEnvInt(logger *logrus.Logger, key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logger.Warnf("Invalid %s '%s', defaulting to %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvFloat(logger *logrus.Logger, key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.Warnf("Invalid %s '%s', defaulting to %g", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvDuration(logger *logrus.Logger, key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logger.Warnf("Invalid %s '%s', defaulting to %s", key, value, fallback)
		return fallback
	}
	return parsed
}
