package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/classify"
	"mediamod-server/pkg/config"
	"mediamod-server/pkg/detect"
	http_server "mediamod-server/pkg/http"
	"mediamod-server/pkg/llm"
	"mediamod-server/pkg/media"
	"mediamod-server/pkg/messaging"
	"mediamod-server/pkg/metrics"
	"mediamod-server/pkg/stt"
	"mediamod-server/pkg/util"
)

var (
	logger     = logrus.New()
	appConfig  *config.Configuration
	sttManager *stt.ProviderManager
	amqpClient *messaging.AMQPClient
	pipeline   *analysis.Pipeline
	wsHub      *http_server.AnalysisHub
	httpServer *http_server.Server

	// Context for graceful shutdown
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func main() {
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	rootCtx, rootCancel = context.WithCancel(context.Background())
	defer rootCancel()

	if err := initialize(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	httpServer.Start()
	logger.Info("HTTP server started")

	// Graceful shutdown handling
	shutdown := util.NewGracefulShutdown(logger, 15*time.Second)
	shutdown.Register(util.ShutdownResource{
		Name:     "http",
		Priority: 10,
		Shutdown: httpServer.Shutdown,
	})
	if amqpClient != nil {
		shutdown.Register(util.ShutdownResource{
			Name:     "amqp",
			Priority: 20,
			Shutdown: func(ctx context.Context) error {
				amqpClient.Disconnect()
				return nil
			},
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received shutdown signal, cleaning up...")

	// Stop the hub and any in-flight pipeline work
	rootCancel()

	if err := shutdown.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("Graceful shutdown finished with errors")
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}

func initialize() error {
	var err error
	appConfig, err = config.LoadConfig(logger)
	if err != nil {
		return err
	}
	if err := appConfig.Validate(); err != nil {
		return err
	}
	logger.SetLevel(appConfig.LogLevel)

	metrics.StartMetrics(logger, appConfig.HTTPEnableMetrics)

	initializeTranscription()

	classifier := classify.NewClient(logger, classify.Config{
		BaseURL: appConfig.ClassifyBaseURL,
		Timeout: 30 * time.Second,
	})

	detector := detect.NewClient(logger, detect.Config{
		BaseURL:       appConfig.DetectBaseURL,
		Timeout:       30 * time.Second,
		MinConfidence: appConfig.DetectMinConfidence,
	})
	classCtx, classCancel := context.WithTimeout(rootCtx, 10*time.Second)
	if err := detector.LoadClasses(classCtx); err != nil {
		logger.WithError(err).Warn("Could not load detection class table, relying on names in detections")
	}
	classCancel()

	completer := llm.NewOpenAIClient(logger, appConfig.OpenAIModel)
	if err := completer.Initialize(); err != nil {
		logger.WithError(err).Warn("OpenAI client not configured, summaries will fail until it is")
	}

	extractor := media.NewExtractor(logger, appConfig.FFmpegPath)
	opener := media.NewFFmpegOpener(logger, appConfig.FFmpegPath, appConfig.FFprobePath)

	audioConfig := analysis.AudioConfig{
		PauseThreshold:   appConfig.PauseThreshold,
		MaxSentenceWords: appConfig.MaxSentenceWords,
		DisallowedLabels: appConfig.DisallowedLabels,
		MinConfidence:    appConfig.ClassifyMinConfidence,
	}
	videoConfig := analysis.VideoConfig{
		FallbackFPS:    analysis.DefaultFallbackFPS,
		ViolentClasses: appConfig.ViolentClasses,
	}

	pipeline = analysis.NewPipeline(
		logger,
		sttManager,
		analysis.NewAudioAnalyzer(logger, classifier, audioConfig),
		analysis.NewVideoAnalyzer(logger, opener, detector, videoConfig),
		analysis.NewSummaryGenerator(logger, completer),
		extractor,
		analysis.Config{
			Audio:            audioConfig,
			Video:            videoConfig,
			MergeByTimestamp: appConfig.MergeByTimestamp,
			Timeout:          appConfig.PipelineTimeout,
		},
	)

	wsHub = http_server.NewAnalysisHub(logger)
	go wsHub.Run(rootCtx)
	pipeline.SetEventSink(wsHub)

	httpConfig := http_server.DefaultConfig()
	httpConfig.Port = appConfig.HTTPPort
	httpConfig.EnableMetrics = appConfig.HTTPEnableMetrics
	httpConfig.UploadDir = appConfig.UploadDir
	httpConfig.MaxUploadBytes = appConfig.MaxUploadBytes
	httpConfig.AllowedExtensions = appConfig.AllowedExtensions

	httpServer = http_server.NewServer(logger, httpConfig)
	httpServer.SetWebSocketHub(wsHub)
	httpServer.SetUploadHandler(http_server.NewUploadHandler(logger, pipeline, httpConfig))

	if appConfig.AMQPUrl != "" && appConfig.AMQPQueueName != "" {
		amqpClient = messaging.NewAMQPClient(logger, messaging.AMQPConfig{
			URL:       appConfig.AMQPUrl,
			QueueName: appConfig.AMQPQueueName,
		})
		if err := amqpClient.Connect(); err != nil {
			logger.WithError(err).Warn("Could not connect to AMQP, reports will not be published")
		}
		pipeline.SetReportSink(amqpClient)
		httpServer.SetAMQPClient(amqpClient)
	}

	return nil
}

// initializeTranscription registers every configured speech-to-text vendor.
// A vendor whose credentials are missing is skipped rather than fatal; the
// mock provider backstops local development.
func initializeTranscription() {
	sttManager = stt.NewProviderManager(logger, appConfig.DefaultVendor)

	for _, vendor := range appConfig.SupportedVendors {
		var provider stt.Provider
		switch vendor {
		case "deepgram":
			provider = stt.NewDeepgramProvider(logger)
		case "google":
			googleConfig := stt.DefaultGoogleConfig()
			googleConfig.APIKey = appConfig.GoogleAPIKey
			googleConfig.CredentialsFile = appConfig.GoogleCredentialsFile
			provider = stt.NewGoogleProvider(logger, googleConfig)
		case "amazon-transcribe":
			amazonConfig := stt.DefaultAmazonConfig()
			amazonConfig.Region = appConfig.AWSRegion
			provider = stt.NewAmazonTranscribeProvider(logger, amazonConfig)
		case "mock":
			provider = stt.NewMockProvider(logger)
		default:
			logger.WithField("vendor", vendor).Warn("Unknown speech-to-text vendor, skipping")
			continue
		}

		if err := sttManager.RegisterProvider(provider); err != nil {
			logger.WithFields(logrus.Fields{
				"vendor": vendor,
				"error":  err,
			}).Warn("Speech-to-text vendor not available")
		}
	}

	if _, ok := sttManager.GetDefaultProvider(); !ok {
		logger.WithField("vendor", appConfig.DefaultVendor).
			Warn("Default speech-to-text vendor unavailable, falling back to mock")
		if err := sttManager.RegisterProvider(stt.NewMockProvider(logger)); err == nil {
			sttManager.SetDefaultProvider("mock")
		}
	}
}
