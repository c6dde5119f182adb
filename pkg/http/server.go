package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/errors"
	"mediamod-server/pkg/metrics"
	"mediamod-server/pkg/version"
)

// ConnectionChecker reports whether a downstream connection is alive.
// The AMQP client satisfies it.
type ConnectionChecker interface {
	IsConnected() bool
}

// Server represents the HTTP server for uploads, health checks and metrics
type Server struct {
	config             *Config
	logger             *logrus.Logger
	httpServer         *http.Server
	mux                *http.ServeMux
	startTime          time.Time
	additionalHandlers map[string]http.HandlerFunc
	wsHub              *AnalysisHub
	uploadHandler      *UploadHandler
	amqpClient         ConnectionChecker
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	server := &Server{
		config:             config,
		logger:             logger,
		startTime:          time.Now(),
		additionalHandlers: make(map[string]http.HandlerFunc),
	}

	mux := http.NewServeMux()
	server.mux = mux

	rootHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler := http.Handler(mux)
		if config.EnableCORS {
			handler = corsMiddleware(handler)
		}
		handler.ServeHTTP(w, r)
	})

	// Wrap handlers with middleware that adds Server header
	addServerHeader := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", version.ServerHeader())
			next(w, r)
		}
	}

	// Register standard endpoints
	mux.HandleFunc("/health", addServerHeader(server.HealthHandler))
	mux.HandleFunc("/health/live", addServerHeader(server.LivenessHandler))
	mux.HandleFunc("/health/ready", addServerHeader(server.ReadinessHandler))
	mux.HandleFunc("/status", addServerHeader(server.statusHandler))

	// Add metrics endpoint based on configuration
	if config.EnableMetrics {
		if registry := metrics.GetRegistry(); registry != nil {
			promHandler := promhttp.HandlerFor(
				registry,
				promhttp.HandlerOpts{
					EnableOpenMetrics: true,
					Registry:          registry,
				},
			)
			mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Server", version.ServerHeader())
				promHandler.ServeHTTP(w, r)
			})
			logger.Info("Prometheus metrics endpoint enabled at /metrics")
		}
	} else {
		logger.Info("Metrics endpoint disabled")
	}

	// Create the HTTP server
	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      rootHandler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return server
}

// corsMiddleware allows browser clients on other origins to upload media and
// poll results.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RegisterHandler adds a custom handler to the server
func (s *Server) RegisterHandler(path string, handler http.HandlerFunc) {
	s.additionalHandlers[path] = handler

	if s.mux != nil {
		s.mux.HandleFunc(path, handler)
	}

	s.logger.WithField("path", path).Info("Registered custom HTTP handler")
}

// SetWebSocketHub sets the WebSocket hub and registers its endpoint
func (s *Server) SetWebSocketHub(hub *AnalysisHub) {
	s.wsHub = hub

	if s.mux != nil {
		s.mux.HandleFunc("/ws/progress", hub.ServeWs)
		s.logger.Info("Progress WebSocket endpoint registered at /ws/progress")
	}
}

// SetUploadHandler sets the upload handler and registers its endpoint
func (s *Server) SetUploadHandler(handler *UploadHandler) {
	s.uploadHandler = handler

	if s.mux != nil {
		s.mux.HandleFunc("/api/v1/analyze", handler.ServeHTTP)
		// Legacy route kept for existing clients.
		s.mux.HandleFunc("/upload", handler.ServeHTTP)
		s.logger.Info("Upload endpoint registered at /api/v1/analyze")
	}
}

// SetAMQPClient sets the AMQP client reference for health checks
func (s *Server) SetAMQPClient(client ConnectionChecker) {
	s.amqpClient = client
}

// Start starts the HTTP server in a goroutine
func (s *Server) Start() {
	s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")

	go func() {
		s.logger.Infof("HTTP server listening on port %d", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server failed")
		}
	}()

	// Verify that we can actually bind to the port
	go func() {
		time.Sleep(500 * time.Millisecond)

		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", s.config.Port), 2*time.Second)
		if err != nil {
			s.logger.WithError(err).Error("Could not connect to HTTP server")
		} else {
			s.logger.Info("HTTP server is running correctly")
			conn.Close()
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

// ErrorResponse sends a standardized error response
func (s *Server) ErrorResponse(w http.ResponseWriter, err error) {
	errors.WriteError(w, err)
	s.logger.WithError(err).Warn("HTTP error response sent")
}
