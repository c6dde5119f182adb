package http

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"mediamod-server/pkg/version"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks"`
	System    SystemInfo             `json:"system"`
}

// CheckResult represents an individual health check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemInfo contains system resource information
type SystemInfo struct {
	GoRoutines int    `json:"goroutines"`
	MemoryMB   uint64 `json:"memory_mb"`
	CPUCount   int    `json:"cpu_count"`
}

// HealthHandler handles health check requests
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Version:   version.Version,
		Checks:    make(map[string]CheckResult),
	}

	// Check the upload pipeline
	if s.uploadHandler != nil {
		health.Checks["pipeline"] = CheckResult{
			Status:  "healthy",
			Message: "Analysis pipeline is wired",
		}
	} else {
		health.Checks["pipeline"] = CheckResult{
			Status:  "unhealthy",
			Message: "Upload handler not initialized",
		}
		health.Status = "unhealthy"
	}

	// Check WebSocket service
	if s.wsHub != nil && s.wsHub.IsRunning() {
		health.Checks["websocket"] = CheckResult{
			Status:  "healthy",
			Message: "WebSocket hub is running",
		}
	} else {
		health.Checks["websocket"] = CheckResult{
			Status:  "degraded",
			Message: "WebSocket hub not running",
		}
	}

	// Check AMQP if configured
	if s.amqpClient != nil {
		if s.amqpClient.IsConnected() {
			health.Checks["amqp"] = CheckResult{
				Status:  "healthy",
				Message: "AMQP connection established",
			}
		} else {
			health.Checks["amqp"] = CheckResult{
				Status:  "degraded",
				Message: "AMQP connection lost",
			}
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
	}

	// System information
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	health.System = SystemInfo{
		GoRoutines: runtime.NumGoroutine(),
		MemoryMB:   memStats.Alloc >> 20,
		CPUCount:   runtime.NumCPU(),
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// LivenessHandler reports whether the process is alive
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

// ReadinessHandler reports whether the service can accept uploads
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ready := s.uploadHandler != nil

	status := map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(status)
}

// statusHandler handles the /status endpoint
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).String(),
		"version":    version.Version,
		"started_at": s.startTime.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}
