package http

import "time"

// Config holds HTTP server configuration
type Config struct {
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableMetrics bool
	EnableCORS    bool

	// Upload handling
	UploadDir         string
	MaxUploadBytes    int64
	AllowedExtensions []string
}

// DefaultConfig returns the default HTTP server configuration. The write
// timeout is generous because analysis runs synchronously inside the upload
// request.
func DefaultConfig() *Config {
	return &Config{
		Port:              8080,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      15 * time.Minute,
		EnableMetrics:     true,
		EnableCORS:        true,
		UploadDir:         "./uploads",
		MaxUploadBytes:    512 << 20,
		AllowedExtensions: []string{"mp4", "mp3", "wav"},
	}
}
