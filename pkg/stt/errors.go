package stt

import "errors"

// Common speech-to-text errors
var (
	// ErrNoProviderAvailable indicates no transcription provider is registered
	ErrNoProviderAvailable = errors.New("no transcription provider available")

	// ErrProviderNotFound indicates the requested provider is not registered
	ErrProviderNotFound = errors.New("transcription provider not found")

	// ErrInitializationFailed indicates provider initialization failed
	ErrInitializationFailed = errors.New("provider initialization failed")

	// ErrMissingAPIKey indicates the provider credentials are not configured
	ErrMissingAPIKey = errors.New("provider API key not configured")
)
