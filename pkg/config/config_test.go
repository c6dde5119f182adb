package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithEnv(t *testing.T, env map[string]string) *Configuration {
	t.Helper()
	for key, value := range env {
		t.Setenv(key, value)
	}
	config, err := LoadConfig(logrus.New())
	require.NoError(t, err)
	return config
}

func TestLoadConfigDefaults(t *testing.T) {
	config := loadWithEnv(t, nil)

	assert.Equal(t, 8080, config.HTTPPort)
	assert.Equal(t, "./uploads", config.UploadDir)
	assert.Equal(t, []string{"mp4", "mp3", "wav"}, config.AllowedExtensions)
	assert.Equal(t, 10*time.Minute, config.PipelineTimeout)
	assert.False(t, config.MergeByTimestamp)
	assert.Equal(t, 2.0, config.PauseThreshold)
	assert.Equal(t, 15, config.MaxSentenceWords)
	assert.Equal(t, "deepgram", config.DefaultVendor)
	assert.Equal(t, []string{"toxic", "hate", "violence", "threat"}, config.DisallowedLabels)
	assert.Equal(t, []string{"knife", "gun", "blood"}, config.ViolentClasses)
	assert.Equal(t, 0.0, config.ClassifyMinConfidence)
	assert.Equal(t, 0.4, config.DetectMinConfidence)
	assert.Equal(t, logrus.InfoLevel, config.LogLevel)
}

func TestLoadConfigOverrides(t *testing.T) {
	config := loadWithEnv(t, map[string]string{
		"HTTP_PORT":                   "9090",
		"PIPELINE_TIMEOUT":            "30m",
		"PIPELINE_MERGE_BY_TIMESTAMP": "true",
		"PAUSE_THRESHOLD_SECONDS":     "3.5",
		"MAX_SENTENCE_WORDS":          "20",
		"DEFAULT_SPEECH_VENDOR":       "mock",
		"DISALLOWED_LABELS":           "toxic,obscene",
		"VIOLENT_CLASSES":             "knife",
		"LOG_LEVEL":                   "debug",
	})

	assert.Equal(t, 9090, config.HTTPPort)
	assert.Equal(t, 30*time.Minute, config.PipelineTimeout)
	assert.True(t, config.MergeByTimestamp)
	assert.Equal(t, 3.5, config.PauseThreshold)
	assert.Equal(t, 20, config.MaxSentenceWords)
	assert.Equal(t, "mock", config.DefaultVendor)
	assert.Equal(t, []string{"toxic", "obscene"}, config.DisallowedLabels)
	assert.Equal(t, []string{"knife"}, config.ViolentClasses)
	assert.Equal(t, logrus.DebugLevel, config.LogLevel)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	config := loadWithEnv(t, map[string]string{
		"HTTP_PORT":        "not-a-port",
		"PIPELINE_TIMEOUT": "soon",
		"LOG_LEVEL":        "shouty",
	})

	assert.Equal(t, 8080, config.HTTPPort)
	assert.Equal(t, 10*time.Minute, config.PipelineTimeout)
	assert.Equal(t, logrus.InfoLevel, config.LogLevel)
}

func TestValidate(t *testing.T) {
	config := loadWithEnv(t, nil)
	assert.NoError(t, config.Validate())
}

func TestValidateRejectsUnknownVendor(t *testing.T) {
	config := loadWithEnv(t, map[string]string{
		"SUPPORTED_VENDORS":     "deepgram,google",
		"DEFAULT_SPEECH_VENDOR": "azure",
	})

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure")
}

func TestValidateRejectsBadPort(t *testing.T) {
	config := loadWithEnv(t, nil)
	config.HTTPPort = -1

	assert.Error(t, config.Validate())
}
