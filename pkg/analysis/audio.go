package analysis

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/errors"
)

// AudioConfig holds configuration for the audio issue detector.
type AudioConfig struct {
	// PauseThreshold is the minimum silent gap, in seconds, between the end of
	// one word and the start of the next that counts as a long pause.
	PauseThreshold float64

	// MaxSentenceWords caps sentence spans sent for classification.
	MaxSentenceWords int

	// DisallowedLabels are the classification labels that flag a sentence.
	// Matching is case-insensitive.
	DisallowedLabels []string

	// MinConfidence is the minimum classification confidence that flags a
	// sentence. A match must score strictly above this value; the default of
	// zero accepts any positive match.
	MinConfidence float64
}

// DefaultAudioConfig returns default configuration.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		PauseThreshold:   DefaultPauseThreshold,
		MaxSentenceWords: DefaultMaxSentenceWords,
		DisallowedLabels: DefaultDisallowedLabels(),
		MinConfidence:    0,
	}
}

// AudioAnalyzer scans a word sequence for long pauses and for sentences the
// classification capability labels as disallowed content.
type AudioAnalyzer struct {
	classifier Classifier
	config     AudioConfig
	logger     *logrus.Logger

	disallowed map[string]struct{}
}

// NewAudioAnalyzer creates a new AudioAnalyzer.
func NewAudioAnalyzer(logger *logrus.Logger, classifier Classifier, config AudioConfig) *AudioAnalyzer {
	if config.PauseThreshold <= 0 {
		config.PauseThreshold = DefaultPauseThreshold
	}
	if config.MaxSentenceWords <= 0 {
		config.MaxSentenceWords = DefaultMaxSentenceWords
	}
	if len(config.DisallowedLabels) == 0 {
		config.DisallowedLabels = DefaultDisallowedLabels()
	}

	disallowed := make(map[string]struct{}, len(config.DisallowedLabels))
	for _, label := range config.DisallowedLabels {
		disallowed[strings.ToLower(label)] = struct{}{}
	}

	return &AudioAnalyzer{
		classifier: classifier,
		config:     config,
		logger:     logger,
		disallowed: disallowed,
	}
}

// Analyze returns the ordered issue list for a word sequence: long-pause
// issues first (in word order), then disallowed-content issues (in sentence
// order). The merged list is intentionally not re-sorted by timestamp.
// Any classification failure aborts the whole detector; no partial results
// are salvaged.
func (a *AudioAnalyzer) Analyze(ctx context.Context, words []Word) ([]Issue, error) {
	issues := a.detectPauses(words)

	contentIssues, err := a.detectDisallowedContent(ctx, words)
	if err != nil {
		return nil, err
	}

	return append(issues, contentIssues...), nil
}

// detectPauses walks the full word sequence once, independent of sentence
// grouping, and flags every gap longer than the pause threshold.
func (a *AudioAnalyzer) detectPauses(words []Word) []Issue {
	issues := make([]Issue, 0)
	lastWordEnd := 0.0

	for _, word := range words {
		if word.Start-lastWordEnd > a.config.PauseThreshold {
			issues = append(issues, NewIssue(IssueLongPause, word.Start))
		}
		lastWordEnd = word.End
	}

	return issues
}

func (a *AudioAnalyzer) detectDisallowedContent(ctx context.Context, words []Word) ([]Issue, error) {
	issues := make([]Issue, 0)

	for _, sentence := range GroupSentences(words, a.config.MaxSentenceWords) {
		result, err := a.classifier.Classify(ctx, sentence.Text)
		if err != nil {
			return nil, errors.Wrap(errors.ErrClassificationFailed, err.Error())
		}

		a.logger.WithFields(logrus.Fields{
			"label":      result.Label,
			"confidence": result.Confidence,
			"start":      sentence.Start,
		}).Debug("Sentence classified")

		if _, flagged := a.disallowed[strings.ToLower(result.Label)]; flagged && result.Confidence > a.config.MinConfidence {
			issues = append(issues, NewIssue(IssueDisallowedContent, sentence.Start))
		}
	}

	return issues, nil
}
