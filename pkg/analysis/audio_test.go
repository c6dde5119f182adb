package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "mediamod-server/pkg/errors"
)

// MockClassifier implements Classifier for testing
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Classification), args.Error(1)
}

func newAudioAnalyzer(classifier Classifier) *AudioAnalyzer {
	return NewAudioAnalyzer(logrus.New(), classifier, DefaultAudioConfig())
}

func TestDetectPausesGapAboveThreshold(t *testing.T) {
	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything).Return(&Classification{Label: "neutral", Confidence: 0.9}, nil)

	words := []Word{
		{Text: "one", Start: 0, End: 1},
		{Text: "two", Start: 4, End: 5}, // 3s gap > 2.0s threshold
	}

	issues, err := newAudioAnalyzer(classifier).Analyze(context.Background(), words)

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueLongPause, issues[0].Kind)
	assert.Equal(t, "00:04", issues[0].Timestamp, "pause is timestamped at the late word's start")
}

func TestDetectPausesGapBelowThreshold(t *testing.T) {
	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything).Return(&Classification{Label: "neutral", Confidence: 0.9}, nil)

	words := []Word{
		{Text: "one", Start: 0, End: 1},
		{Text: "two", Start: 2, End: 3}, // 1s gap
	}

	issues, err := newAudioAnalyzer(classifier).Analyze(context.Background(), words)

	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestDetectDisallowedContent(t *testing.T) {
	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, "you are awful.").Return(&Classification{Label: "TOXIC", Confidence: 0.97}, nil)
	classifier.On("Classify", mock.Anything, "have a nice day.").Return(&Classification{Label: "neutral", Confidence: 0.99}, nil)

	words := []Word{
		{Text: "you", Start: 0, End: 0.3},
		{Text: "are", Start: 0.3, End: 0.6},
		{Text: "awful.", Start: 0.6, End: 1},
		{Text: "have", Start: 1, End: 1.2},
		{Text: "a", Start: 1.2, End: 1.4},
		{Text: "nice", Start: 1.4, End: 1.6},
		{Text: "day.", Start: 1.6, End: 2},
	}

	issues, err := newAudioAnalyzer(classifier).Analyze(context.Background(), words)

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueDisallowedContent, issues[0].Kind)
	assert.Equal(t, "00:00", issues[0].Timestamp, "issue is timestamped at the sentence start")
	classifier.AssertExpectations(t)
}

func TestDisallowedLabelMatchIsCaseInsensitive(t *testing.T) {
	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything).Return(&Classification{Label: "Hate", Confidence: 0.5}, nil)

	issues, err := newAudioAnalyzer(classifier).Analyze(context.Background(), wordsFromTexts("bad", "sentence."))

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueDisallowedContent, issues[0].Kind)
}

func TestConfidenceMustExceedMinimum(t *testing.T) {
	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything).Return(&Classification{Label: "toxic", Confidence: 0.4}, nil)

	config := DefaultAudioConfig()
	config.MinConfidence = 0.5
	analyzer := NewAudioAnalyzer(logrus.New(), classifier, config)

	issues, err := analyzer.Analyze(context.Background(), wordsFromTexts("bad", "sentence."))

	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestZeroConfidenceMatchDoesNotFlag(t *testing.T) {
	// Default minimum is 0 and the check is strict, so a 0-confidence match
	// does not count while any positive confidence does.
	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything).Return(&Classification{Label: "toxic", Confidence: 0}, nil)

	issues, err := newAudioAnalyzer(classifier).Analyze(context.Background(), wordsFromTexts("bad", "sentence."))

	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestPauseIssuesPrecedeContentIssues(t *testing.T) {
	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything).Return(&Classification{Label: "toxic", Confidence: 0.9}, nil)

	// Toxic sentence at 0s, pause at 10s: emission order keeps the pause
	// first even though the content issue has the earlier timestamp.
	words := []Word{
		{Text: "awful", Start: 0, End: 1},
		{Text: "stuff.", Start: 1, End: 2},
		{Text: "later", Start: 10, End: 11},
	}

	issues, err := newAudioAnalyzer(classifier).Analyze(context.Background(), words)

	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, IssueLongPause, issues[0].Kind)
	assert.Equal(t, IssueDisallowedContent, issues[1].Kind)
	assert.Equal(t, IssueDisallowedContent, issues[2].Kind)
}

func TestClassifierFailureAbortsDetector(t *testing.T) {
	classifier := new(MockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything).Return(nil, errors.New("model server down"))

	issues, err := newAudioAnalyzer(classifier).Analyze(context.Background(), wordsFromTexts("some", "words."))

	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrClassificationFailed))
	assert.Nil(t, issues, "no partial results are salvaged")
}
