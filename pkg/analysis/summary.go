package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/errors"
)

const (
	summaryPrompt = `Summarize the following text: "%s"`

	sentimentPrompt = `Analyze the overall sentiment of the following text in one word only. ` +
		`Do not provide any explanation. Respond with a single word like happy, sad, angry, excited, neutral, etc. ` +
		`The text is: "%s"`
)

// NeutralSentiment is reported for media with an empty transcript, where no
// completion call is made.
const NeutralSentiment = "neutral"

// SummaryGenerator produces the prose summary and the single-word sentiment
// label for a transcript by delegating to a language-model completion
// capability.
type SummaryGenerator struct {
	completer Completer
	logger    *logrus.Logger
}

// NewSummaryGenerator creates a new SummaryGenerator.
func NewSummaryGenerator(logger *logrus.Logger, completer Completer) *SummaryGenerator {
	return &SummaryGenerator{
		completer: completer,
		logger:    logger,
	}
}

// Summarize returns the capability's summary of the transcript verbatim.
func (g *SummaryGenerator) Summarize(ctx context.Context, transcript string) (string, error) {
	response, err := g.completer.Complete(ctx, fmt.Sprintf(summaryPrompt, transcript))
	if err != nil {
		return "", errors.Wrap(errors.ErrCompletionFailed, err.Error())
	}
	return response, nil
}

// Sentiment returns a single lowercase sentiment word for the transcript.
// The capability is instructed to answer with exactly one word but is not
// trusted to obey: only the first whitespace-delimited token of the response
// is kept, lower-cased.
func (g *SummaryGenerator) Sentiment(ctx context.Context, transcript string) (string, error) {
	response, err := g.completer.Complete(ctx, fmt.Sprintf(sentimentPrompt, transcript))
	if err != nil {
		return "", errors.Wrap(errors.ErrCompletionFailed, err.Error())
	}

	fields := strings.Fields(response)
	if len(fields) == 0 {
		g.logger.Warn("Sentiment capability returned an empty response")
		return NeutralSentiment, nil
	}
	if len(fields) > 1 {
		g.logger.WithField("response", response).Debug("Sentiment capability returned more than one word, keeping the first")
	}

	return strings.ToLower(fields[0]), nil
}
