package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateIssuesAudioFirst(t *testing.T) {
	audio := []Issue{
		NewIssue(IssueLongPause, 50),
		NewIssue(IssueDisallowedContent, 10),
	}
	video := []Issue{
		NewIssue(IssueViolentImagery, 3),
	}

	list := AggregateIssues(audio, video, false)

	assert.Equal(t, []string{
		"Long pause detected at 00:50",
		"Hate speech detected at 00:10",
		"Violent imagery detected at 00:03",
	}, list, "audio issues precede video issues, never interleaved by timestamp")
}

func TestAggregateIssuesMergeByTimestamp(t *testing.T) {
	audio := []Issue{
		NewIssue(IssueLongPause, 50),
		NewIssue(IssueDisallowedContent, 10),
	}
	video := []Issue{
		NewIssue(IssueViolentImagery, 3),
		NewIssue(IssueViolentImagery, 10),
	}

	list := AggregateIssues(audio, video, true)

	assert.Equal(t, []string{
		"Violent imagery detected at 00:03",
		"Hate speech detected at 00:10",
		"Violent imagery detected at 00:10", // stable: audio wins the tie
		"Long pause detected at 00:50",
	}, list)
}

func TestAggregateIssuesEmpty(t *testing.T) {
	list := AggregateIssues(nil, nil, false)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
