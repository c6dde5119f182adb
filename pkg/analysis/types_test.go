package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{60, "01:00"},
		{125, "02:05"},
		{59.9, "00:59"}, // floor, not round
		{3725, "62:05"}, // no hour component, minutes roll past 59
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatTimestamp(tt.seconds), "FormatTimestamp(%v)", tt.seconds)
	}
}

func TestIssueString(t *testing.T) {
	assert.Equal(t, "Long pause detected at 00:04", NewIssue(IssueLongPause, 4).String())
	assert.Equal(t, "Hate speech detected at 01:10", NewIssue(IssueDisallowedContent, 70).String())
	assert.Equal(t, "Violent imagery detected at 00:03", NewIssue(IssueViolentImagery, 3).String())
}
