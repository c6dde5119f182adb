package analysis

import "fmt"

// Default thresholds for the analysis pipeline. The two detection floors both
// appeared in production configs; the strict one is the default and either can
// be selected through configuration.
const (
	DefaultPauseThreshold      = 2.0
	DefaultMaxSentenceWords    = 15
	DetectionConfidenceLenient = 0.1
	DetectionConfidenceStrict  = 0.4
	DefaultFallbackFPS         = 30
)

// DefaultDisallowedLabels are the classification labels that flag a sentence.
func DefaultDisallowedLabels() []string {
	return []string{"toxic", "hate", "violence", "threat"}
}

// DefaultViolentClasses are the detected object classes that flag a frame.
func DefaultViolentClasses() []string {
	return []string{"knife", "gun", "blood"}
}

// Word is a single transcribed token with start/end timestamps in seconds.
// Word sequences are time-ordered and non-overlapping.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the output of a transcription capability: the ordered word
// sequence plus the flattened transcript text.
type Transcript struct {
	Words []Word `json:"words"`
	Text  string `json:"text"`
}

// Sentence is a grouped run of words bounded by terminal punctuation or the
// word cap. Start equals the start time of the first constituent word.
type Sentence struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
}

// Classification is a single-label result from the text-classification capability.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detection is one detected object in a frame.
type Detection struct {
	ClassName string `json:"class_name"`
}

// IssueKind identifies the type of a flagged moment.
type IssueKind int

const (
	IssueLongPause IssueKind = iota
	IssueDisallowedContent
	IssueViolentImagery
)

// Label returns the snake_case identifier used in metrics and logs.
func (k IssueKind) Label() string {
	switch k {
	case IssueLongPause:
		return "long_pause"
	case IssueDisallowedContent:
		return "disallowed_content"
	case IssueViolentImagery:
		return "violent_imagery"
	default:
		return "unknown"
	}
}

// Description returns the human-readable description used in the issue list.
func (k IssueKind) Description() string {
	switch k {
	case IssueLongPause:
		return "Long pause"
	case IssueDisallowedContent:
		return "Hate speech"
	case IssueViolentImagery:
		return "Violent imagery"
	default:
		return "Unknown issue"
	}
}

// Issue is a flagged moment in the media. Seconds keeps the raw timestamp so
// the aggregator can optionally merge streams by time; Timestamp is the
// formatted MM:SS form. Issues are never mutated after creation.
type Issue struct {
	Kind      IssueKind `json:"kind"`
	Timestamp string    `json:"timestamp"`
	Seconds   float64   `json:"-"`
}

// NewIssue creates an issue of the given kind at the given offset.
func NewIssue(kind IssueKind, seconds float64) Issue {
	return Issue{
		Kind:      kind,
		Timestamp: FormatTimestamp(seconds),
		Seconds:   seconds,
	}
}

// String renders the issue in the report format.
func (i Issue) String() string {
	return fmt.Sprintf("%s detected at %s", i.Kind.Description(), i.Timestamp)
}

// Report is the terminal artifact returned to the caller.
type Report struct {
	ID        string   `json:"id,omitempty"`
	Issues    []string `json:"issues"`
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"`
}

// FormatTimestamp renders an offset in seconds as zero-padded MM:SS. The
// format is floor-based and has no hour component, so offsets of an hour or
// more roll the minute field past 59.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
