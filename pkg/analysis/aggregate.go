package analysis

import "sort"

// AggregateIssues merges the audio-issue and video-issue lists into a single
// ordered list of human-readable strings. By default audio issues come first
// (in detection order) followed by video issues (in detection order) without
// any re-sorting by time; downstream consumers depend on that grouping. With
// mergeByTimestamp set, the combined list is instead ordered by offset, with
// the stable sort keeping audio before video at equal timestamps.
func AggregateIssues(audioIssues, videoIssues []Issue, mergeByTimestamp bool) []string {
	combined := make([]Issue, 0, len(audioIssues)+len(videoIssues))
	combined = append(combined, audioIssues...)
	combined = append(combined, videoIssues...)

	if mergeByTimestamp {
		sort.SliceStable(combined, func(i, j int) bool {
			return combined[i].Seconds < combined[j].Seconds
		})
	}

	list := make([]string, len(combined))
	for i, issue := range combined {
		list[i] = issue.String()
	}

	return list
}
