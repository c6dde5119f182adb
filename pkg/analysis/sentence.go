package analysis

import "strings"

// GroupSentences merges a timestamped word sequence into sentence-level spans.
// A span closes when a word ends with terminal punctuation or the span reaches
// maxWords, whichever comes first; a trailing partial span is still emitted.
// The function is pure: concatenating the emitted texts reproduces the input
// word sequence exactly.
func GroupSentences(words []Word, maxWords int) []Sentence {
	if maxWords <= 0 {
		maxWords = DefaultMaxSentenceWords
	}

	var sentences []Sentence
	var current []string
	var start float64

	for _, word := range words {
		if len(current) == 0 {
			start = word.Start
		}
		current = append(current, word.Text)

		if endsSentence(word.Text) || len(current) >= maxWords {
			sentences = append(sentences, Sentence{
				Text:  strings.Join(current, " "),
				Start: start,
			})
			current = current[:0]
		}
	}

	if len(current) > 0 {
		sentences = append(sentences, Sentence{
			Text:  strings.Join(current, " "),
			Start: start,
		})
	}

	return sentences
}

func endsSentence(text string) bool {
	return strings.HasSuffix(text, ".") ||
		strings.HasSuffix(text, "!") ||
		strings.HasSuffix(text, "?")
}
