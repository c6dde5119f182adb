package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordsFromTexts(texts ...string) []Word {
	words := make([]Word, len(texts))
	for i, text := range texts {
		words[i] = Word{Text: text, Start: float64(i), End: float64(i) + 0.5}
	}
	return words
}

func TestGroupSentencesPunctuation(t *testing.T) {
	words := wordsFromTexts("Hello", "there.", "How", "are", "you?")

	sentences := GroupSentences(words, DefaultMaxSentenceWords)

	require.Len(t, sentences, 2)
	assert.Equal(t, "Hello there.", sentences[0].Text)
	assert.Equal(t, 0.0, sentences[0].Start)
	assert.Equal(t, "How are you?", sentences[1].Text)
	assert.Equal(t, 2.0, sentences[1].Start)
}

func TestGroupSentencesWordCap(t *testing.T) {
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("w%d", i)
	}

	sentences := GroupSentences(wordsFromTexts(texts...), 15)

	require.Len(t, sentences, 2)
	assert.Len(t, strings.Fields(sentences[0].Text), 15)
	assert.Len(t, strings.Fields(sentences[1].Text), 5)
	assert.Equal(t, 15.0, sentences[1].Start, "second span starts at its first word's start time")
}

func TestGroupSentencesTrailingPartialRun(t *testing.T) {
	words := wordsFromTexts("this", "never", "terminates")

	sentences := GroupSentences(words, DefaultMaxSentenceWords)

	require.Len(t, sentences, 1)
	assert.Equal(t, "this never terminates", sentences[0].Text)
}

func TestGroupSentencesEmptyInput(t *testing.T) {
	assert.Empty(t, GroupSentences(nil, DefaultMaxSentenceWords))
}

// Concatenating all emitted sentence texts reproduces the original word
// sequence exactly: the grouper never drops a word.
func TestGroupSentencesLossless(t *testing.T) {
	words := wordsFromTexts(
		"one", "two.", "three", "four", "five!", "six",
		"seven", "eight", "nine?", "ten",
	)

	sentences := GroupSentences(words, 3)

	var rejoined []string
	for _, s := range sentences {
		rejoined = append(rejoined, strings.Split(s.Text, " ")...)
	}

	require.Len(t, rejoined, len(words))
	for i, word := range words {
		assert.Equal(t, word.Text, rejoined[i])
	}
}

func TestGroupSentencesNeverExceedsCap(t *testing.T) {
	texts := make([]string, 100)
	for i := range texts {
		if i%7 == 3 {
			texts[i] = "end."
		} else {
			texts[i] = "word"
		}
	}

	for _, s := range GroupSentences(wordsFromTexts(texts...), 15) {
		assert.LessOrEqual(t, len(strings.Fields(s.Text)), 15)
	}
}
