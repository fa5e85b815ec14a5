package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeKeepsHighSignalSentencesInOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Vacation policy grants vacation days. The kitchen has a kettle. " +
		"Vacation days accrue monthly. Vacation requests need manager approval."

	out := s.Summarize(text, 2)
	assert.Equal(t, 2, strings.Count(out, "."))
	assert.Contains(t, strings.ToLower(out), "vacation")
	assert.NotContains(t, out, "kettle", "low-signal sentences are dropped")
}

func TestSummarizeShortTextReturnedWhole(t *testing.T) {
	s := NewFrequencySummarizer()
	assert.Equal(t, "no sentence breaks here", s.Summarize("no sentence breaks here", 3))
}
