package chat

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortMessagePassesThrough(t *testing.T) {
	chunks := Split("hello", 2000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0])
}

func TestSplitPrefersLineBoundaries(t *testing.T) {
	msg := strings.Repeat("line one\n", 5)
	chunks := Split(msg, 20)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 20)
	}
	// Every chunk except possibly the last ends on a line boundary.
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, "\n"), "chunk %q should end at a newline", c)
	}
	assert.Equal(t, msg, strings.Join(chunks, ""))
}

func TestSplitFallsBackToWordBoundaries(t *testing.T) {
	msg := strings.Repeat("word ", 20)
	chunks := Split(msg, 12)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 12)
	}
	assert.Equal(t, msg, strings.Join(chunks, ""))
}

func TestSplitHardCutsUnbrokenRuns(t *testing.T) {
	msg := strings.Repeat("x", 45)
	chunks := Split(msg, 10)
	require.Len(t, chunks, 5)
	assert.Equal(t, msg, strings.Join(chunks, ""))
}

// Reassembly in order always reproduces the original, and no chunk exceeds
// the limit, for a spread of messages and limits.
func TestSplitRoundTripProperty(t *testing.T) {
	messages := []string{
		"",
		"short",
		strings.Repeat("the quick brown fox jumps over the lazy dog\n", 100),
		strings.Repeat("word ", 500),
		strings.Repeat("長い日本語のメッセージ ", 200),
		strings.Repeat("z", 10000),
	}
	limits := []int{1, 7, 80, 2000}

	for _, msg := range messages {
		for _, limit := range limits {
			chunks := Split(msg, limit)
			assert.Equal(t, msg, strings.Join(chunks, ""), "limit %d", limit)
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), limit, "limit %d", limit)
			}
		}
	}
}
