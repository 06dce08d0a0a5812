package chat

import "unicode/utf8"

// Split breaks a message into chunks of at most limit runes, preferring line
// boundaries, then word boundaries, then a hard cut. Separators stay inside
// the chunks, so concatenating the chunks in order reproduces the message
// exactly.
func Split(message string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(message) <= limit {
		if message == "" {
			return nil
		}
		return []string{message}
	}

	var chunks []string
	rest := []rune(message)
	for len(rest) > limit {
		cut := splitPoint(rest, limit)
		chunks = append(chunks, string(rest[:cut]))
		rest = rest[cut:]
	}
	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}
	return chunks
}

// splitPoint picks the cut index for the next chunk: the last newline within
// the window, else the last space, else the window itself.
func splitPoint(rest []rune, limit int) int {
	lastNewline, lastSpace := -1, -1
	for i := 0; i < limit; i++ {
		switch rest[i] {
		case '\n':
			lastNewline = i
		case ' ':
			lastSpace = i
		}
	}
	if lastNewline >= 0 {
		return lastNewline + 1
	}
	if lastSpace >= 0 {
		return lastSpace + 1
	}
	return limit
}
