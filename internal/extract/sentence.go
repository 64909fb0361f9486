package extract

import "strings"

// SentenceBuffer accumulates words since the last sentence terminator.
// One buffer lives for a whole indexing run so a sentence can span rows and
// pages. It is not safe for concurrent use.
type SentenceBuffer struct {
	words []string
}

// Push appends word and returns the sentence so far, including word. When
// word ends a sentence the buffer is cleared after the value is recorded.
func (b *SentenceBuffer) Push(word string) string {
	b.words = append(b.words, word)
	sentence := strings.Join(b.words, " ")
	if EndsSentence(word) {
		b.words = b.words[:0]
	}
	return sentence
}

// Len returns the number of buffered words.
func (b *SentenceBuffer) Len() int {
	return len(b.words)
}

// Reset clears the buffer.
func (b *SentenceBuffer) Reset() {
	b.words = b.words[:0]
}

// EndsSentence reports whether word's last character is '.', '!' or '?'.
func EndsSentence(word string) bool {
	if word == "" {
		return false
	}
	switch word[len(word)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
