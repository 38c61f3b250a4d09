package orchestration

import (
	"strings"
	"unicode/utf8"
)

// sentenceTerminators end a speakable sentence. Covers ASCII, the
// right-to-left question mark, the ellipsis and full-width CJK forms.
const sentenceTerminators = ".?!؟…。！？"

func isSentenceTerminator(r rune) bool {
	return strings.ContainsRune(sentenceTerminators, r)
}

// sentenceBuffer holds streamed answer text that has not been cut into
// sentences yet. It is owned by a single turn.
type sentenceBuffer struct {
	pending string
}

// Push appends delta and returns every sentence completed by it.
//
// Text after the last terminator stays buffered. Consecutive terminators
// stay attached to the sentence they end.
func (b *sentenceBuffer) Push(delta string) []string {
	b.pending += delta

	cut := lastTerminatorEnd(b.pending)
	if cut < 0 {
		return nil
	}

	complete := b.pending[:cut]
	b.pending = b.pending[cut:]
	return splitSentences(complete)
}

// Flush returns whatever is still buffered as a final sentence, or an empty
// string when nothing but whitespace is left, and clears the buffer.
func (b *sentenceBuffer) Flush() string {
	rest := strings.TrimSpace(b.pending)
	b.pending = ""
	return rest
}

// lastTerminatorEnd scans backward and returns the byte offset just past the
// last terminator in text, or -1 if there is none.
func lastTerminatorEnd(text string) int {
	for end := len(text); end > 0; {
		r, size := utf8.DecodeLastRuneInString(text[:end])
		if isSentenceTerminator(r) {
			return end
		}
		end -= size
	}
	return -1
}

// splitSentences cuts text at terminator runs followed by optional whitespace
// and drops empty results.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	inTerminatorRun := false
	for i, r := range text {
		if isSentenceTerminator(r) {
			inTerminatorRun = true
			continue
		}
		if inTerminatorRun {
			if sentence := strings.TrimSpace(text[start:i]); sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i
			inTerminatorRun = false
		}
	}
	if sentence := strings.TrimSpace(text[start:]); sentence != "" {
		sentences = append(sentences, sentence)
	}
	return sentences
}
