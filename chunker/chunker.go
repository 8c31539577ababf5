package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chatdocs/ragengine/core"
)

// Default chunking parameters. Tuned for retrieval context windows; both are
// configuration, not constants of the algorithm.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Chunk splits text into ordered, bounded-size chunks along sentence
// boundaries.
//
// Sentences are packed greedily into chunks of at most chunkSize characters,
// counted in runes.
// A sentence that would cross a chunk boundary is moved whole to the next
// chunk, even if that leaves the current chunk short. Consecutive chunks
// overlap by the trailing overlap characters of the previous chunk,
// re-inserted at the head of the next, so retrieval keeps cross-boundary
// context; the overlap prefix is additional context and does not count
// against the chunkSize budget. A single sentence longer than chunkSize is
// emitted as its own chunk, unsplit.
//
// The output is deterministic and order-preserving. Empty input yields no
// chunks and no error. Returns core.ErrInvalidInput only when chunkSize <= 0
// or overlap >= chunkSize; a negative overlap is treated as zero.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrInvalidInput, chunkSize)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", core.ErrInvalidInput, overlap, chunkSize)
	}
	if overlap < 0 {
		overlap = 0
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []string
	var cur strings.Builder
	newLen := 0 // packed content, excluding the overlap prefix

	flush := func() {
		chunk := cur.String()
		chunks = append(chunks, chunk)
		cur.Reset()
		newLen = 0
		if overlap > 0 {
			cur.WriteString(tail(chunk, overlap))
		}
	}

	for _, sentence := range sentences {
		sl := utf8.RuneCountInString(sentence)
		if newLen > 0 && newLen+1+sl > chunkSize {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
			if newLen > 0 {
				newLen++
			}
		}
		cur.WriteString(sentence)
		newLen += sl
	}
	if newLen > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks, nil
}

// splitSentences splits text on terminal punctuation and newlines, keeping the
// punctuation with its sentence. Runs of terminal punctuation ("...", "?!")
// stay within one sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	pending := false
	for _, r := range text {
		if r == '\n' {
			flush()
			pending = false
			continue
		}
		if isTerminal(r) {
			b.WriteRune(r)
			pending = true
			continue
		}
		if pending && !unicode.IsSpace(r) {
			flush()
			pending = false
		}
		b.WriteRune(r)
	}
	flush()
	return sentences
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

// tail returns the last n characters of s.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
