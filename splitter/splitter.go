// Package splitter cuts raw document text into overlapping chunks sized
// for embedding and retrieval.
package splitter

import (
	"fmt"

	"github.com/vhoang/docbot/config"
)

// separators is the break-point priority: paragraph break, line break,
// sentence end, word boundary. A hard character cut is the fallback.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter produces chunks of at most chunkSize characters where adjacent
// chunks share chunkOverlap trailing characters.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", config.ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", config.ErrInvalidConfig, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", config.ErrInvalidConfig, chunkOverlap, chunkSize)
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split cuts text into chunks. Each chunk is a contiguous substring of the
// input; every chunk after the first starts exactly chunkOverlap characters
// before the previous chunk's end, so joining the chunks with that overlap
// removed reproduces the input.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:len(runes)]))
			break
		}
		end = s.breakPoint(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))
		start = end - s.chunkOverlap
	}
	return chunks
}

// breakPoint moves end back to just after the best separator inside the
// window, provided the shortened chunk still covers more than the overlap
// (otherwise the split would not advance). Falls through the separator
// priority list down to the hard cut at end.
func (s *Splitter) breakPoint(runes []rune, start, end int) int {
	for _, sep := range separators {
		sepRunes := []rune(sep)
		if at := lastIndex(runes[start:end], sepRunes); at >= 0 {
			candidate := start + at + len(sepRunes)
			if candidate-start > s.chunkOverlap {
				return candidate
			}
		}
	}
	return end
}

// lastIndex finds the rightmost occurrence of sep in window, rune-wise.
func lastIndex(window, sep []rune) int {
	if len(sep) == 0 || len(sep) > len(window) {
		return -1
	}
outer:
	for i := len(window) - len(sep); i >= 0; i-- {
		for j := range sep {
			if window[i+j] != sep[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
