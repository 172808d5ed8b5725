// Package chunker splits text into overlapping, size-bounded chunks.
//
// Splitting is recursive over a priority list of separators: the coarsest
// separator present in the text is used first, and any piece still at or
// above the chunk size is split again with the next finer separator. The
// empty separator splits into single characters, so recursion always ends.
// Small pieces are merged back into chunks of up to Size characters, each
// chunk starting with up to Overlap characters carried over from the
// previous one. Lengths are counted in characters (runes), not bytes.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators prefers paragraph, then line, then word, then character boundaries.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter is a recursive character text splitter.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New creates a Splitter with the default separators.
func New(size, overlap int) (*Splitter, error) {
	return NewWithSeparators(size, overlap, DefaultSeparators)
}

// NewWithSeparators creates a Splitter with a custom separator priority list.
func NewWithSeparators(size, overlap int, separators []string) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	if len(separators) == 0 {
		return nil, fmt.Errorf("at least one separator is required")
	}
	return &Splitter{size: size, overlap: overlap, separators: separators}, nil
}

// Split returns the chunks of text in order. Chunks are whitespace-trimmed
// and never empty.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var chunks, small []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if length(piece) < s.size {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, s.merge(small)...)
			small = nil
		}
		if len(finer) == 0 {
			if chunk := strings.TrimSpace(piece); chunk != "" {
				chunks = append(chunks, chunk)
			}
		} else {
			chunks = append(chunks, s.split(piece, finer)...)
		}
	}
	if len(small) > 0 {
		chunks = append(chunks, s.merge(small)...)
	}
	return chunks
}

// merge packs pieces into chunks of at most size characters, seeding each new
// chunk with trailing pieces of the previous one totalling at most overlap.
// Pieces already carry their separator, so they are joined directly.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)

	for _, piece := range pieces {
		n := length(piece)
		if total+n > s.size && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.overlap || (total > 0 && total+n > s.size) {
				total -= length(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepingSeparator splits text on sep and prefixes every piece after
// the first with the separator. An empty sep splits into characters.
// Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	for i, part := range strings.Split(text, sep) {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
