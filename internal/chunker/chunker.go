// Package chunker splits document text into bounded, overlapping chunks
// suitable for embedding and similarity retrieval.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTargetSize is the maximum chunk length in bytes.
	DefaultTargetSize = 800

	// DefaultOverlap is how much trailing context a chunk shares with the
	// chunk that follows it, in bytes.
	DefaultOverlap = 150
)

// defaultSeparators orders split points by semantic significance: paragraph
// break, then line break, then sentence boundary, then word boundary. Text
// containing none of them falls back to a character-level split.
var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Splitter breaks text along a separator hierarchy so chunk boundaries land
// on semantically meaningful positions whenever the text allows it, while
// still guaranteeing a hard upper bound on chunk size.
type Splitter struct {
	targetSize int
	overlap    int
	separators []string
}

// NewSplitter creates a Splitter with the given chunk size and overlap in
// bytes. Out-of-range values fall back to usable ones rather than failing.
func NewSplitter(targetSize, overlap int) *Splitter {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		overlap = targetSize / 2
	}
	return &Splitter{
		targetSize: targetSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split breaks text into ordered chunks no longer than the target size, with
// adjacent chunks sharing overlapping context. Chunks are never cut mid-rune.
// Empty or whitespace-only input produces no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.merge(s.pieces(text, s.separators))
}

// pieces recursively decomposes text into fragments no longer than the
// target size. Separators stay attached to the fragment they terminate, so
// joining the fragments reproduces the input byte for byte.
func (s *Splitter) pieces(text string, separators []string) []string {
	if len(text) <= s.targetSize {
		return []string{text}
	}

	for i, sep := range separators {
		if !strings.Contains(text, sep) {
			continue
		}
		var out []string
		for _, piece := range strings.SplitAfter(text, sep) {
			if piece == "" {
				continue
			}
			if len(piece) <= s.targetSize {
				out = append(out, piece)
			} else {
				// A fragment from SplitAfter carries at most a trailing
				// separator, so only finer separators can divide it further.
				out = append(out, s.pieces(piece, separators[i+1:])...)
			}
		}
		return out
	}

	return s.sliceRunes(text)
}

// sliceRunes cuts separator-free text into fixed-size fragments along rune
// boundaries. Fragments are one overlap long so the merge step can seed the
// next chunk with a full overlap of trailing context.
func (s *Splitter) sliceRunes(text string) []string {
	size := s.overlap
	if size <= 0 {
		size = s.targetSize
	}

	var out []string
	for len(text) > 0 {
		if len(text) <= size {
			out = append(out, text)
			break
		}
		cut := size
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			// Single rune wider than the fragment size; emit it whole.
			_, cut = utf8.DecodeRuneInString(text)
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	return out
}

// merge assembles fragments into chunks, carrying trailing fragments into the
// next chunk until the carried context reaches the overlap budget.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range pieces {
		if total+len(piece) > s.targetSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ""))

			// Shed fragments from the front until what remains fits the
			// overlap window and leaves room for the incoming fragment.
			for total > s.overlap || (total+len(piece) > s.targetSize && total > 0) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += len(piece)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}
