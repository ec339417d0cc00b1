// Package chunker provides a recursive, separator-aware text splitter.
package chunker

import (
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/logger"
)

// Ensure Splitter implements the interface.
var _ driven.TextSplitter = (*Splitter)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// DefaultSeparators lists separator groups from coarsest to finest:
// paragraph, line, sentence, word. When no group matches inside a window
// the text is cut at the character limit.
var DefaultSeparators = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" "},
}

// Splitter cuts text into chunks of at most chunkSize characters, where
// consecutive chunks share exactly overlap characters.
//
// Each chunk ends just after the last occurrence of the coarsest separator
// found in its window, so paragraphs and sentences stay whole when they fit.
// Lengths are counted in runes.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators [][][]rune
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list.
// Each inner slice is one priority level.
func WithSeparators(groups [][]string) Option {
	return func(s *Splitter) {
		if len(groups) > 0 {
			s.separators = toRunes(groups)
		}
	}
}

// New creates a new splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: toRunes(DefaultSeparators),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.chunkSize {
		logger.Warn("chunk overlap %d >= chunk size %d, using %d", s.overlap, s.chunkSize, s.chunkSize/4)
		s.overlap = s.chunkSize / 4
	}

	return s
}

// Name returns the splitter name.
func (s *Splitter) Name() string {
	return "chunker"
}

// ChunkSize returns the maximum chunk length in characters.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the overlap between consecutive chunks.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// SplitText splits text into chunks.
// Dropping the first Overlap() characters of every chunk after the first and
// concatenating the results reproduces text exactly.
func (s *Splitter) SplitText(text string) []string {
	if text == "" {
		// Empty content produces no chunks
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	estimatedChunks := (len(runes) / (s.chunkSize - s.overlap)) + 1
	chunks := make([]string, 0, estimatedChunks)

	start := 0
	for {
		if len(runes)-start <= s.chunkSize {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end := s.cut(runes, start)
		chunks = append(chunks, string(runes[start:end]))

		// end > start+overlap, so this always moves forward
		start = end - s.overlap
	}

	return chunks
}

// cut picks the end offset for the chunk starting at start. The cut falls
// after the last separator of the coarsest group that occurs in the window
// and leaves more than overlap characters in the chunk.
func (s *Splitter) cut(runes []rune, start int) int {
	limit := start + s.chunkSize
	minEnd := start + s.overlap + 1
	window := runes[start:limit]

	for _, group := range s.separators {
		best := -1
		for _, sep := range group {
			i := lastIndex(window, sep)
			if i < 0 {
				continue
			}
			end := start + i + len(sep)
			if end >= minEnd && end > best {
				best = end
			}
		}
		if best > 0 {
			return best
		}
	}

	return limit
}

// lastIndex returns the index of the last occurrence of sep in s, or -1.
func lastIndex(s, sep []rune) int {
	n := len(sep)
	if n == 0 || n > len(s) {
		return -1
	}
	for i := len(s) - n; i >= 0; i-- {
		match := true
		for j := 0; j < n; j++ {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func toRunes(groups [][]string) [][][]rune {
	out := make([][][]rune, 0, len(groups))
	for _, group := range groups {
		level := make([][]rune, 0, len(group))
		for _, sep := range group {
			if sep != "" {
				level = append(level, []rune(sep))
			}
		}
		if len(level) > 0 {
			out = append(out, level)
		}
	}
	return out
}
