package driven

// TextSplitter splits text into ordered, overlapping fragments.
type TextSplitter interface {
	// SplitText returns the fragments of text in order. Empty text yields none.
	SplitText(text string) []string

	// ChunkSize returns the maximum fragment length in characters.
	ChunkSize() int

	// Overlap returns the number of characters shared by consecutive fragments.
	Overlap() int
}
