package domain

// Record is a chunk as held by a vector store.
type Record struct {
	// ID is the caller-supplied or generated handle for the record.
	ID string `json:"id"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Embedding is the stored vector. Stores may leave it empty on reads
	// that do not need it.
	Embedding []float32 `json:"-"`

	// Metadata is the chunk metadata.
	Metadata Metadata `json:"metadata"`
}

// Hit is a record returned by similarity search.
type Hit struct {
	Record

	// Distance is the store's distance to the query vector. Lower is closer.
	Distance float64 `json:"distance"`
}
