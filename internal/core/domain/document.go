package domain

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
)

// Well-known metadata keys present on every stored chunk.
const (
	MetaSource     = "source"
	MetaFilename   = "filename"
	MetaURL        = "url"
	MetaTitle      = "title"
	MetaType       = "type"
	MetaDate       = "date"
	MetaChunkIndex = "chunk_index"
	MetaTicker     = "ticker"
	MetaFormType   = "form_type"
)

// Document types set by the file loader.
const (
	DocumentTypeText     = "text"
	DocumentTypeMarkdown = "markdown"
)

// Metadata holds scalar provenance fields keyed by name.
// Values are strings, booleans, integers or floats.
// Methods never mutate the receiver.
type Metadata map[string]any

// Clone returns a shallow copy. Values are scalars so the copy is independent.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	maps.Copy(out, m)
	return out
}

// With returns a new Metadata holding m's fields plus key=value.
func (m Metadata) With(key string, value any) Metadata {
	out := m.Clone()
	out[key] = value
	return out
}

// String returns the value for key formatted as a string, or "" when absent.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the value for key as an int. JSON-decoded numbers arrive as
// float64 or int64 depending on the store, so both are accepted.
func (m Metadata) Int(key string) (int, bool) {
	switch t := m[key].(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Document is text plus provenance metadata.
// It is produced by the file loader or an external fetcher and is not
// modified afterwards.
type Document struct {
	// Content is the full text.
	Content string

	// Metadata holds provenance fields such as source, type and date.
	Metadata Metadata
}

// NewDocument returns a Document that owns a private copy of metadata.
func NewDocument(content string, metadata Metadata) Document {
	return Document{Content: content, Metadata: metadata.Clone()}
}

// Label returns a short identifier for logs and batch reports.
func (d Document) Label() string {
	for _, key := range []string{MetaSource, MetaURL, MetaFilename, MetaTitle} {
		if v := d.Metadata.String(key); v != "" {
			return v
		}
	}
	return ""
}

// Chunk is a contiguous fragment of a Document.
type Chunk struct {
	// Content is the fragment text.
	Content string

	// Index is the 0-based position within the parent document.
	Index int

	// Metadata is the parent's metadata plus chunk_index.
	Metadata Metadata
}

// NewChunk builds the chunk at index of parent. The parent's metadata is
// copied, never shared.
func NewChunk(parent Document, index int, content string) Chunk {
	return Chunk{
		Content:  content,
		Index:    index,
		Metadata: parent.Metadata.With(MetaChunkIndex, index),
	}
}
