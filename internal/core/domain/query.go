package domain

// Filters is the structured filter surface consumed by the filter builder.
// Empty fields are ignored.
type Filters struct {
	// DateFrom is an inclusive lower bound as an ISO-8601 date.
	DateFrom string `json:"date_from,omitempty"`

	// DateTo is an inclusive upper bound as an ISO-8601 date.
	DateTo string `json:"date_to,omitempty"`

	DocumentType string `json:"document_type,omitempty"`
	Ticker       string `json:"ticker,omitempty"`
	FormType     string `json:"form_type,omitempty"`
	Source       string `json:"source,omitempty"`

	// Metadata holds arbitrary exact-match key/value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return f.DateFrom == "" && f.DateTo == "" && f.DocumentType == "" &&
		f.Ticker == "" && f.FormType == "" && f.Source == "" && len(f.Metadata) == 0
}

// Boolean keywords recognised in free-text queries.
const (
	BoolAnd = "AND"
	BoolOr  = "OR"
	BoolNot = "NOT"
)

// ParsedQuery is the result of parsing a free-text query.
type ParsedQuery struct {
	// QueryText is the input with filter tokens removed.
	QueryText string `json:"query_text"`

	// BooleanOperators lists AND/OR/NOT keywords in order of appearance.
	// Retrieval does not act on them.
	BooleanOperators []string `json:"boolean_operators"`

	// Filters holds the extracted inline filters.
	Filters Filters `json:"filters"`

	// QueryTerms is the lower-cased, stop-word-filtered token set of QueryText.
	QueryTerms []string `json:"query_terms"`
}

// QuerySpec is a question ready for retrieval.
type QuerySpec struct {
	Question string
	Filters  Filters
	TopK     int
}

// Spec turns a parse result into a retrieval request for topK chunks.
func (p *ParsedQuery) Spec(topK int) QuerySpec {
	return QuerySpec{Question: p.QueryText, Filters: p.Filters, TopK: topK}
}

// Options returns the engine options carrying the spec's filters and limit.
func (s QuerySpec) Options() QueryOptions {
	return QueryOptions{TopK: s.TopK, Filters: s.Filters}
}

// QueryOptions are per-call overrides for the query engine.
type QueryOptions struct {
	// TopK overrides the engine default when positive.
	TopK int

	// Filters restricts retrieval by metadata.
	Filters Filters

	// Contains restricts retrieval to chunks containing this substring.
	Contains string
}

// IngestOptions controls document ingestion.
type IngestOptions struct {
	// DryRun computes embeddings without persisting them and returns
	// placeholder ids.
	DryRun bool
}
