package domain

// Stage names a step of document or query processing.
type Stage string

// Ingestion stages, in order. A failed item is reported with the stage
// that was being attempted.
const (
	StageValidate Stage = "validate"
	StageLoaded   Stage = "loaded"
	StageChunked  Stage = "chunked"
	StageEmbedded Stage = "embedded"
	StageStored   Stage = "stored"
)

// StageFetched marks a fetcher that failed before producing documents.
const StageFetched Stage = "fetched"

// Query stages.
const (
	StageEmbedQuery Stage = "embed_query"
	StageRetrieve   Stage = "retrieve"
	StageGenerate   Stage = "generate"
)

// ItemResult is the outcome for one item of a batch.
type ItemResult struct {
	// Item identifies the input (path, URL or position).
	Item string `json:"item"`

	// IDs holds the stored (or placeholder) ids on success.
	IDs []string `json:"ids,omitempty"`

	// Chunks is the number of chunks produced.
	Chunks int `json:"chunks"`

	// Stage is the stage that failed. Empty on success.
	Stage Stage `json:"stage,omitempty"`

	// Err is the failure cause. Nil on success.
	Err error `json:"-"`
}

// Skipped reports whether the item failed and was skipped.
func (r ItemResult) Skipped() bool {
	return r.Err != nil
}

// BatchReport collects per-item results of a batch operation.
type BatchReport struct {
	Items []ItemResult `json:"items"`
}

// Add appends a result.
func (b *BatchReport) Add(r ItemResult) {
	b.Items = append(b.Items, r)
}

// IDs returns the ids of all successful items in input order.
func (b *BatchReport) IDs() []string {
	var ids []string
	for _, item := range b.Items {
		if !item.Skipped() {
			ids = append(ids, item.IDs...)
		}
	}
	return ids
}

// Succeeded returns the successful items.
func (b *BatchReport) Succeeded() []ItemResult {
	var out []ItemResult
	for _, item := range b.Items {
		if !item.Skipped() {
			out = append(out, item)
		}
	}
	return out
}

// Failed returns the skipped items.
func (b *BatchReport) Failed() []ItemResult {
	var out []ItemResult
	for _, item := range b.Items {
		if item.Skipped() {
			out = append(out, item)
		}
	}
	return out
}
