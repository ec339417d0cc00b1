package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/core/ports/driving"
	"github.com/custodia-labs/finrag/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService moves documents through Loaded -> Chunked -> Embedded ->
// Stored. Each call runs its stages in order on the caller's goroutine.
type IngestionService struct {
	loader   *DocumentLoader
	embedder driven.EmbeddingService
	store    driven.VectorStore
	now      func() time.Time
}

// NewIngestionService creates an ingestion pipeline.
func NewIngestionService(
	loader *DocumentLoader,
	embedder driven.EmbeddingService,
	store driven.VectorStore,
) *IngestionService {
	return &IngestionService{
		loader:   loader,
		embedder: embedder,
		store:    store,
		now:      time.Now,
	}
}

// ProcessDocument ingests the file at path and returns the stored ids, or
// placeholder ids in dry-run mode. Failures are *domain.PipelineError.
func (s *IngestionService) ProcessDocument(ctx context.Context, path string, opts domain.IngestOptions) ([]string, error) {
	logger.Section("Ingest " + path)

	if err := s.loader.Validate(path); err != nil {
		return nil, domain.NewPipelineError(domain.StageValidate, path, err)
	}

	doc, err := s.loader.Load(path)
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageLoaded, path, err)
	}

	return s.ingest(ctx, path, doc, opts)
}

// ProcessDocuments ingests each path in turn. A failing path is logged,
// reported and skipped. The error is non-nil only on cancellation.
func (s *IngestionService) ProcessDocuments(
	ctx context.Context,
	paths []string,
	opts domain.IngestOptions,
) (*domain.BatchReport, error) {
	report := &domain.BatchReport{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ids, err := s.ProcessDocument(ctx, path, opts)
		report.Add(itemResult(path, ids, err))
	}

	logBatch(report)
	return report, nil
}

// ProcessDocumentObjects ingests already-materialised documents, such as
// those produced by fetchers. Missing type and date metadata are filled in.
func (s *IngestionService) ProcessDocumentObjects(
	ctx context.Context,
	docs []domain.Document,
	opts domain.IngestOptions,
) (*domain.BatchReport, error) {
	report := &domain.BatchReport{}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := doc.Label()
		if item == "" {
			item = fmt.Sprintf("document[%d]", i)
		}
		logger.Section("Ingest " + item)

		ids, err := s.ingest(ctx, item, s.withDefaults(doc, item), opts)
		report.Add(itemResult(item, ids, err))
	}

	logBatch(report)
	return report, nil
}

// SearchSimilar embeds text and returns the n closest chunks.
func (s *IngestionService) SearchSimilar(ctx context.Context, text string, n int) ([]domain.Hit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewPipelineError(domain.StageEmbedQuery, "",
			fmt.Errorf("%w: empty search text", domain.ErrQuery))
	}

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageEmbedQuery, "", ensureKind(err, domain.ErrEmbedding))
	}

	hits, err := s.store.QueryByEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageRetrieve, "", ensureKind(err, domain.ErrStore))
	}
	return hits, nil
}

// ingest runs the chunk, embed and store stages for one document.
func (s *IngestionService) ingest(
	ctx context.Context,
	item string,
	doc domain.Document,
	opts domain.IngestOptions,
) ([]string, error) {
	chunks := s.loader.Chunk(doc)
	if len(chunks) == 0 {
		return nil, domain.NewPipelineError(domain.StageChunked, item,
			fmt.Errorf("%w: document has no content", domain.ErrValidation))
	}
	logger.Debug("chunked %s: %d chunks", item, len(chunks))

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	done := logger.Timed("embed " + item)
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	done()
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageEmbedded, item, ensureKind(err, domain.ErrEmbedding))
	}
	if err := checkVectors(vectors, len(chunks)); err != nil {
		return nil, domain.NewPipelineError(domain.StageEmbedded, item, err)
	}
	logger.Debug("embedded %s: %d vectors of %d dimensions", item, len(vectors), len(vectors[0]))

	if opts.DryRun {
		ids := make([]string, len(chunks))
		for i := range ids {
			ids[i] = fmt.Sprintf("dry-run-%d", i)
		}
		logger.Info("dry run: %s not stored", item)
		return ids, nil
	}

	field, key := replaceKey(doc)
	if key != "" {
		removed, err := s.store.Delete(ctx, nil, domain.Cond{Field: field, Op: domain.OpEq, Value: key})
		if err != nil {
			return nil, domain.NewPipelineError(domain.StageStored, item, ensureKind(err, domain.ErrStore))
		}
		if removed > 0 {
			logger.Debug("replacing %s: removed %d earlier chunks", item, removed)
		}
	}

	ids, err := s.store.Add(ctx, chunks, vectors, chunkIDs(key, len(chunks)))
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageStored, item, ensureKind(err, domain.ErrStore))
	}
	logger.Info("stored %s: %d chunks in %s", item, len(ids), s.store.Name())

	return ids, nil
}

// withDefaults fills in the provenance fields every stored chunk carries.
func (s *IngestionService) withDefaults(doc domain.Document, item string) domain.Document {
	md := doc.Metadata.Clone()
	if md.String(domain.MetaSource) == "" {
		md[domain.MetaSource] = item
	}
	if md.String(domain.MetaType) == "" {
		md[domain.MetaType] = domain.DocumentTypeText
	}
	if md.String(domain.MetaDate) == "" {
		md[domain.MetaDate] = s.now().UTC().Format(time.RFC3339)
	}
	return domain.Document{Content: doc.Content, Metadata: md}
}

// replaceKey names the metadata field and value that identify a document
// across ingests: its URL, or its source path when it was loaded from a
// file. Chunks stored under the same key are replaced on re-ingest. Pasted
// text has no key and always adds.
func replaceKey(doc domain.Document) (field, key string) {
	if url := doc.Metadata.String(domain.MetaURL); url != "" {
		return domain.MetaURL, url
	}
	if doc.Metadata.String(domain.MetaFilename) != "" {
		return domain.MetaSource, doc.Metadata.String(domain.MetaSource)
	}
	return "", ""
}

// chunkIDs derives "<key>#<index>" ids. An empty key leaves ids to the store.
func chunkIDs(key string, n int) []string {
	if key == "" {
		return nil
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s#%d", key, i)
	}
	return ids
}

// checkVectors verifies one vector per chunk, all of the same length.
func checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrEmbedding, len(vectors), want)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: empty embedding vector", domain.ErrEmbedding)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				domain.ErrEmbedding, i, len(v), dim)
		}
	}
	return nil
}

// ensureKind wraps err with kind unless it already matches.
func ensureKind(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// itemResult converts a single-document outcome into a report entry.
func itemResult(item string, ids []string, err error) domain.ItemResult {
	if err == nil {
		return domain.ItemResult{Item: item, IDs: ids, Chunks: len(ids)}
	}

	logger.Warn("skipping %s: %v", item, err)
	result := domain.ItemResult{Item: item, Err: err}
	var pe *domain.PipelineError
	if errors.As(err, &pe) {
		result.Stage = pe.Stage
	}
	return result
}

func logBatch(report *domain.BatchReport) {
	logger.Info("batch complete: %d ingested, %d skipped, %d chunks",
		len(report.Succeeded()), len(report.Failed()), len(report.IDs()))
}
