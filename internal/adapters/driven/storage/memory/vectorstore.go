package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/finrag/internal/adapters/driven/storage/vecstore"
	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Records keep insertion order; replacing a record keeps its position.
type VectorStore struct {
	mu        sync.RWMutex
	name      string
	dimension int
	records   []domain.Record
	index     map[string]int
}

// NewVectorStore creates a new in-memory vector store for one collection.
func NewVectorStore(name string) *VectorStore {
	if name == "" {
		name = domain.DefaultCollection
	}
	return &VectorStore{
		name:  name,
		index: make(map[string]int),
	}
}

// Add stores chunks with their embeddings. Existing ids are replaced.
func (s *VectorStore) Add(
	_ context.Context,
	chunks []domain.Chunk,
	embeddings [][]float32,
	ids []string,
) ([]string, error) {
	dim, err := vecstore.ValidateAdd(chunks, embeddings, ids)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := vecstore.CheckDimension(s.dimension, dim); err != nil {
		return nil, err
	}
	s.dimension = dim

	ids = vecstore.ResolveIDs(len(chunks), ids)
	for i, chunk := range chunks {
		rec := domain.Record{
			ID:        ids[i],
			Content:   chunk.Content,
			Embedding: append([]float32(nil), embeddings[i]...),
			Metadata:  chunk.Metadata.Clone(),
		}
		if pos, ok := s.index[rec.ID]; ok {
			s.records[pos] = rec
			continue
		}
		s.index[rec.ID] = len(s.records)
		s.records = append(s.records, rec)
	}

	return append([]string(nil), ids...), nil
}

// QueryByEmbedding returns up to n records ordered by ascending cosine distance.
func (s *VectorStore) QueryByEmbedding(
	_ context.Context,
	vector []float32,
	n int,
	where domain.Where,
	whereDoc *domain.DocumentWhere,
) ([]domain.Hit, error) {
	if err := vecstore.ValidateQuery(vector, n); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return []domain.Hit{}, nil
	}
	if err := vecstore.CheckDimension(s.dimension, len(vector)); err != nil {
		return nil, err
	}

	candidates := make([]domain.Record, 0, len(s.records))
	for _, rec := range s.records {
		if where != nil && !where.Match(rec.Metadata) {
			continue
		}
		if !whereDoc.Match(rec.Content) {
			continue
		}
		candidates = append(candidates, copyRecord(rec))
	}

	return vecstore.Nearest(candidates, vector, n), nil
}

// GetByIDs returns the records for ids that exist, in ids order.
func (s *VectorStore) GetByIDs(_ context.Context, ids []string) ([]domain.Record, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids given", domain.ErrStore)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		if pos, ok := s.index[id]; ok {
			out = append(out, copyRecord(s.records[pos]))
		}
	}
	return out, nil
}

// GetAll returns every record in insertion order.
func (s *VectorStore) GetAll(_ context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Record, len(s.records))
	for i, rec := range s.records {
		out[i] = copyRecord(rec)
	}
	return out, nil
}

// Count returns the number of records.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Delete removes records by ids or by metadata predicate.
func (s *VectorStore) Delete(_ context.Context, ids []string, where domain.Where) (int, error) {
	if err := vecstore.ValidateDelete(ids, where); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := s.records[:0]
	removed := 0
	for _, rec := range s.records {
		if drop[rec.ID] || (where != nil && where.Match(rec.Metadata)) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	s.reindex()

	return removed, nil
}

// DeleteCollection removes every record and forgets the dimension.
func (s *VectorStore) DeleteCollection(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.index = make(map[string]int)
	s.dimension = 0
	return nil
}

// Reset empties the collection. For the in-memory store this is the same
// as DeleteCollection.
func (s *VectorStore) Reset(ctx context.Context) error {
	return s.DeleteCollection(ctx)
}

// Name returns the collection name.
func (s *VectorStore) Name() string {
	return s.name
}

// Close is a no-op for the in-memory store.
func (s *VectorStore) Close() error {
	return nil
}

func (s *VectorStore) reindex() {
	s.index = make(map[string]int, len(s.records))
	for i, rec := range s.records {
		s.index[rec.ID] = i
	}
}

func copyRecord(rec domain.Record) domain.Record {
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	rec.Metadata = rec.Metadata.Clone()
	return rec
}
