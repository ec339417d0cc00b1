// Package vecstore holds the validation and scoring rules shared by the
// vector store backends.
package vecstore

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// ValidateAdd checks the argument shapes of VectorStore.Add and returns the
// common vector dimension. ids may be nil.
func ValidateAdd(chunks []domain.Chunk, embeddings [][]float32, ids []string) (int, error) {
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no chunks to add", domain.ErrStore)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("%w: %d embeddings for %d chunks", domain.ErrStore, len(embeddings), len(chunks))
	}
	if ids != nil && len(ids) != len(chunks) {
		return 0, fmt.Errorf("%w: %d ids for %d chunks", domain.ErrStore, len(ids), len(chunks))
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: empty embedding", domain.ErrStore)
	}
	for i, vec := range embeddings {
		if len(vec) != dim {
			return 0, fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, i, len(vec), dim)
		}
	}
	for i, id := range ids {
		if id == "" {
			return 0, fmt.Errorf("%w: id %d is empty", domain.ErrStore, i)
		}
	}
	return dim, nil
}

// CheckDimension compares a vector length with the collection's established
// dimension. An established dimension of zero accepts anything.
func CheckDimension(established, got int) error {
	if established != 0 && established != got {
		return fmt.Errorf("%w: collection has %d dimensions, got %d",
			domain.ErrDimensionMismatch, established, got)
	}
	return nil
}

// ResolveIDs returns ids unchanged when set, otherwise n random UUIDs.
func ResolveIDs(n int, ids []string) []string {
	if ids != nil {
		return ids
	}
	out := make([]string, n)
	for i := range out {
		out[i] = uuid.NewString()
	}
	return out
}

// ValidateQuery checks the arguments of VectorStore.QueryByEmbedding.
func ValidateQuery(vector []float32, n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: result count must be positive, got %d", domain.ErrStore, n)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty query vector", domain.ErrStore)
	}
	return nil
}

// ValidateDelete enforces that exactly one of ids and where is given.
func ValidateDelete(ids []string, where domain.Where) error {
	if (len(ids) == 0) == (where == nil) {
		return fmt.Errorf("%w: delete needs exactly one of ids or where", domain.ErrStore)
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from
// everything. Both vectors must have the same length.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Nearest scores records against vector and returns the n closest in
// ascending distance. Ties keep the input order.
func Nearest(records []domain.Record, vector []float32, n int) []domain.Hit {
	hits := make([]domain.Hit, 0, len(records))
	for _, rec := range records {
		hits = append(hits, domain.Hit{Record: rec, Distance: CosineDistance(vector, rec.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits
}
