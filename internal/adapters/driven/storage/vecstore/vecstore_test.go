package vecstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

func chunks(n int) []domain.Chunk {
	doc := domain.NewDocument("text", domain.Metadata{domain.MetaSource: "a.txt"})
	out := make([]domain.Chunk, n)
	for i := range out {
		out[i] = domain.NewChunk(doc, i, "text")
	}
	return out
}

func TestValidateAdd(t *testing.T) {
	tests := []struct {
		name       string
		chunks     []domain.Chunk
		embeddings [][]float32
		ids        []string
		wantDim    int
		wantErr    error
	}{
		{name: "valid without ids", chunks: chunks(2), embeddings: [][]float32{{1, 0}, {0, 1}}, wantDim: 2},
		{name: "valid with ids", chunks: chunks(1), embeddings: [][]float32{{1, 2, 3}}, ids: []string{"a"}, wantDim: 3},
		{name: "no chunks", wantErr: domain.ErrStore},
		{name: "embedding count", chunks: chunks(2), embeddings: [][]float32{{1}}, wantErr: domain.ErrStore},
		{name: "id count", chunks: chunks(2), embeddings: [][]float32{{1}, {2}}, ids: []string{"a"}, wantErr: domain.ErrStore},
		{name: "empty id", chunks: chunks(1), embeddings: [][]float32{{1}}, ids: []string{""}, wantErr: domain.ErrStore},
		{name: "empty vector", chunks: chunks(1), embeddings: [][]float32{{}}, wantErr: domain.ErrStore},
		{
			name:       "ragged vectors",
			chunks:     chunks(2),
			embeddings: [][]float32{{1, 2}, {1, 2, 3}},
			wantErr:    domain.ErrDimensionMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dim, err := ValidateAdd(tt.chunks, tt.embeddings, tt.ids)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, dim)
		})
	}
}

func TestCheckDimension(t *testing.T) {
	assert.NoError(t, CheckDimension(0, 768))
	assert.NoError(t, CheckDimension(768, 768))

	err := CheckDimension(768, 1536)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestResolveIDs(t *testing.T) {
	assert.Equal(t, []string{"x", "y"}, ResolveIDs(2, []string{"x", "y"}))

	generated := ResolveIDs(3, nil)
	require.Len(t, generated, 3)
	assert.NotEqual(t, generated[0], generated[1])
	assert.Len(t, generated[0], 36)
}

func TestValidateQueryAndDelete(t *testing.T) {
	assert.NoError(t, ValidateQuery([]float32{1}, 1))
	assert.ErrorIs(t, ValidateQuery([]float32{1}, 0), domain.ErrStore)
	assert.ErrorIs(t, ValidateQuery(nil, 3), domain.ErrStore)

	where := domain.Cond{Field: domain.MetaTicker, Op: domain.OpEq, Value: "AAPL"}
	assert.NoError(t, ValidateDelete([]string{"a"}, nil))
	assert.NoError(t, ValidateDelete(nil, where))
	assert.ErrorIs(t, ValidateDelete(nil, nil), domain.ErrStore)
	assert.ErrorIs(t, ValidateDelete([]string{"a"}, where), domain.ErrStore)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2.0, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}), 1e-9)
}

func TestNearest(t *testing.T) {
	records := []domain.Record{
		{ID: "far", Embedding: []float32{0, 1}},
		{ID: "near", Embedding: []float32{1, 0.1}},
		{ID: "exact", Embedding: []float32{1, 0}},
	}

	hits := Nearest(records, []float32{1, 0}, 2)

	require.Len(t, hits, 2)
	assert.Equal(t, "exact", hits[0].ID)
	assert.Equal(t, "near", hits[1].ID)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	assert.Empty(t, Nearest(nil, []float32{1, 0}, 5))
}
