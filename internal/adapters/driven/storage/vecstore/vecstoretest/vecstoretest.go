// Package vecstoretest runs the behaviour every driven.VectorStore backend
// must share against a concrete implementation.
package vecstoretest

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
)

// Factory returns an empty store. Cleanup should be registered on t.
type Factory func(t *testing.T) driven.VectorStore

// HashDimensions is the vector length produced by HashEmbed.
const HashDimensions = 256

var hashStopWords = map[string]bool{
	"a": true, "across": true, "after": true, "at": true, "for": true,
	"its": true, "of": true, "the": true, "was": true, "what": true,
}

// HashEmbed is a deterministic bag-of-words embedding: every non-stop-word
// token increments one FNV-hashed bucket. Texts sharing words are close.
func HashEmbed(text string) []float32 {
	vec := make([]float32, HashDimensions)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if hashStopWords[tok] {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%HashDimensions]++
	}
	return vec
}

// Chunks builds n chunks of one document with the given metadata.
func Chunks(md domain.Metadata, texts ...string) []domain.Chunk {
	doc := domain.NewDocument(strings.Join(texts, " "), md)
	out := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		out[i] = domain.NewChunk(doc, i, text)
	}
	return out
}

// Embed applies HashEmbed to every chunk.
func Embed(chunks []domain.Chunk) [][]float32 {
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		out[i] = HashEmbed(c.Content)
	}
	return out
}

// Run exercises the shared VectorStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyCollection", func(t *testing.T) { testEmptyCollection(t, newStore(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("GeneratedIDs", func(t *testing.T) { testGeneratedIDs(t, newStore(t)) })
	t.Run("Upsert", func(t *testing.T) { testUpsert(t, newStore(t)) })
	t.Run("RevenueRanking", func(t *testing.T) { testRevenueRanking(t, newStore(t)) })
	t.Run("MetadataFilters", func(t *testing.T) { testMetadataFilters(t, newStore(t)) })
	t.Run("DocumentFilter", func(t *testing.T) { testDocumentFilter(t, newStore(t)) })
	t.Run("DimensionMismatch", func(t *testing.T) { testDimensionMismatch(t, newStore(t)) })
	t.Run("InvalidArguments", func(t *testing.T) { testInvalidArguments(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, newStore(t)) })
}

func testEmptyCollection(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()

	hits, err := store.QueryByEmbedding(ctx, HashEmbed("revenue"), 5, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func testRoundTrip(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	md := domain.Metadata{domain.MetaSource: "aapl.txt", domain.MetaTicker: "AAPL"}
	chunks := Chunks(md, "first chunk text", "second chunk text")

	ids, err := store.Add(ctx, chunks, Embed(chunks), []string{"aapl#0", "aapl#1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"aapl#0", "aapl#1"}, ids)

	got, err := store.GetByIDs(ctx, []string{"aapl#1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "aapl#1", got[0].ID)
	assert.Equal(t, "second chunk text", got[0].Content)
	assert.Equal(t, "aapl.txt", got[0].Metadata.String(domain.MetaSource))
	assert.Equal(t, "AAPL", got[0].Metadata.String(domain.MetaTicker))
	idx, ok := got[0].Metadata.Int(domain.MetaChunkIndex)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testGeneratedIDs(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	chunks := Chunks(domain.Metadata{domain.MetaSource: "x"}, "alpha", "beta")

	ids, err := store.Add(ctx, chunks, Embed(chunks), nil)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])

	got, err := store.GetByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func testUpsert(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	first := Chunks(domain.Metadata{domain.MetaSource: "feed"}, "old headline")
	second := Chunks(domain.Metadata{domain.MetaSource: "feed"}, "new headline")

	_, err := store.Add(ctx, first, Embed(first), []string{"news#0"})
	require.NoError(t, err)
	_, err = store.Add(ctx, second, Embed(second), []string{"news#0"})
	require.NoError(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetByIDs(ctx, []string{"news#0"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new headline", got[0].Content)
}

func testRevenueRanking(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	chunks := Chunks(domain.Metadata{domain.MetaSource: "news"},
		"The central bank held interest rates steady at its June meeting.",
		"Apple reported revenue of $394.3 billion for fiscal 2022.",
		"Shares of the airline fell after fuel costs climbed sharply.",
		"Analysts expect dividend growth across the utility sector.",
	)
	_, err := store.Add(ctx, chunks, Embed(chunks), nil)
	require.NoError(t, err)

	hits, err := store.QueryByEmbedding(ctx, HashEmbed("What was total revenue?"), 4, nil, nil)
	require.NoError(t, err)
	require.Len(t, hits, 4)

	assert.Contains(t, hits[0].Content, "revenue of $394.3 billion")
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
	assert.Less(t, hits[0].Distance, hits[1].Distance)
}

func seedFilings(t *testing.T, store driven.VectorStore) {
	t.Helper()
	ctx := context.Background()
	filings := []struct {
		id       string
		ticker   string
		date     string
		formType string
		text     string
	}{
		{"aapl-2022", "AAPL", "2022-10-28", "10-K", "Apple revenue grew on iPhone demand"},
		{"aapl-2023", "AAPL", "2023-11-03", "10-K", "Apple revenue declined slightly"},
		{"msft-2023", "MSFT", "2023-07-27", "10-K", "Microsoft revenue grew on cloud demand"},
		{"aapl-q1", "AAPL", "2023-02-02", "10-Q", "Apple quarterly revenue record"},
	}
	for _, f := range filings {
		md := domain.Metadata{
			domain.MetaSource:   f.id,
			domain.MetaTicker:   f.ticker,
			domain.MetaDate:     f.date,
			domain.MetaFormType: f.formType,
			domain.MetaType:     "sec_filing",
		}
		chunks := Chunks(md, f.text)
		_, err := store.Add(ctx, chunks, Embed(chunks), []string{f.id})
		require.NoError(t, err)
	}
}

func hitIDs(hits []domain.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func testMetadataFilters(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	seedFilings(t, store)
	query := HashEmbed("revenue")

	tests := []struct {
		name  string
		where domain.Where
		want  []string
	}{
		{
			name:  "ticker equality",
			where: domain.Cond{Field: domain.MetaTicker, Op: domain.OpEq, Value: "MSFT"},
			want:  []string{"msft-2023"},
		},
		{
			name: "date range and form type",
			where: domain.And{Operands: []domain.Where{
				domain.Cond{Field: domain.MetaDate, Op: domain.OpGte, Value: "2023-01-01"},
				domain.Cond{Field: domain.MetaDate, Op: domain.OpLte, Value: "2023-12-31T23:59:59Z"},
				domain.Cond{Field: domain.MetaTicker, Op: domain.OpEq, Value: "AAPL"},
				domain.Cond{Field: domain.MetaFormType, Op: domain.OpEq, Value: "10-K"},
			}},
			want: []string{"aapl-2023"},
		},
		{
			name:  "missing field never matches",
			where: domain.Cond{Field: "sector", Op: domain.OpEq, Value: "tech"},
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := store.QueryByEmbedding(ctx, query, 10, tt.where, nil)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, hitIDs(hits))
		})
	}
}

func testDocumentFilter(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	seedFilings(t, store)

	hits, err := store.QueryByEmbedding(ctx, HashEmbed("revenue"), 10, nil,
		&domain.DocumentWhere{Contains: "cloud"})
	require.NoError(t, err)
	assert.Equal(t, []string{"msft-2023"}, hitIDs(hits))
}

func testDimensionMismatch(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	chunks := Chunks(domain.Metadata{domain.MetaSource: "x"}, "text")
	_, err := store.Add(ctx, chunks, Embed(chunks), nil)
	require.NoError(t, err)

	_, err = store.Add(ctx, chunks, [][]float32{{1, 2, 3}}, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = store.QueryByEmbedding(ctx, []float32{1, 2, 3}, 1, nil, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func testInvalidArguments(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	chunks := Chunks(domain.Metadata{domain.MetaSource: "x"}, "one", "two")

	_, err := store.Add(ctx, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = store.Add(ctx, chunks, Embed(chunks[:1]), nil)
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = store.Add(ctx, chunks, Embed(chunks), []string{"only-one"})
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = store.QueryByEmbedding(ctx, HashEmbed("one"), 0, nil, nil)
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = store.GetByIDs(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = store.Delete(ctx, nil, nil)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func testDelete(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	seedFilings(t, store)

	removed, err := store.Delete(ctx, []string{"aapl-2022", "missing"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = store.Delete(ctx, nil, domain.Cond{Field: domain.MetaTicker, Op: domain.OpEq, Value: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "msft-2023", all[0].ID)
}

func testReset(t *testing.T, store driven.VectorStore) {
	ctx := context.Background()
	seedFilings(t, store)

	require.NoError(t, store.Reset(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The dimension is forgotten, so a different embedding size is accepted.
	chunks := Chunks(domain.Metadata{domain.MetaSource: "x"}, "text")
	_, err = store.Add(ctx, chunks, [][]float32{{1, 0, 0}}, nil)
	require.NoError(t, err)
}
