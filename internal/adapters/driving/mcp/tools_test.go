package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with sources", func(t *testing.T) {
		query := &mockQueryService{answer: &domain.Answer{
			Text:       "Revenue was $394.3 billion.",
			Sources:    []domain.Metadata{{"source": "aapl-10k.txt", "ticker": "AAPL"}},
			ChunksUsed: 1,
		}}
		server := newTestServer(t, &Ports{Query: query})

		_, out, err := server.handleAsk(ctx, nil, AskInput{Question: "What was revenue?", TopK: 3})
		require.NoError(t, err)

		assert.Equal(t, "Revenue was $394.3 billion.", out.Answer)
		assert.Equal(t, 1, out.ChunksUsed)
		require.Len(t, out.Sources, 1)
		assert.Equal(t, "AAPL", out.Sources[0].String("ticker"))
		assert.Nil(t, out.Filters)
		assert.Equal(t, "What was revenue?", query.question)
		assert.Equal(t, 3, query.opts.TopK)
	})

	t.Run("parses filters when asked", func(t *testing.T) {
		query := &mockQueryService{answer: &domain.Answer{Sources: []domain.Metadata{}}}
		parser := &mockParser{parsed: &domain.ParsedQuery{
			QueryText: "revenue",
			Filters:   domain.Filters{Ticker: "AAPL", DateFrom: "2023-01-01"},
		}}
		server := newTestServer(t, &Ports{Query: query, Parser: parser})

		_, out, err := server.handleAsk(ctx, nil, AskInput{
			Question:     "ticker: AAPL revenue from 2023-01-01",
			ParseFilters: true,
		})
		require.NoError(t, err)

		assert.True(t, parser.extract)
		assert.Equal(t, "revenue", query.question)
		assert.Equal(t, "AAPL", query.opts.Filters.Ticker)
		require.NotNil(t, out.Filters)
		assert.Equal(t, "2023-01-01", out.Filters.DateFrom)
	})

	t.Run("generation failure is reported in output", func(t *testing.T) {
		query := &mockQueryService{answer: &domain.Answer{
			Text:    "Failed to generate an answer: timeout",
			Error:   "timeout",
			Sources: []domain.Metadata{},
		}}
		server := newTestServer(t, &Ports{Query: query})

		_, out, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})
		require.NoError(t, err)
		assert.Equal(t, "timeout", out.Error)
	})

	t.Run("query error is returned", func(t *testing.T) {
		query := &mockQueryService{err: domain.ErrQuery}
		server := newTestServer(t, &Ports{Query: query})

		_, _, err := server.handleAsk(ctx, nil, AskInput{})
		assert.ErrorIs(t, err, domain.ErrQuery)
	})

	t.Run("parse error is returned", func(t *testing.T) {
		server := newTestServer(t, &Ports{
			Query:  &mockQueryService{},
			Parser: &mockParser{err: domain.ErrParse},
		})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Question: " ", ParseFilters: true})
		assert.ErrorIs(t, err, domain.ErrParse)
	})
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns hits", func(t *testing.T) {
		query := &mockQueryService{hits: []domain.Hit{{
			Record: domain.Record{
				ID:       "doc#0",
				Content:  "revenue of $394.3 billion",
				Metadata: domain.Metadata{"source": "aapl"},
			},
			Distance: 0.12,
		}}}
		server := newTestServer(t, &Ports{Query: query})

		_, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "revenue", Limit: 2, Contains: "billion"})
		require.NoError(t, err)

		require.Equal(t, 1, out.Count)
		assert.Equal(t, "doc#0", out.Results[0].ID)
		assert.Equal(t, 0.12, out.Results[0].Distance)
		assert.Equal(t, "aapl", out.Results[0].Metadata.String("source"))
		assert.Equal(t, 2, query.opts.TopK)
		assert.Equal(t, "billion", query.opts.Contains)
	})

	t.Run("default limit", func(t *testing.T) {
		query := &mockQueryService{}
		server := newTestServer(t, &Ports{Query: query})

		_, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Count)
		assert.Equal(t, defaultSearchLimit, query.opts.TopK)
	})

	t.Run("returns error on failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Query: &mockQueryService{err: errors.New("store down")}})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "x"})
		assert.EqualError(t, err, "store down")
	})
}

func TestServer_handleParseQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("returns parsed query", func(t *testing.T) {
		parser := &mockParser{parsed: &domain.ParsedQuery{
			QueryText:        "revenue",
			BooleanOperators: []string{"AND"},
		}}
		server := newTestServer(t, &Ports{Query: &mockQueryService{}, Parser: parser})

		_, out, err := server.handleParseQuery(ctx, nil, ParseQueryInput{Query: "revenue AND"})
		require.NoError(t, err)
		assert.Equal(t, "revenue", out.QueryText)
		assert.Equal(t, []string{"AND"}, out.BooleanOperators)
		assert.True(t, parser.extract)
	})

	t.Run("no_filters keeps text whole", func(t *testing.T) {
		parser := &mockParser{parsed: &domain.ParsedQuery{}}
		server := newTestServer(t, &Ports{Query: &mockQueryService{}, Parser: parser})

		_, _, err := server.handleParseQuery(ctx, nil, ParseQueryInput{Query: "x", NoFilters: true})
		require.NoError(t, err)
		assert.False(t, parser.extract)
	})

	t.Run("missing parser", func(t *testing.T) {
		server := newTestServer(t, &Ports{Query: &mockQueryService{}})

		_, _, err := server.handleParseQuery(ctx, nil, ParseQueryInput{Query: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleIngestText(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests with default source", func(t *testing.T) {
		ing := &mockIngestion{report: &domain.BatchReport{Items: []domain.ItemResult{
			{Item: "mcp", IDs: []string{"a", "b"}, Chunks: 2},
		}}}
		server := newTestServer(t, &Ports{Query: &mockQueryService{}, Ingestion: ing})

		_, out, err := server.handleIngestText(ctx, nil, IngestTextInput{
			Content:  "Apple revenue grew.",
			Metadata: map[string]any{"ticker": "AAPL"},
			DryRun:   true,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b"}, out.IDs)
		assert.Equal(t, 2, out.Chunks)
		assert.True(t, out.DryRun)
		require.Len(t, ing.docs, 1)
		assert.Equal(t, "mcp", ing.docs[0].Metadata.String(domain.MetaSource))
		assert.Equal(t, "AAPL", ing.docs[0].Metadata.String(domain.MetaTicker))
		assert.True(t, ing.opts.DryRun)
	})

	t.Run("failed item is returned as error", func(t *testing.T) {
		ing := &mockIngestion{report: &domain.BatchReport{Items: []domain.ItemResult{
			{Item: "mcp", Stage: domain.StageEmbedded, Err: domain.ErrEmbedding},
		}}}
		server := newTestServer(t, &Ports{Query: &mockQueryService{}, Ingestion: ing})

		_, _, err := server.handleIngestText(ctx, nil, IngestTextInput{Content: "x"})
		assert.ErrorIs(t, err, domain.ErrEmbedding)
	})

	t.Run("disabled without ingestion service", func(t *testing.T) {
		server := newTestServer(t, &Ports{Query: &mockQueryService{}})

		_, _, err := server.handleIngestText(ctx, nil, IngestTextInput{Content: "x"})
		assert.ErrorIs(t, err, ErrIngestionDisabled)
	})
}
