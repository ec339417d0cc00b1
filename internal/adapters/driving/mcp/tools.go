package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question     string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default from settings)"`
	ParseFilters bool   `json:"parse_filters,omitempty" jsonschema:"extract ticker:, form:, type: and date phrases from the question"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer     string            `json:"answer"`
	Sources    []domain.Metadata `json:"sources"`
	ChunksUsed int               `json:"chunks_used"`
	Error      string            `json:"error,omitempty"`
	Filters    *domain.Filters   `json:"filters,omitempty"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"the text to find similar chunks for"`
	Limit        int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	ParseFilters bool   `json:"parse_filters,omitempty" jsonschema:"extract inline filters from the query"`
	Contains     string `json:"contains,omitempty" jsonschema:"only return chunks containing this text"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single retrieved chunk.
type SearchResultOutput struct {
	ID       string          `json:"id"`
	Content  string          `json:"content"`
	Distance float64         `json:"distance"`
	Metadata domain.Metadata `json:"metadata"`
}

// ParseQueryInput is the input schema for the parse_query tool.
type ParseQueryInput struct {
	Query     string `json:"query" jsonschema:"the free-text query to parse"`
	NoFilters bool   `json:"no_filters,omitempty" jsonschema:"keep the text whole instead of extracting filters"`
}

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	Content  string         `json:"content" jsonschema:"the document text"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"provenance fields such as source, url, ticker, form_type, date"`
	DryRun   bool           `json:"dry_run,omitempty" jsonschema:"embed without storing"`
}

// IngestTextOutput is the output schema for the ingest_text tool.
type IngestTextOutput struct {
	IDs    []string `json:"ids"`
	Chunks int      `json:"chunks"`
	DryRun bool     `json:"dry_run,omitempty"`
}

const defaultSearchLimit = 5

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed financial documents, citing sources",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the chunks most similar to a query without generating an answer",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parse_query",
		Description: "Split a query into search text, filters and boolean operators",
	}, s.handleParseQuery)

	if s.ports.Ingestion != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_text",
			Description: "Chunk, embed and store a document given as text",
		}, s.handleIngestText)
	}
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	question, filters, err := s.prepare(input.Question, input.ParseFilters)
	if err != nil {
		return nil, AskOutput{}, err
	}

	answer, err := s.ports.Query.Query(ctx, question, domain.QueryOptions{
		TopK:    input.TopK,
		Filters: filters,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	out := AskOutput{
		Answer:     answer.Text,
		Sources:    answer.Sources,
		ChunksUsed: answer.ChunksUsed,
		Error:      answer.Error,
	}
	if !filters.IsEmpty() {
		out.Filters = &filters
	}
	return nil, out, nil
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query, filters, err := s.prepare(input.Query, input.ParseFilters)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	hits, err := s.ports.Query.Search(ctx, query, domain.QueryOptions{
		TopK:     limit,
		Filters:  filters,
		Contains: input.Contains,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(hits)),
		Count:   len(hits),
	}
	for i := range hits {
		output.Results[i] = SearchResultOutput{
			ID:       hits[i].ID,
			Content:  hits[i].Content,
			Distance: hits[i].Distance,
			Metadata: hits[i].Metadata,
		}
	}
	return nil, output, nil
}

func (s *Server) handleParseQuery(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ParseQueryInput,
) (*mcp.CallToolResult, domain.ParsedQuery, error) {
	if s.ports.Parser == nil {
		return nil, domain.ParsedQuery{}, fmt.Errorf("%w: query parser not configured", domain.ErrInvalidInput)
	}
	parsed, err := s.ports.Parser.Parse(input.Query, !input.NoFilters)
	if err != nil {
		return nil, domain.ParsedQuery{}, err
	}
	return nil, *parsed, nil
}

func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestTextOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, IngestTextOutput{}, ErrIngestionDisabled
	}

	md := domain.Metadata{}
	for k, v := range input.Metadata {
		md[k] = v
	}
	if md.String(domain.MetaSource) == "" {
		md[domain.MetaSource] = "mcp"
	}

	doc := domain.NewDocument(input.Content, md)
	report, err := s.ports.Ingestion.ProcessDocumentObjects(ctx, []domain.Document{doc}, domain.IngestOptions{
		DryRun: input.DryRun,
	})
	if err != nil {
		return nil, IngestTextOutput{}, err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return nil, IngestTextOutput{}, failed[0].Err
	}

	ids := report.IDs()
	return nil, IngestTextOutput{IDs: ids, Chunks: len(ids), DryRun: input.DryRun}, nil
}

// prepare parses text into a question and filters when asked to.
func (s *Server) prepare(text string, parse bool) (string, domain.Filters, error) {
	if !parse || s.ports.Parser == nil {
		return text, domain.Filters{}, nil
	}
	parsed, err := s.ports.Parser.Parse(text, true)
	if err != nil {
		return "", domain.Filters{}, err
	}
	return parsed.QueryText, parsed.Filters, nil
}
