package mcp

import (
	"context"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer   *domain.Answer
	hits     []domain.Hit
	err      error
	question string
	opts     domain.QueryOptions
}

func (m *mockQueryService) Query(_ context.Context, question string, opts domain.QueryOptions) (*domain.Answer, error) {
	m.question, m.opts = question, opts
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

func (m *mockQueryService) QuerySimple(_ context.Context, question string) (string, error) {
	m.question = question
	if m.err != nil {
		return "", m.err
	}
	return m.answer.Text, nil
}

func (m *mockQueryService) Search(_ context.Context, question string, opts domain.QueryOptions) ([]domain.Hit, error) {
	m.question, m.opts = question, opts
	return m.hits, m.err
}

// mockParser is a mock implementation of driving.QueryParser.
type mockParser struct {
	parsed  *domain.ParsedQuery
	err     error
	extract bool
}

func (m *mockParser) Parse(_ string, extractFilters bool) (*domain.ParsedQuery, error) {
	m.extract = extractFilters
	return m.parsed, m.err
}

// mockIngestion is a mock implementation of driving.IngestionService.
type mockIngestion struct {
	docs   []domain.Document
	opts   domain.IngestOptions
	report *domain.BatchReport
	err    error
}

func (m *mockIngestion) ProcessDocument(context.Context, string, domain.IngestOptions) ([]string, error) {
	return nil, nil
}

func (m *mockIngestion) ProcessDocuments(context.Context, []string, domain.IngestOptions) (*domain.BatchReport, error) {
	return &domain.BatchReport{}, nil
}

func (m *mockIngestion) ProcessDocumentObjects(
	_ context.Context,
	docs []domain.Document,
	opts domain.IngestOptions,
) (*domain.BatchReport, error) {
	m.docs, m.opts = docs, opts
	return m.report, m.err
}

func (m *mockIngestion) SearchSimilar(context.Context, string, int) ([]domain.Hit, error) {
	return nil, nil
}
