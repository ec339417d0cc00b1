package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/core/ports/driving"
	"github.com/custodia-labs/finrag/internal/logger"
)

// Ensure QueryEngine implements the interface.
var _ driving.QueryService = (*QueryEngine)(nil)

const (
	unknownSource = "unknown"
	noHistory     = "(none)"
)

// QueryEngineOption configures a QueryEngine.
type QueryEngineOption func(*QueryEngine)

// WithTopK sets the default number of chunks retrieved.
func WithTopK(k int) QueryEngineOption {
	return func(e *QueryEngine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithMemory attaches conversation memory. History is added to prompts and
// answered exchanges are recorded.
func WithMemory(m *ConversationMemory) QueryEngineOption {
	return func(e *QueryEngine) {
		e.memory = m
	}
}

// WithPromptStore sets where the answer template is loaded from.
func WithPromptStore(p driven.PromptStore) QueryEngineOption {
	return func(e *QueryEngine) {
		e.prompts = p
	}
}

// WithGenerateOptions sets the options passed to the LLM.
func WithGenerateOptions(opts driven.GenerateOptions) QueryEngineOption {
	return func(e *QueryEngine) {
		e.genOpts = opts
	}
}

// QueryEngine answers questions by retrieving chunks and prompting an LLM.
type QueryEngine struct {
	embedder driven.EmbeddingService
	store    driven.VectorStore
	llm      driven.LLMService
	filters  *FilterBuilder
	prompts  driven.PromptStore
	memory   *ConversationMemory
	topK     int
	genOpts  driven.GenerateOptions
}

// NewQueryEngine creates a query engine. llm may be nil, in which case
// every answer reports a generation failure.
func NewQueryEngine(
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	llm driven.LLMService,
	opts ...QueryEngineOption,
) *QueryEngine {
	e := &QueryEngine{
		embedder: embedder,
		store:    store,
		llm:      llm,
		filters:  NewFilterBuilder(),
		topK:     domain.DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Memory returns the attached conversation memory, if any.
func (e *QueryEngine) Memory() *ConversationMemory {
	return e.memory
}

// Query retrieves context for question and generates an answer.
// Retrieval failures are returned as *domain.PipelineError. Generation
// failures produce an Answer with Error set.
func (e *QueryEngine) Query(ctx context.Context, question string, opts domain.QueryOptions) (*domain.Answer, error) {
	logger.Section("Query")

	hits, err := e.Search(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		logger.Info("no relevant chunks found")
		answer := &domain.Answer{Text: domain.NoInformationAnswer, Sources: []domain.Metadata{}}
		e.remember(question, answer)
		return answer, nil
	}

	sources := make([]domain.Metadata, len(hits))
	blocks := make([]string, len(hits))
	for i, hit := range hits {
		sources[i] = hit.Metadata.Clone()
		blocks[i] = fmt.Sprintf("[Source: %s]\n%s", provenance(hit.Metadata), hit.Content)
	}

	prompt := fmt.Sprintf(e.template(), e.history(), strings.Join(blocks, "\n\n"), strings.TrimSpace(question))
	logger.Debug("prompt: %d chars from %d chunks", len(prompt), len(hits))

	answer := &domain.Answer{Sources: sources, ChunksUsed: len(hits)}

	text, err := e.generate(ctx, prompt)
	if err != nil {
		logger.Warn("answer generation failed: %v", err)
		answer.Text = "Failed to generate an answer: " + err.Error()
		answer.Error = err.Error()
		return answer, nil
	}

	answer.Text = strings.TrimSpace(text)
	e.remember(question, answer)
	return answer, nil
}

// QuerySimple returns only the answer text.
func (e *QueryEngine) QuerySimple(ctx context.Context, question string) (string, error) {
	answer, err := e.Query(ctx, question, domain.QueryOptions{})
	if err != nil {
		return "", err
	}
	return answer.Text, nil
}

// Search embeds question and retrieves the closest chunks that satisfy
// the filters in opts.
func (e *QueryEngine) Search(ctx context.Context, question string, opts domain.QueryOptions) ([]domain.Hit, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrQuery)
	}

	topK := e.topK
	if opts.TopK > 0 {
		topK = opts.TopK
	}

	if e.embedder == nil {
		return nil, domain.NewPipelineError(domain.StageEmbedQuery, question, domain.ErrEmbeddingUnavailable)
	}
	vector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageEmbedQuery, question, ensureKind(err, domain.ErrEmbedding))
	}

	where := e.filters.BuildWhere(opts.Filters)
	whereDoc := e.filters.BuildWhereDocument("contains", opts.Contains)
	if where != nil {
		logger.Debug("where: %v", where.Map())
	}

	hits, err := e.store.QueryByEmbedding(ctx, vector, topK, where, whereDoc)
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageRetrieve, question, ensureKind(err, domain.ErrStore))
	}
	logger.Info("retrieved %d chunks (top_k=%d)", len(hits), topK)

	return hits, nil
}

func (e *QueryEngine) generate(ctx context.Context, prompt string) (string, error) {
	if e.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	done := logger.Timed("generate with " + e.llm.ModelName())
	defer done()
	return e.llm.Generate(ctx, prompt, e.genOpts)
}

// template returns the answer prompt, falling back to the built-in one.
func (e *QueryEngine) template() string {
	if e.prompts == nil {
		return driven.DefaultRAGAnswerPrompt
	}
	tmpl, err := e.prompts.Load(driven.PromptRAGAnswer)
	if err != nil || strings.TrimSpace(tmpl) == "" {
		if err == nil {
			err = errors.New("empty template")
		}
		logger.Warn("using built-in answer prompt: %v", err)
		return driven.DefaultRAGAnswerPrompt
	}
	return tmpl
}

func (e *QueryEngine) history() string {
	if e.memory == nil {
		return noHistory
	}
	text := e.memory.LoadMemoryVariables(true).Text
	if text == "" {
		return noHistory
	}
	return text
}

func (e *QueryEngine) remember(question string, answer *domain.Answer) {
	if e.memory != nil && !answer.Failed() {
		e.memory.SaveContext(strings.TrimSpace(question), answer.Text)
	}
}

// provenance renders the source label of a chunk, e.g.
// "aapl-10k.md | AAPL | 10-K | 2024-01-01T00:00:00Z".
func provenance(md domain.Metadata) string {
	label := domain.Document{Metadata: md}.Label()
	if label == "" {
		label = unknownSource
	}
	parts := []string{label}
	for _, key := range []string{domain.MetaTicker, domain.MetaFormType, domain.MetaDate} {
		if v := md.String(key); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}
