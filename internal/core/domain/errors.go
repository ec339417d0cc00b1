package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answer generation degrades to an error answer without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Ingestion and retrieval are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGeneration indicates an LLM request that was rejected or produced
	// no text.
	ErrGeneration = errors.New("generation error")

	// ErrStoreUnavailable indicates the vector store could not be opened.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// Pipeline Errors.

	// ErrValidation indicates a bad input file: missing, not a regular file,
	// too large, not UTF-8 or an unsupported extension.
	ErrValidation = errors.New("validation error")

	// ErrEmbedding indicates an embedding provider failure.
	ErrEmbedding = errors.New("embedding error")

	// ErrStore indicates a vector store failure or misuse.
	ErrStore = errors.New("store error")

	// ErrDimensionMismatch indicates a vector whose length disagrees with the
	// dimension already established for a collection. It matches ErrStore.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrStore)

	// ErrParse indicates a query that could not be parsed.
	ErrParse = errors.New("parse error")

	// ErrQuery indicates an unusable question.
	ErrQuery = errors.New("query error")

	// ErrPipeline is matched by every *PipelineError.
	ErrPipeline = errors.New("pipeline error")
)

// PipelineError wraps a failure with the stage that produced it.
// errors.Is reports true for both ErrPipeline and the wrapped cause.
type PipelineError struct {
	// Stage is where processing stopped.
	Stage Stage

	// Item identifies the document or query being processed.
	Item string

	// Err is the original cause.
	Err error
}

// Error implements error.
func (e *PipelineError) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("pipeline failed at %s for %s: %v", e.Stage, e.Item, e.Err)
}

// Unwrap returns the original cause.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is makes every PipelineError match ErrPipeline.
func (e *PipelineError) Is(target error) bool {
	return target == ErrPipeline
}

// NewPipelineError wraps err with stage context.
func NewPipelineError(stage Stage, item string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Item: item, Err: err}
}
