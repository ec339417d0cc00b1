package mcp

import (
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/core/ports/driving"
)

// Ports aggregates the services required by the MCP server.
type Ports struct {
	// Query answers questions and runs retrieval.
	Query driving.QueryService

	// Parser extracts inline filters from questions. Optional; questions
	// are used verbatim without it.
	Parser driving.QueryParser

	// Ingestion enables the ingest_text tool. Optional.
	Ingestion driving.IngestionService

	// Store backs the collection resources. Optional.
	Store driven.VectorStore
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
