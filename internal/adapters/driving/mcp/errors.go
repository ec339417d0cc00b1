// Package mcp provides an MCP (Model Context Protocol) server adapter for finrag.
// It lets AI assistants ask questions over the indexed financial documents,
// run retrieval, parse queries and ingest text.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

// ErrIngestionDisabled is returned by ingest_text when no ingestion service
// was provided.
var ErrIngestionDisabled = errors.New("mcp: ingestion is not enabled")
