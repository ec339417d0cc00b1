package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for finrag resources.
	uriScheme = "finrag://"
)

// registerResources registers resource handlers when a store is available.
func (s *Server) registerResources() {
	if s.ports.Store == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "collection",
		Name:        "collection",
		Description: "Name and record count of the vector collection",
		MIMEType:    "application/json",
	}, s.handleCollectionResource)

	// Record ids may contain slashes, so they are path-escaped in the URI.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "records/{id}",
		Name:        "record",
		Description: "Text and metadata of a stored chunk",
		MIMEType:    "application/json",
	}, s.handleRecordResource)
}

func (s *Server) handleCollectionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	count, err := s.ports.Store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}

	data, err := json.MarshalIndent(struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}{s.ports.Store.Name(), count}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling collection: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleRecordResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractRecordID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	records, err := s.ports.Store.GetByIDs(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	if len(records) == 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	data, err := json.MarshalIndent(records[0], "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling record: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// RecordURI returns the resource URI for a record id.
func RecordURI(id string) string {
	return uriScheme + "records/" + url.PathEscape(id)
}

// extractRecordID extracts the record id from a URI like finrag://records/{id}.
func extractRecordID(uri string) string {
	const prefix = uriScheme + "records/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id, err := url.PathUnescape(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return ""
	}
	return id
}
