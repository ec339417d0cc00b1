package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finrag/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with MCP-compatible AI assistants. It exposes the ask, search,
parse_query and ingest_text tools.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Examples:
  # Stdio mode (default)
  finrag mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  finrag mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "finrag": {
        "command": "/path/to/finrag",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Bool("read-only", false, "do not expose the ingest_text tool")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	readOnly, err := cmd.Flags().GetBool("read-only")
	if err != nil {
		return fmt.Errorf("getting read-only flag: %w", err)
	}

	if err := connect(cmd); err != nil {
		return err
	}

	server, err := mcp.NewServer(mcpPorts(readOnly))
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}

// mcpPorts exposes the connected services to MCP clients. Questions go to
// the memoryless engine because every client shares this process.
func mcpPorts(readOnly bool) *mcp.Ports {
	query := statelessQuery
	if query == nil {
		query = queryService
	}
	ports := &mcp.Ports{
		Query:  query,
		Parser: queryParser,
		Store:  vectorStore,
	}
	if !readOnly {
		ports.Ingestion = ingestionService
	}
	return ports
}
