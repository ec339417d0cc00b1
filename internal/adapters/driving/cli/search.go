package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

const snippetLength = 160

var (
	searchLimit     int
	searchJSON      bool
	searchContains  string
	searchNoFilters bool
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find the chunks closest to a query",
	Long: `Embeds the query and returns the most similar stored chunks ordered
by distance, without generating an answer. Inline filters are applied
as for 'finrag ask'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultTopK, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&searchContains, "contains", "", "only chunks containing this text")
	searchCmd.Flags().BoolVar(&searchNoFilters, "no-filters", false, "use the query verbatim")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if queryParser == nil {
		return errors.New("query parser not configured")
	}
	parsed, err := queryParser.Parse(strings.Join(args, " "), !searchNoFilters)
	if err != nil {
		return err
	}

	if err := connect(cmd); err != nil {
		return err
	}

	hits, err := queryService.Search(cmd.Context(), parsed.QueryText, domain.QueryOptions{
		TopK:     searchLimit,
		Filters:  parsed.Filters,
		Contains: searchContains,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, hits)
	}
	outputSearchTable(cmd, hits)
	return nil
}

func outputSearchJSON(cmd *cobra.Command, hits []domain.Hit) error {
	if hits == nil {
		hits = []domain.Hit{}
	}
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, hits []domain.Hit) {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range hits {
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, describeSource(hits[i].Metadata), hits[i].Distance)
		cmd.Printf("      %s\n", snippet(hits[i].Content, snippetLength))
		cmd.Println()
	}
}

// snippet flattens text to one line and cuts it at n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
