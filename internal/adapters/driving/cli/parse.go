package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var parseNoFilters bool

var parseCmd = &cobra.Command{
	Use:   "parse <query>",
	Short: "Show how a query is split into text and filters",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseNoFilters, "no-filters", false, "keep the query text whole")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	if queryParser == nil {
		return errors.New("query parser not configured")
	}

	parsed, err := queryParser.Parse(strings.Join(args, " "), !parseNoFilters)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
