package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

var (
	askTopK      int
	askSession   string
	askNoFilters bool
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieves the chunks most relevant to the question and asks the
configured language model to answer from them, listing the sources used.

Inline filters are extracted unless --no-filters is given:
  ticker: AAPL          only chunks tagged with this ticker
  form: 10-K            only this form type
  type: news            only this document type
  from 2023-01-01 to 2023-06-30, since March 2023, before 2024, in 2022

With --session the conversation is remembered between invocations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from settings)")
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "conversation session to continue")
	askCmd.Flags().BoolVar(&askNoFilters, "no-filters", false, "use the question verbatim")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryParser == nil {
		return errors.New("query parser not configured")
	}
	parsed, err := queryParser.Parse(strings.Join(args, " "), !askNoFilters)
	if err != nil {
		return err
	}

	if err := connect(cmd); err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := restoreSession(ctx, askSession); err != nil {
		return err
	}

	spec := parsed.Spec(askTopK)
	answer, err := queryService.Query(ctx, spec.Question, spec.Options())
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if err := persistSession(ctx, askSession); err != nil {
		return err
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	outputAnswer(cmd, parsed, answer)
	return nil
}

// restoreSession loads saved turns into the conversation memory.
func restoreSession(ctx context.Context, session string) error {
	if session == "" || conversation == nil {
		return nil
	}
	if sessionStore == nil {
		return errors.New("session store not configured")
	}
	turns, err := sessionStore.Load(ctx, session)
	if err != nil {
		return fmt.Errorf("load session %s: %w", session, err)
	}
	conversation.Restore(turns)
	return nil
}

// persistSession saves the conversation memory under session.
func persistSession(ctx context.Context, session string) error {
	if session == "" || conversation == nil || sessionStore == nil {
		return nil
	}
	if err := sessionStore.Save(ctx, session, conversation.Turns()); err != nil {
		return fmt.Errorf("save session %s: %w", session, err)
	}
	return nil
}

func outputAnswer(cmd *cobra.Command, parsed *domain.ParsedQuery, answer *domain.Answer) {
	if !parsed.Filters.IsEmpty() {
		cmd.Printf("Filters: %s\n\n", describeFilters(parsed.Filters))
	}

	cmd.Println(answer.Text)
	if answer.Failed() {
		cmd.PrintErrf("\nWarning: answer generation failed: %s\n", answer.Error)
	}

	if len(answer.Sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Printf("Sources (%d chunks):\n", answer.ChunksUsed)
	for i, src := range answer.Sources {
		cmd.Printf("  [%d] %s\n", i+1, describeSource(src))
	}
}

// describeSource renders source metadata on one line.
func describeSource(md domain.Metadata) string {
	label := ""
	for _, key := range []string{domain.MetaTitle, domain.MetaSource, domain.MetaURL, domain.MetaFilename} {
		if v := md.String(key); v != "" {
			label = v
			break
		}
	}
	if label == "" {
		label = "unknown"
	}

	var extra []string
	for _, key := range []string{domain.MetaTicker, domain.MetaFormType, domain.MetaDate} {
		if v := md.String(key); v != "" {
			extra = append(extra, v)
		}
	}
	if idx, ok := md.Int(domain.MetaChunkIndex); ok {
		extra = append(extra, fmt.Sprintf("chunk %d", idx))
	}
	if len(extra) == 0 {
		return label
	}
	return label + " (" + strings.Join(extra, ", ") + ")"
}

func describeFilters(f domain.Filters) string {
	var parts []string
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, name+"="+value)
		}
	}
	add("ticker", f.Ticker)
	add("form", f.FormType)
	add("type", f.DocumentType)
	add("source", f.Source)
	add("from", f.DateFrom)
	add("to", f.DateTo)
	return strings.Join(parts, " ")
}
