package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/services"
)

const defaultInclude = "**/*.{txt,text,md,markdown}"

var (
	ingestDryRun  bool
	ingestInclude string
	ingestJSON    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path|glob>...",
	Short: "Ingest text and Markdown files",
	Long: `Loads, chunks, embeds and stores documents.

Arguments may be files, directories or doublestar globs. Directories are
searched with the --include pattern. A file that fails is reported and
skipped; the rest are still ingested.

Examples:
  finrag ingest filings/aapl-10k.txt
  finrag ingest reports/ --include "**/*.md"
  finrag ingest "transcripts/**/*.txt" --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "embed without storing")
	ingestCmd.Flags().StringVar(&ingestInclude, "include", defaultInclude, "pattern for files inside directories")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	paths, err := expandPaths(args, ingestInclude)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no files matched")
	}

	if err := connect(cmd); err != nil {
		return err
	}

	opts := domain.IngestOptions{DryRun: ingestDryRun}
	bar := newProgress(cmd.ErrOrStderr(), len(paths), !ingestJSON && isTerminal(cmd.ErrOrStderr()))

	report := &domain.BatchReport{}
	for _, p := range paths {
		sub, err := ingestionService.ProcessDocuments(cmd.Context(), []string{p}, opts)
		if sub != nil {
			report.Items = append(report.Items, sub.Items...)
		}
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if ingestJSON {
		return outputIngestJSON(cmd, report)
	}
	outputIngestReport(cmd, report, ingestDryRun)
	return nil
}

// expandPaths resolves files, directories and globs into a de-duplicated
// list of files in argument order.
func expandPaths(args []string, include string) ([]string, error) {
	if include == "" {
		include = defaultInclude
	}
	if !doublestar.ValidatePattern(include) {
		return nil, fmt.Errorf("%w: invalid include pattern %q", domain.ErrInvalidInput, include)
	}

	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		info, statErr := os.Stat(arg)
		switch {
		case statErr == nil && info.IsDir():
			matches, err := doublestar.Glob(os.DirFS(arg), include, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("search %s: %w", arg, err)
			}
			for _, m := range matches {
				if services.IsSupportedFile(m) {
					add(filepath.Join(arg, filepath.FromSlash(m)))
				}
			}
		case statErr == nil:
			// Explicit files go to the loader even when unsupported so the
			// report says why they were skipped.
			add(arg)
		default:
			matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("%w: invalid pattern %q", domain.ErrInvalidInput, arg)
			}
			if len(matches) == 0 {
				// Let the loader report the missing file.
				add(arg)
			}
			for _, m := range matches {
				add(m)
			}
		}
	}
	return out, nil
}

func newProgress(w io.Writer, total int, enabled bool) *progressbar.ProgressBar {
	if !enabled || total <= 1 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type reportItemJSON struct {
	Item  string   `json:"item"`
	IDs   []string `json:"ids,omitempty"`
	Stage string   `json:"stage,omitempty"`
	Error string   `json:"error,omitempty"`
}

func outputIngestJSON(cmd *cobra.Command, report *domain.BatchReport) error {
	items := make([]reportItemJSON, len(report.Items))
	for i, it := range report.Items {
		items[i] = reportItemJSON{Item: it.Item, IDs: it.IDs, Stage: string(it.Stage)}
		if it.Err != nil {
			items[i].Error = it.Err.Error()
		}
	}

	data, err := json.MarshalIndent(struct {
		Items     []reportItemJSON `json:"items"`
		Succeeded int              `json:"succeeded"`
		Failed    int              `json:"failed"`
		Chunks    int              `json:"chunks"`
	}{items, len(report.Succeeded()), len(report.Failed()), len(report.IDs())}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputIngestReport(cmd *cobra.Command, report *domain.BatchReport, dryRun bool) {
	for _, it := range report.Items {
		if it.Err != nil {
			cmd.Printf("  FAIL %s (%s): %v\n", it.Item, it.Stage, it.Err)
			continue
		}
		cmd.Printf("  OK   %s: %d chunks\n", it.Item, len(it.IDs))
	}
	cmd.Println()

	verb := "Stored"
	if dryRun {
		verb = "Dry run embedded"
	}
	cmd.Printf("%s %d chunks from %d files (%d failed).\n",
		verb, len(report.IDs()), len(report.Succeeded()), len(report.Failed()))
}
