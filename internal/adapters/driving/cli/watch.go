package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finrag/internal/connectors/filesystem"
	"github.com/custodia-labs/finrag/internal/connectors/ratelimit"
	"github.com/custodia-labs/finrag/internal/connectors/rss"
	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/core/services"
	"github.com/custodia-labs/finrag/internal/logger"
)

var (
	watchFeeds    bool
	watchInterval time.Duration
	watchScan     bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest new files and feed items as they appear",
	Long: `Watches a directory and ingests text and Markdown files when they are
created or modified. With --feeds the RSS and Atom feeds listed in the
feeds.urls setting are polled as well.

Runs until interrupted.

Examples:
  finrag watch ~/filings
  finrag watch ~/filings --scan
  finrag watch --feeds --interval 15m`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchFeeds, "feeds", false, "poll configured feeds")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "feed poll interval (default from settings)")
	watchCmd.Flags().BoolVar(&watchScan, "scan", false, "ingest files already in the directory first")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", filesystem.DefaultDebounce, "quiet period before ingesting changed files")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !watchFeeds {
		return errors.New("nothing to watch: give a directory or --feeds")
	}
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	var fetchers []driven.DocumentFetcher
	if watchFeeds {
		if fetchers, err = feedFetchers(settings.Feeds); err != nil {
			return err
		}
		if len(fetchers) == 0 {
			return errors.New("no feeds configured: run 'finrag settings set feeds.urls <url,...>'")
		}
	}

	if err := connect(cmd); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	errCh := make(chan error, 2)
	running := 0

	if len(args) == 1 {
		watcher := filesystem.NewWatcher(args[0], ingestionService,
			filesystem.WithDebounce(watchDebounce),
			filesystem.WithResultHandler(func(path string, ids []string, err error) {
				if err != nil {
					cmd.PrintErrf("FAIL %s: %v\n", path, err)
					return
				}
				cmd.Printf("OK   %s: %d chunks\n", path, len(ids))
			}),
		)
		if watchScan {
			report, err := watcher.Scan(ctx)
			if err != nil {
				return err
			}
			outputIngestReport(cmd, report, false)
		}
		running++
		go func() { errCh <- watcher.Run(ctx) }()
		cmd.Printf("Watching %s\n", watcher.Root())
	}

	if len(fetchers) > 0 {
		interval := settings.Feeds.Interval
		if watchInterval > 0 {
			interval = watchInterval
		}
		poller := services.NewPoller(ingestionService, fetchers,
			services.WithPollInterval(interval),
			services.WithReportHandler(func(r *domain.BatchReport) {
				cmd.Printf("Feeds: %d chunks stored, %d items failed\n", len(r.IDs()), len(r.Failed()))
			}),
		)
		running++
		go func() { errCh <- poller.Start(ctx) }()
		cmd.Printf("Polling %d feeds every %s\n", len(fetchers), interval)
	}

	var first error
	for i := 0; i < running; i++ {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) && first == nil {
			first = err
			cancel()
		}
	}
	logger.Debug("watch stopped")
	return first
}

// feedFetchers builds one fetcher per configured URL. All of them share a
// single limiter so the configured delay bounds the total request rate.
func feedFetchers(feeds domain.FeedSettings) ([]driven.DocumentFetcher, error) {
	limiter := ratelimit.New(feeds.Delay)
	fetchers := make([]driven.DocumentFetcher, 0, len(feeds.URLs))
	for _, u := range feeds.URLs {
		f, err := rss.New(rss.Config{URL: u}, limiter)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, f)
	}
	return fetchers, nil
}
