package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/core/ports/driving"
	"github.com/custodia-labs/finrag/internal/logger"
)

// Ensure Poller implements the interface.
var _ driving.Scheduler = (*Poller)(nil)

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollInterval sets the time between polls.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithIngestOptions sets the options used for every ingest.
func WithIngestOptions(opts domain.IngestOptions) PollerOption {
	return func(p *Poller) {
		p.opts = opts
	}
}

// WithReportHandler registers a callback invoked after each poll.
func WithReportHandler(fn func(*domain.BatchReport)) PollerOption {
	return func(p *Poller) {
		p.onReport = fn
	}
}

// Poller periodically runs document fetchers and ingests their output.
type Poller struct {
	ingestion driving.IngestionService
	fetchers  []driven.DocumentFetcher
	interval  time.Duration
	opts      domain.IngestOptions
	onReport  func(*domain.BatchReport)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPoller creates a poller over fetchers.
func NewPoller(
	ingestion driving.IngestionService,
	fetchers []driven.DocumentFetcher,
	opts ...PollerOption,
) *Poller {
	p := &Poller{
		ingestion: ingestion,
		fetchers:  fetchers,
		interval:  domain.DefaultFeedPoll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start polls immediately and then on every interval. It blocks until ctx
// is cancelled or Stop is called. Calling Start on a running poller is a
// no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	logger.Info("poller started: %d fetchers every %s", len(p.fetchers), p.interval)
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.markStopped()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// Stop ends the loop and waits for an in-flight poll to finish.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logger.Info("poller stopped")
	return nil
}

// PollOnce runs every fetcher once and ingests what they return. A failing
// fetcher is reported and skipped.
func (p *Poller) PollOnce(ctx context.Context) (*domain.BatchReport, error) {
	report := &domain.BatchReport{}

	for _, f := range p.fetchers {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		docs, err := f.Fetch(ctx)
		if err != nil {
			logger.Warn("fetcher %s failed: %v", f.Name(), err)
			report.Add(domain.ItemResult{Item: f.Name(), Stage: domain.StageFetched, Err: err})
			continue
		}
		logger.Debug("fetcher %s returned %d documents", f.Name(), len(docs))
		if len(docs) == 0 {
			continue
		}

		sub, err := p.ingestion.ProcessDocumentObjects(ctx, docs, p.opts)
		if sub != nil {
			report.Items = append(report.Items, sub.Items...)
		}
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

func (p *Poller) tick(ctx context.Context) {
	p.wg.Add(1)
	defer p.wg.Done()

	report, err := p.PollOnce(ctx)
	if err != nil {
		logger.Warn("poll interrupted: %v", err)
	}
	if p.onReport != nil && report != nil {
		p.onReport(report)
	}
}

func (p *Poller) markStopped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.running = false
		close(p.stopCh)
	}
}
