// Package rss fetches news items from RSS 2.0 and Atom feeds and turns
// each item into a document for the ingestion pipeline.
package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/finrag/internal/connectors/ratelimit"
	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/normalisers/html"
)

// Ensure Fetcher implements the interface.
var _ driven.DocumentFetcher = (*Fetcher)(nil)

// DocumentTypeNews is the type recorded on feed items.
const DocumentTypeNews = "news"

// Default configuration values.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxItems = 50
	DefaultDelay    = domain.DefaultFeedDelay
	maxFeedBytes    = 5 << 20
	userAgent       = "finrag/1.0 (+https://github.com/custodia-labs/finrag)"
)

// Config holds configuration for a feed fetcher.
type Config struct {
	// URL is the feed address.
	URL string

	// Name labels the feed in logs and in the source metadata field.
	// Defaults to the feed host.
	Name string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// MaxItems caps the number of items returned per fetch.
	MaxItems int
}

// Fetcher reads one feed.
type Fetcher struct {
	url      string
	name     string
	maxItems int
	client   *http.Client
	limiter  *ratelimit.Limiter
}

// New creates a feed fetcher. Pass a limiter to share a request budget
// with other fetchers; nil gives the fetcher its own limiter.
func New(cfg Config, limiter *ratelimit.Limiter) (*Fetcher, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid feed url %q", domain.ErrInvalidInput, cfg.URL)
	}
	if cfg.Name == "" {
		cfg.Name = u.Host
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if limiter == nil {
		limiter = ratelimit.New(DefaultDelay)
	}

	return &Fetcher{
		url:      cfg.URL,
		name:     cfg.Name,
		maxItems: cfg.MaxItems,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
	}, nil
}

// Name returns the feed label.
func (f *Fetcher) Name() string {
	return "rss:" + f.name
}

// Fetch downloads the feed and returns one document per item, newest
// first as the feed orders them.
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		f.limiter.Backoff(retryAfter(resp.Header.Get("Retry-After")))
		return nil, fmt.Errorf("fetch %s: throttled (status %d)", f.url, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", f.url, resp.StatusCode)
	}

	items, err := parseFeed(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.url, err)
	}

	docs := make([]domain.Document, 0, min(len(items), f.maxItems))
	for _, it := range items {
		if len(docs) == f.maxItems {
			break
		}
		if doc, ok := f.document(it); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// document converts a feed item. Items with neither title nor body are
// dropped.
func (f *Fetcher) document(it item) (domain.Document, bool) {
	title := html.Text(it.Title)
	body := html.Text(it.body())
	if title == "" && body == "" {
		return domain.Document{}, false
	}

	content := body
	if title != "" && body != "" {
		content = title + "\n\n" + body
	} else if body == "" {
		content = title
	}

	md := domain.Metadata{
		domain.MetaSource: f.Name(),
		domain.MetaType:   DocumentTypeNews,
		"feed":            f.url,
	}
	if link := it.link(); link != "" {
		md[domain.MetaURL] = link
	}
	if title != "" {
		md[domain.MetaTitle] = title
	}
	if date, ok := parseDate(it.date()); ok {
		md[domain.MetaDate] = date.UTC().Format(time.RFC3339)
	}
	if it.Author != "" {
		md["author"] = strings.TrimSpace(it.Author)
	}

	return domain.NewDocument(content, md), true
}

// retryAfter reads a Retry-After header in seconds or HTTP-date form.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}
