package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/connectors/ratelimit"
	"github.com/custodia-labs/finrag/internal/core/domain"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Markets</title>
    <item>
      <title>Apple beats estimates</title>
      <link>https://news.example.com/apple-q4</link>
      <description>&lt;p&gt;Revenue of &lt;b&gt;$394.3 billion&lt;/b&gt; for fiscal 2022.&lt;/p&gt;</description>
      <pubDate>Thu, 27 Oct 2022 20:30:00 +0000</pubDate>
      <author>desk@example.com</author>
    </item>
    <item>
      <title>Fed holds rates</title>
      <guid>https://news.example.com/fed</guid>
      <description>Short summary</description>
      <content:encoded><![CDATA[<p>Full article body.</p>]]></content:encoded>
    </item>
    <item>
      <title></title>
      <description></description>
    </item>
  </channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Filings</title>
  <entry>
    <title>10-K for MSFT</title>
    <link rel="self" href="https://filings.example.com/self"/>
    <link rel="alternate" href="https://filings.example.com/msft-10k"/>
    <id>urn:uuid:1</id>
    <updated>2023-07-27T16:05:00-04:00</updated>
    <summary>Annual report</summary>
    <author><name>EDGAR</name></author>
  </entry>
</feed>`

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	f, err := New(cfg, ratelimit.New(0))
	require.NoError(t, err)
	return f
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "ftp://example.com/feed", "/relative"} {
		_, err := New(Config{URL: u}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, u)
	}
}

func TestNew_Defaults(t *testing.T) {
	f, err := New(Config{URL: "https://news.example.com/rss"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "rss:news.example.com", f.Name())
	assert.Equal(t, DefaultMaxItems, f.maxItems)
	assert.Equal(t, DefaultTimeout, f.client.Timeout)
	assert.Equal(t, DefaultDelay, f.limiter.Delay())
}

func TestFetch_RSS(t *testing.T) {
	srv := serve(t, rssFeed)
	f := newFetcher(t, Config{URL: srv.URL, Name: "markets"})

	docs, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2, "empty item is dropped")

	first := docs[0]
	assert.Equal(t, "Apple beats estimates\n\nRevenue of $394.3 billion for fiscal 2022.", first.Content)
	assert.Equal(t, "rss:markets", first.Metadata.String(domain.MetaSource))
	assert.Equal(t, "https://news.example.com/apple-q4", first.Metadata.String(domain.MetaURL))
	assert.Equal(t, "Apple beats estimates", first.Metadata.String(domain.MetaTitle))
	assert.Equal(t, DocumentTypeNews, first.Metadata.String(domain.MetaType))
	assert.Equal(t, "2022-10-27T20:30:00Z", first.Metadata.String(domain.MetaDate))
	assert.Equal(t, "desk@example.com", first.Metadata.String("author"))
	assert.Equal(t, srv.URL, first.Metadata.String("feed"))

	second := docs[1]
	assert.Equal(t, "Fed holds rates\n\nFull article body.", second.Content)
	assert.Equal(t, "https://news.example.com/fed", second.Metadata.String(domain.MetaURL))
	_, hasDate := second.Metadata[domain.MetaDate]
	assert.False(t, hasDate)
}

func TestFetch_Atom(t *testing.T) {
	srv := serve(t, atomFeed)
	f := newFetcher(t, Config{URL: srv.URL})

	docs, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "10-K for MSFT\n\nAnnual report", doc.Content)
	assert.Equal(t, "https://filings.example.com/msft-10k", doc.Metadata.String(domain.MetaURL))
	assert.Equal(t, "2023-07-27T20:05:00Z", doc.Metadata.String(domain.MetaDate))
	assert.Equal(t, "EDGAR", doc.Metadata.String("author"))
}

func TestFetch_MaxItems(t *testing.T) {
	srv := serve(t, rssFeed)
	f := newFetcher(t, Config{URL: srv.URL, MaxItems: 1})

	docs, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestFetch_NotAFeed(t *testing.T) {
	srv := serve(t, `<html><body>hello</body></html>`)
	f := newFetcher(t, Config{URL: srv.URL})

	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, errUnknownFormat)
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newFetcher(t, Config{URL: srv.URL})
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetch_ThrottledSetsBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "3600")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newFetcher(t, Config{URL: srv.URL})
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load(), "second fetch waits out the backoff")
}

func TestFetch_SharedLimiter(t *testing.T) {
	srv := serve(t, rssFeed)
	shared := ratelimit.New(time.Hour)

	a, err := New(Config{URL: srv.URL + "/a"}, shared)
	require.NoError(t, err)
	b, err := New(Config{URL: srv.URL + "/b"}, shared)
	require.NoError(t, err)

	_, err = a.Fetch(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = b.Fetch(ctx)
	assert.Error(t, err, "b waits on the budget a just spent")
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Mon, 02 Jan 2006 15:04:05 -0700", "2006-01-02T22:04:05Z", true},
		{"Mon, 2 Jan 2006 15:04:05 -0700", "2006-01-02T22:04:05Z", true},
		{"2024-03-01T10:00:00Z", "2024-03-01T10:00:00Z", true},
		{"2024-03-01", "2024-03-01T00:00:00Z", true},
		{"yesterday", "", false},
		{"", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := parseDate(tc.in)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, got.UTC().Format(time.RFC3339))
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 120*time.Second, retryAfter("120"))
	assert.Equal(t, time.Duration(0), retryAfter(""))
	assert.Equal(t, time.Duration(0), retryAfter("soon"))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.InDelta(t, float64(time.Hour), float64(retryAfter(future)), float64(5*time.Second))
}

func TestParseFeed_RDF(t *testing.T) {
	rdf := `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/">
  <channel><title>Old feed</title></channel>
  <item><title>One</title><link>https://x.example.com/1</link></item>
</rdf:RDF>`
	items, err := parseFeed(strings.NewReader(rdf))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://x.example.com/1", items[0].link())
}
