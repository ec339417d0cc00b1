package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

func TestWatch_NothingToWatch(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "watch")
	assert.EqualError(t, err, "nothing to watch: give a directory or --feeds")
}

func TestWatch_FeedsNotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "watch", "--feeds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no feeds configured")
}

func TestFeedFetchers(t *testing.T) {
	fetchers, err := feedFetchers(domain.FeedSettings{
		URLs:  []string{"https://www.sec.gov/feed.xml", "https://example.com/news.rss"},
		Delay: time.Second,
	})
	require.NoError(t, err)
	require.Len(t, fetchers, 2)
	assert.Equal(t, "rss:www.sec.gov", fetchers[0].Name())
	assert.Equal(t, "rss:example.com", fetchers[1].Name())
}

func TestFeedFetchers_InvalidURL(t *testing.T) {
	_, err := feedFetchers(domain.FeedSettings{URLs: []string{"ftp://example.com/feed"}})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
