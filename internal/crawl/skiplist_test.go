package crawl

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSkipListExtensions(t *testing.T) {
	t.Parallel()

	s := newSkipList(nil)
	assert.True(t, s.Skip("https://example.com/report.pdf"))
	assert.True(t, s.Skip("https://example.com/logo.PNG"))
	assert.True(t, s.Skip("https://example.com/bundle.min.js"))
	assert.False(t, s.Skip("https://example.com/report"))
	assert.False(t, s.Skip("https://example.com/report.html"))
}

func TestSkipListCustomPatterns(t *testing.T) {
	t.Parallel()

	s := newSkipList([]string{".csv", "/admin/", "Logout"})
	assert.True(t, s.Skip("https://example.com/data.csv"))
	assert.True(t, s.Skip("https://example.com/admin/users"))
	assert.True(t, s.Skip("https://example.com/logout?next=home"), "patterns match case-insensitively")
	assert.False(t, s.Skip("https://example.com/administer"))
}

func TestCrawlSkipsBinaryAssets(t *testing.T) {
	t.Parallel()

	root := "https://example.com"
	graph := map[string][]string{
		root: {
			"https://example.com/page",
			"https://example.com/report.pdf",
			"https://example.com/logo.png",
		},
		"https://example.com/page": nil,
	}

	c := New(&graphFetcher{graph: graph}, 2, zap.NewNop())
	urls, err := c.Crawl(context.Background(), root, 2, 50)
	require.NoError(t, err)

	sort.Strings(urls)
	assert.Equal(t, []string{root, "https://example.com/page"}, urls)
}

func TestHostLimiterThrottles(t *testing.T) {
	t.Parallel()

	// 1 token up front, then one every 50ms.
	l := newHostLimiter(20, 1)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://example.com/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://example.com/b"))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestHostLimiterPerHostBuckets(t *testing.T) {
	t.Parallel()

	l := newHostLimiter(1, 1)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://one.example.com/"))
	// A different host draws from its own bucket and is not delayed.
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://two.example.com/"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestHostLimiterUnlimited(t *testing.T) {
	t.Parallel()

	l := newHostLimiter(0, 0)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "https://example.com/"))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestHostLimiterCancelledContext(t *testing.T) {
	t.Parallel()

	l := newHostLimiter(0.001, 1)
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://example.com/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "https://example.com/"))
}
