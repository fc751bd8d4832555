// Package crawl implements the bounded breadth-first frontier crawler. Fetch
// operations run on a bounded goroutine pool; the visited set and frontier
// queue are touched only by the coordinating goroutine.
package crawl

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/fetch"
	"github.com/sourcehr/engine/internal/metrics"
	"github.com/sourcehr/engine/internal/pipeline"
)

// LinkSource is the slice of the page fetcher the crawler needs.
type LinkSource interface {
	FetchLinks(ctx context.Context, url string) ([]string, error)
}

type Crawler struct {
	fetcher LinkSource
	workers int
	limiter *hostLimiter
	skip    *skipList
	logger  *zap.Logger
}

// Option configures optional crawler behavior.
type Option func(*Crawler)

// WithRateLimit caps fetches per host at rps with the given burst. rps <= 0
// leaves the crawler unthrottled.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Crawler) { c.limiter = newHostLimiter(rps, burst) }
}

// WithSkipPatterns adds URL patterns to the frontier skip list on top of the
// built-in binary-asset extensions. A leading-dot pattern without a slash is
// treated as an extension, anything else as a substring match.
func WithSkipPatterns(patterns []string) Option {
	return func(c *Crawler) { c.skip = newSkipList(patterns) }
}

func New(fetcher LinkSource, workers int, logger *zap.Logger, opts ...Option) *Crawler {
	if workers <= 0 {
		workers = 5
	}
	c := &Crawler{fetcher: fetcher, workers: workers, logger: logger.Named("crawler")}
	for _, opt := range opts {
		opt(c)
	}
	if c.skip == nil {
		c.skip = newSkipList(nil)
	}
	return c
}

type node struct {
	url   string
	depth int
}

type fetchResult struct {
	node  node
	links []string
	err   error
}

// Crawl traverses rootURL breadth-first, restricted to the root's exact
// network location, bounded by maxDepth and maxURLs. Failed fetches skip the
// node without consuming budget. Returns the visited URLs; ordering is not
// guaranteed across runs.
func (c *Crawler) Crawl(ctx context.Context, rootURL string, maxDepth, maxURLs int) ([]string, error) {
	root, err := url.Parse(rootURL)
	if err != nil || root.Host == "" {
		return nil, &pipeline.FetchError{URL: rootURL, Err: err}
	}
	if maxURLs <= 0 {
		return nil, nil
	}

	visited := make(map[string]struct{})
	dispatched := make(map[string]struct{})
	frontier := []node{{url: rootURL, depth: 0}}
	results := make(chan fetchResult)
	inflight := 0

	for {
		// Dispatch while pool slots and budget allow.
		for inflight < c.workers && len(frontier) > 0 && len(visited) < maxURLs {
			n := frontier[0]
			frontier = frontier[1:]
			if _, ok := visited[n.url]; ok {
				continue
			}
			if n.depth > maxDepth {
				continue
			}
			if _, ok := dispatched[n.url]; ok {
				continue
			}
			dispatched[n.url] = struct{}{}
			inflight++
			go func(n node) {
				if c.limiter != nil {
					if err := c.limiter.Wait(ctx, n.url); err != nil {
						select {
						case results <- fetchResult{node: n, err: err}:
						case <-ctx.Done():
						}
						return
					}
				}
				links, err := c.fetcher.FetchLinks(ctx, n.url)
				select {
				case results <- fetchResult{node: n, links: links, err: err}:
				case <-ctx.Done():
				}
			}(n)
		}

		if inflight == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return collect(visited), ctx.Err()
		case res := <-results:
			inflight--
			if res.err != nil {
				// Skipped, not visited: the node does not consume budget.
				if metrics.CrawlFetchFailures != nil {
					metrics.CrawlFetchFailures.Inc()
				}
				c.logger.Warn("frontier fetch failed, skipping node",
					zap.String("url", res.node.url),
					zap.Int("depth", res.node.depth),
					zap.Error(res.err))
				continue
			}
			if len(visited) >= maxURLs {
				continue
			}
			visited[res.node.url] = struct{}{}
			if metrics.CrawlPagesVisited != nil {
				metrics.CrawlPagesVisited.Inc()
			}

			if res.node.depth >= maxDepth {
				continue
			}
			for _, link := range res.links {
				if !fetch.SameDomain(link, rootURL) {
					continue
				}
				if c.skip.Skip(link) {
					continue
				}
				if _, ok := visited[link]; ok {
					continue
				}
				if _, ok := dispatched[link]; ok {
					continue
				}
				if len(visited)+len(frontier) >= maxURLs {
					break
				}
				frontier = append(frontier, node{url: link, depth: res.node.depth + 1})
			}
		}
	}

	c.logger.Info("crawl finished",
		zap.String("root", rootURL),
		zap.Int("visited", len(visited)),
		zap.Int("max_urls", maxURLs),
		zap.Int("max_depth", maxDepth))
	return collect(visited), nil
}

func collect(visited map[string]struct{}) []string {
	urls := make([]string, 0, len(visited))
	for u := range visited {
		urls = append(urls, u)
	}
	return urls
}
