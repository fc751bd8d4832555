// Package fetch implements the dual-strategy page fetcher: a primary remote
// scrape API (or plain HTTP when unconfigured) with a pooled
// headless-browser fallback.
package fetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/metrics"
	"github.com/sourcehr/engine/internal/pipeline"
)

// Fetcher composes the primary strategy with the browser fallback.
type Fetcher struct {
	primary pipeline.FetchStrategy
	browser pipeline.BrowserSession
	logger  *zap.Logger
}

func New(primary pipeline.FetchStrategy, browser pipeline.BrowserSession, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		primary: primary,
		browser: browser,
		logger:  logger.Named("fetcher"),
	}
}

// FetchPage returns raw HTML for url. Primary strategy first; any failure or
// empty body falls through to the browser. Exhausting both yields a
// *pipeline.FetchError.
func (f *Fetcher) FetchPage(ctx context.Context, url string) (string, error) {
	start := time.Now()
	html, err := f.primary.FetchHTML(ctx, url)
	metrics.ObserveFetch(f.primary.Name(), time.Since(start), err)
	if err == nil && strings.TrimSpace(html) != "" {
		return html, nil
	}
	if err == nil {
		err = pipeline.ErrNoContent
	}
	f.logger.Debug("primary fetch failed, trying browser",
		zap.String("url", url),
		zap.String("strategy", f.primary.Name()),
		zap.Error(err))

	start = time.Now()
	html, berr := f.browser.HTML(ctx, url)
	metrics.ObserveFetch("browser", time.Since(start), berr)
	if berr != nil {
		return "", &pipeline.FetchError{URL: url, Err: errors.Join(err, berr)}
	}
	if strings.TrimSpace(html) == "" {
		return "", &pipeline.FetchError{URL: url, Err: pipeline.ErrNoContent}
	}
	return html, nil
}

// FetchLinks returns the absolute anchor hrefs on the page. The primary
// strategy's HTML is parsed locally; if that path fails the browser extracts
// hrefs directly from the live DOM.
func (f *Fetcher) FetchLinks(ctx context.Context, url string) ([]string, error) {
	start := time.Now()
	html, err := f.primary.FetchHTML(ctx, url)
	metrics.ObserveFetch(f.primary.Name(), time.Since(start), err)
	if err == nil && strings.TrimSpace(html) != "" {
		links, perr := ExtractAnchors(html, url)
		if perr == nil {
			return links, nil
		}
		err = perr
	} else if err == nil {
		err = pipeline.ErrNoContent
	}
	f.logger.Debug("primary link discovery failed, trying browser",
		zap.String("url", url),
		zap.Error(err))

	start = time.Now()
	links, berr := f.browser.Links(ctx, url)
	metrics.ObserveFetch("browser", time.Since(start), berr)
	if berr != nil {
		return nil, &pipeline.FetchError{URL: url, Err: errors.Join(err, berr)}
	}
	return links, nil
}

// Close releases the pooled browser session.
func (f *Fetcher) Close() {
	f.browser.Close()
}
