package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

const directUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Direct is the plain HTTP strategy, used as primary when no scrape API key
// is configured. Each fetch runs on a clone of the base collector so hooks
// never leak between requests.
type Direct struct {
	base   *colly.Collector
	logger *zap.Logger
}

func NewDirect(timeout time.Duration, logger *zap.Logger) *Direct {
	c := colly.NewCollector(
		colly.UserAgent(directUserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	return &Direct{base: c, logger: logger.Named("direct")}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) FetchHTML(ctx context.Context, url string) (string, error) {
	col := d.base.Clone()
	// The outbound request shares the caller's context, so cancellation
	// aborts the transfer instead of orphaning it until the timeout.
	col.Context = ctx

	var body []byte
	var fetchErr error
	col.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	col.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := col.Visit(url); err != nil && fetchErr == nil {
			fetchErr = err
		}
		col.Wait()
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-done:
	}

	if fetchErr != nil {
		return "", fmt.Errorf("direct fetch %s: %w", url, fetchErr)
	}
	if len(body) == 0 {
		return "", pipeline.ErrNoContent
	}
	return string(body), nil
}
