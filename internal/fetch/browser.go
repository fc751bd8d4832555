package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// blockedResourcePatterns keeps image/media/font sub-resources from loading.
// Pages render enough for text and anchors without them.
var blockedResourcePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.webp", "*.ico",
	"*.mp4", "*.webm", "*.mp3", "*.wav",
	"*.woff", "*.woff2", "*.ttf", "*.otf",
}

// BrowserOptions configures the headless fallback.
type BrowserOptions struct {
	// RemoteURL is the CDP websocket endpoint, e.g. ws://browserless:3000.
	RemoteURL string
	// ConnectRetries bounds remote connection attempts per session.
	ConnectRetries int
	// Backoff between attempts is min(attempt*BackoffStep, BackoffCap).
	BackoffStep time.Duration
	BackoffCap  time.Duration
	// NavTimeout bounds a single page navigation including DOM-ready wait.
	NavTimeout time.Duration
	// LocalFallback permits launching a local headless Chrome when the
	// remote endpoint is unreachable. Off unless explicitly enabled.
	LocalFallback bool
}

// Browser is one pooled headless session. The underlying allocator is opened
// lazily on first use and reused for every page in the same run; Close
// releases it. A Browser must not be shared across unrelated crawl runs.
type Browser struct {
	opts   BrowserOptions
	logger *zap.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewBrowser(opts BrowserOptions, logger *zap.Logger) *Browser {
	if opts.ConnectRetries <= 0 {
		opts.ConnectRetries = 3
	}
	if opts.BackoffStep <= 0 {
		opts.BackoffStep = 5 * time.Second
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 20 * time.Second
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	return &Browser{opts: opts, logger: logger.Named("browser")}
}

// HTML navigates to url and returns the rendered document.
func (b *Browser) HTML(ctx context.Context, url string) (string, error) {
	var out string
	err := b.run(ctx, url, chromedp.OuterHTML("html", &out, chromedp.ByQuery))
	if err != nil {
		return "", err
	}
	return out, nil
}

// Links navigates to url and returns every anchor href as the browser
// resolved it.
func (b *Browser) Links(ctx context.Context, url string) ([]string, error) {
	var hrefs []string
	err := b.run(ctx, url,
		chromedp.Evaluate(`Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`, &hrefs))
	if err != nil {
		return nil, err
	}
	return hrefs, nil
}

// Close releases the allocator. Safe to call without a prior fetch and more
// than once.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCtx = nil
		b.allocCancel = nil
	}
}

func (b *Browser) run(ctx context.Context, url string, extract chromedp.Action) error {
	alloc, err := b.allocator(ctx)
	if err != nil {
		return err
	}

	tabCtx, cancel := chromedp.NewContext(alloc)
	defer cancel()
	runCtx, rcancel := context.WithTimeout(tabCtx, b.opts.NavTimeout)
	defer rcancel()

	actions := []chromedp.Action{
		network.Enable(),
		network.SetBlockedURLs(blockedResourcePatterns),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		extract,
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("browser navigate %s: %w", url, err)
	}
	return nil
}

// allocator returns the pooled allocator, establishing it if needed: remote
// endpoint first with bounded retries and linear capped backoff, then a
// local headless launch when permitted.
func (b *Browser) allocator(ctx context.Context) (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allocCtx != nil && b.allocCtx.Err() == nil {
		return b.allocCtx, nil
	}

	if b.opts.RemoteURL != "" {
		var lastErr error
		for attempt := 1; attempt <= b.opts.ConnectRetries; attempt++ {
			alloc, cancel := chromedp.NewRemoteAllocator(context.Background(), b.opts.RemoteURL)
			if err := b.probe(alloc); err == nil {
				b.logger.Info("connected to remote browser",
					zap.String("endpoint", b.opts.RemoteURL),
					zap.Int("attempt", attempt))
				b.allocCtx = alloc
				b.allocCancel = cancel
				return alloc, nil
			} else {
				lastErr = err
				cancel()
				b.logger.Warn("remote browser connection failed",
					zap.Int("attempt", attempt),
					zap.Error(err))
			}

			if attempt < b.opts.ConnectRetries {
				backoff := min(time.Duration(attempt)*b.opts.BackoffStep, b.opts.BackoffCap)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
			}
		}
		if !b.opts.LocalFallback {
			return nil, fmt.Errorf("remote browser unreachable after %d attempts: %w",
				b.opts.ConnectRetries, lastErr)
		}
		b.logger.Warn("remote browser unreachable, launching local instance", zap.Error(lastErr))
	} else if !b.opts.LocalFallback {
		return nil, errors.New("no remote browser endpoint configured and local fallback disabled")
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	alloc, cancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	b.allocCtx = alloc
	b.allocCancel = cancel
	return alloc, nil
}

// probe opens and closes a throwaway tab to verify the connection actually
// works before the allocator is kept.
func (b *Browser) probe(alloc context.Context) error {
	tab, cancel := chromedp.NewContext(alloc)
	defer cancel()
	probeCtx, pcancel := context.WithTimeout(tab, 10*time.Second)
	defer pcancel()
	return chromedp.Run(probeCtx)
}
