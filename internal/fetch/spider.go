package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

// spiderCountries is the pool the scrape API rotates exit locale through.
var spiderCountries = []string{"us", "gb", "ca", "in"}

// Spider is the primary fetch strategy: a remote scrape API that handles
// anti-bot measures server-side.
type Spider struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
}

func NewSpider(endpoint, apiKey string, timeout time.Duration, logger *zap.Logger) *Spider {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json")
	return &Spider{
		client:   client,
		endpoint: endpoint,
		logger:   logger.Named("spider"),
	}
}

func (s *Spider) Name() string { return "spider" }

type spiderRequest struct {
	URL          string `json:"url"`
	Limit        int    `json:"limit"`
	ReturnFormat string `json:"return_format"`
	Request      string `json:"request"`
	CountryCode  string `json:"country_code"`
	AntiBot      bool   `json:"anti_bot"`
	Stealth      bool   `json:"stealth"`
	PremiumProxy bool   `json:"premium_proxy"`
}

type spiderPage struct {
	Status  int    `json:"status"`
	Content string `json:"content"`
}

// FetchHTML requests one page. Only a 200 page status with non-empty content
// is accepted; everything else is an error so the caller can fall back.
func (s *Spider) FetchHTML(ctx context.Context, url string) (string, error) {
	req := spiderRequest{
		URL:          url,
		Limit:        1,
		ReturnFormat: "raw",
		Request:      "http",
		CountryCode:  spiderCountries[rand.IntN(len(spiderCountries))],
		AntiBot:      true,
		Stealth:      true,
		PremiumProxy: true,
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("spider request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("spider returned status %d", resp.StatusCode())
	}

	var pages []spiderPage
	if err := json.Unmarshal(resp.Body(), &pages); err != nil {
		return "", fmt.Errorf("decode spider response: %w", err)
	}
	if len(pages) == 0 {
		return "", pipeline.ErrNoContent
	}
	page := pages[0]
	if page.Status != 200 {
		return "", fmt.Errorf("spider page status %d", page.Status)
	}
	if strings.TrimSpace(page.Content) == "" {
		return "", pipeline.ErrNoContent
	}

	s.logger.Debug("spider fetch ok",
		zap.String("url", url),
		zap.String("country", req.CountryCode),
		zap.Int("bytes", len(page.Content)))
	return page.Content, nil
}
