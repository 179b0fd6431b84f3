// Package pricing retrieves a provider's public pricing page, extracts and
// ranks candidate text passages, and resolves the ten canonical tariff
// metrics from them with citations and recorded assumptions.
package pricing

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/sells-group/bikepass-cli/internal/model"
)

// Browser-looking UA; several bike-share pricing pages refuse generic bots.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:115.0) Gecko/20100101 Firefox/115.0"

// FetcherOptions configures the pricing-page fetcher.
type FetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
	Limiter   *rate.Limiter
}

// Fetcher performs the single pricing-page GET of a run.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewFetcher creates a Fetcher. The default timeout is 20s; exceeding it is
// treated the same as a network failure.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(2, 2)
	}
	return &Fetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		limiter:   limiter,
	}
}

// Fetch downloads the page and returns its body decoded to UTF-8. Any
// network error, timeout, or non-2xx status is a FetchError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", &model.FetchError{URL: pageURL, Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &model.FetchError{URL: pageURL, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &model.FetchError{URL: pageURL, Reason: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &model.FetchError{
			URL:    pageURL,
			Status: resp.StatusCode,
			Reason: "failed to fetch pricing page",
		}
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", &model.FetchError{URL: pageURL, Reason: "decode charset: " + err.Error()}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", &model.FetchError{URL: pageURL, Reason: "read body: " + err.Error()}
	}

	zap.L().Debug("pricing: fetched page",
		zap.String("url", pageURL),
		zap.Int("bytes", len(body)),
	)
	return string(body), nil
}
