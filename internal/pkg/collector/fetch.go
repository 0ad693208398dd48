package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
)

// Default upper bound on a fetched body. Larger responses are truncated.
const maxBodyBytes = 5 << 20

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// A fetched resource. Truncated is set when the body hit the read limit.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Truncated  bool
}

// Performs GET requests against the monitored site.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.FetchTimeout},
		userAgent: cfg.UserAgent,
	}
}

// Fetches url. A non-2xx response returns both the page and an error
// wrapping ErrUnexpectedStatus so callers can still inspect it.
func (f *Fetcher) Get(ctx context.Context, url, accept string) (*Page, error) {
	return f.GetLimited(ctx, url, accept, maxBodyBytes)
}

// Like Get, reading at most limit bytes of the body.
func (f *Fetcher) GetLimited(ctx context.Context, url, accept string, limit int64) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	page := &Page{URL: url, StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if int64(len(body)) > limit {
		page.Body = body[:limit]
		page.Truncated = true
		logger.Log.Warn("Response body exceeds read limit", zap.String("url", url), zap.Int64("limit", limit))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Log.Debug("Non-2xx response", zap.String("url", url), zap.Int("status_code", resp.StatusCode))
		return page, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, url)
	}
	return page, nil
}
