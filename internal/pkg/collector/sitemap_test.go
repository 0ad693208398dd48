package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemonitor/internal/pkg/models"
)

func collectSitemap(t *testing.T, status int, body string) models.HealthCheckResult {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	cfg := testConfig()
	res, err := NewSitemapCollector(NewFetcher(cfg)).Collect(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.NotNil(t, res.Sitemap)
	assert.Equal(t, server.URL+"/sitemap.xml", res.Sitemap.URL)
	return res
}

func TestSitemapValid(t *testing.T) {
	res := collectSitemap(t, http.StatusOK, sitemapBody)
	assert.True(t, res.Sitemap.Valid)
	assert.Equal(t, 3, res.Sitemap.URLCount)
	assert.Empty(t, res.Sitemap.Issues)
	assert.Equal(t, models.StatusHealthy, res.Status)
}

func TestSitemapMissingDeclaration(t *testing.T) {
	body := strings.TrimPrefix(sitemapBody, `<?xml version="1.0" encoding="UTF-8"?>`)
	res := collectSitemap(t, http.StatusOK, body)
	assert.False(t, res.Sitemap.Valid)
	assert.Equal(t, 3, res.Sitemap.URLCount)
	require.Len(t, res.Sitemap.Issues, 1)
	assert.Equal(t, "Invalid XML format", res.Sitemap.Issues[0].Message)
}

func TestSitemapNotAccessible(t *testing.T) {
	res := collectSitemap(t, http.StatusInternalServerError, "oops")
	assert.False(t, res.Sitemap.Valid)
	require.Len(t, res.Sitemap.Issues, 1)
	assert.Equal(t, "Sitemap not accessible: HTTP 500", res.Sitemap.Issues[0].Message)
	assert.Equal(t, models.StatusCritical, res.Status)
}

func TestSitemapMalformed(t *testing.T) {
	res := collectSitemap(t, http.StatusOK, `<?xml version="1.0"?><urlset><url><loc>https://example.nl/</loc></url>`)
	assert.False(t, res.Sitemap.Valid)
	assert.Equal(t, 1, res.Sitemap.URLCount)
	assert.Equal(t, 1, res.Sitemap.ErrorCount())
}

func TestSitemapEmptyIsValidWithWarning(t *testing.T) {
	res := collectSitemap(t, http.StatusOK, `<?xml version="1.0"?><urlset></urlset>`)
	assert.True(t, res.Sitemap.Valid)
	require.Len(t, res.Sitemap.Issues, 1)
	assert.Equal(t, models.IssueWarning, res.Sitemap.Issues[0].Type)
	assert.Equal(t, models.StatusWarning, res.Status)
}

func TestCountSitemapURLs(t *testing.T) {
	server := siteServer(t, "", "", sitemapBody)
	cfg := testConfig()

	n, err := CountSitemapURLs(context.Background(), NewFetcher(cfg), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestFetcherReportsStatus(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	cfg := testConfig()
	page, err := NewFetcher(cfg).Get(context.Background(), server.URL, "")
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	require.NotNil(t, page)
	assert.Equal(t, http.StatusGone, page.StatusCode)
	assert.Equal(t, cfg.UserAgent, gotAgent)
}

func largeSitemap(urls int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for i := 0; i < urls; i++ {
		fmt.Fprintf(&b, "<url><loc>https://example.nl/products/item-%06d/details</loc><lastmod>2026-10-01</lastmod><changefreq>weekly</changefreq><priority>0.8</priority></url>\n", i)
	}
	b.WriteString("</urlset>\n")
	return b.String()
}

func sitemapServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSitemapLargerThanDefaultBodyLimit(t *testing.T) {
	body := largeSitemap(45000)
	require.Greater(t, len(body), maxBodyBytes)

	server := sitemapServer(t, body)
	cfg := testConfig()
	cfg.FetchTimeout = 10 * time.Second
	fetcher := NewFetcher(cfg)

	res, err := NewSitemapCollector(fetcher).Collect(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, res.Sitemap.Valid)
	assert.Equal(t, 45000, res.Sitemap.URLCount)
	assert.Empty(t, res.Sitemap.Issues)

	n, err := CountSitemapURLs(context.Background(), fetcher, server.URL)
	require.NoError(t, err)
	assert.Equal(t, 45000, n)
}

func TestSitemapOverSizeLimit(t *testing.T) {
	server := sitemapServer(t, largeSitemap(100))

	c := NewSitemapCollector(NewFetcher(testConfig()))
	c.maxBytes = 1024

	res, err := c.Collect(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, res.Sitemap.Valid)
	require.Len(t, res.Sitemap.Issues, 1)
	assert.Equal(t, "Sitemap exceeds size limit of 1024 bytes", res.Sitemap.Issues[0].Message)
	assert.NotContains(t, res.Sitemap.Issues[0].Message, "Malformed")
}

func TestFetcherFlagsTruncatedBody(t *testing.T) {
	server := sitemapServer(t, strings.Repeat("x", 100))
	fetcher := NewFetcher(testConfig())

	page, err := fetcher.GetLimited(context.Background(), server.URL, "", 64)
	require.NoError(t, err)
	assert.True(t, page.Truncated)
	assert.Len(t, page.Body, 64)

	page, err = fetcher.GetLimited(context.Background(), server.URL, "", 100)
	require.NoError(t, err)
	assert.False(t, page.Truncated)
	assert.Len(t, page.Body, 100)
}
