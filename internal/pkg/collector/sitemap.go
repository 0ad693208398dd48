package collector

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"sitemonitor/internal/pkg/models"
)

// Search engines reject sitemaps listing more URLs or bytes than this.
const (
	maxSitemapURLs  = 50000
	maxSitemapBytes = 50 << 20
)

var ErrSitemapTooLarge = errors.New("sitemap exceeds size limit")

func sitemapURL(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + "/sitemap.xml"
}

// Validates {site}/sitemap.xml. Structural problems become issues, not errors.
type SitemapCollector struct {
	fetcher  *Fetcher
	maxBytes int64
	now      func() time.Time
}

func NewSitemapCollector(fetcher *Fetcher) *SitemapCollector {
	return &SitemapCollector{fetcher: fetcher, maxBytes: maxSitemapBytes, now: time.Now}
}

func (c *SitemapCollector) Category() models.Category {
	return models.CategorySitemap
}

func (c *SitemapCollector) Collect(ctx context.Context, siteURL string) (models.HealthCheckResult, error) {
	url := sitemapURL(siteURL)
	v := &models.SitemapValidation{URL: url, Issues: []models.SitemapIssue{}}

	page, err := c.fetcher.GetLimited(ctx, url, "application/xml", c.maxBytes)
	switch {
	case errors.Is(err, ErrUnexpectedStatus):
		v.Issues = append(v.Issues, models.SitemapIssue{
			Type:           models.IssueError,
			Message:        fmt.Sprintf("Sitemap not accessible: HTTP %d", page.StatusCode),
			Recommendation: "Check sitemap URL and server configuration",
		})
	case err != nil:
		return models.HealthCheckResult{}, err
	case page.Truncated:
		v.Issues = append(v.Issues, models.SitemapIssue{
			Type:           models.IssueError,
			Message:        fmt.Sprintf("Sitemap exceeds size limit of %d bytes", c.maxBytes),
			Recommendation: "Split the sitemap and reference the parts from a sitemap index",
		})
	default:
		v.Issues = append(v.Issues, validateSitemap(page.Body, v)...)
	}

	v.Valid = v.ErrorCount() == 0
	return models.HealthCheckResult{
		Category:  models.CategorySitemap,
		Timestamp: c.now(),
		Status:    sitemapStatus(v),
		Sitemap:   v,
	}, nil
}

func sitemapStatus(v *models.SitemapValidation) models.Status {
	switch {
	case !v.Valid:
		return models.StatusCritical
	case len(v.Issues) > 0:
		return models.StatusWarning
	default:
		return models.StatusHealthy
	}
}

// Sets v.URLCount and returns the issues found in body.
func validateSitemap(body []byte, v *models.SitemapValidation) []models.SitemapIssue {
	var issues []models.SitemapIssue

	trimmed := bytes.TrimPrefix(bytes.TrimSpace(body), []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(trimmed, []byte("<?xml")) {
		issues = append(issues, models.SitemapIssue{
			Type:           models.IssueError,
			Message:        "Invalid XML format",
			Recommendation: "Ensure sitemap starts with XML declaration",
		})
	}

	count, err := countLocs(bytes.NewReader(body))
	v.URLCount = count
	if err != nil {
		issues = append(issues, models.SitemapIssue{
			Type:           models.IssueError,
			Message:        fmt.Sprintf("Malformed XML: %v", err),
			Recommendation: "Validate the sitemap against the sitemaps.org schema",
		})
	}

	switch {
	case count == 0 && err == nil:
		issues = append(issues, models.SitemapIssue{
			Type:           models.IssueWarning,
			Message:        "Sitemap lists no URLs",
			Recommendation: "Add the site's indexable pages to the sitemap",
		})
	case count > maxSitemapURLs:
		issues = append(issues, models.SitemapIssue{
			Type:           models.IssueError,
			Message:        fmt.Sprintf("Sitemap lists %d URLs, more than %d", count, maxSitemapURLs),
			Recommendation: "Split the sitemap and reference the parts from a sitemap index",
		})
	}
	return issues
}

// Counts <loc> elements. Counts seen before a syntax error are kept.
func countLocs(r io.Reader) (int, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	count := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "loc" {
			count++
		}
	}
}

// Returns the number of URLs listed in the site's sitemap.
func CountSitemapURLs(ctx context.Context, fetcher *Fetcher, siteURL string) (int, error) {
	page, err := fetcher.GetLimited(ctx, sitemapURL(siteURL), "application/xml", maxSitemapBytes)
	if err != nil {
		return 0, err
	}
	if page.Truncated {
		return 0, fmt.Errorf("%w: more than %d bytes", ErrSitemapTooLarge, int64(maxSitemapBytes))
	}
	return countLocs(bytes.NewReader(page.Body))
}
