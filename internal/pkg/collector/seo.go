package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/models"
	"sitemonitor/internal/pkg/vitals"
)

// Sub-score weights, summing to 100.
const (
	seoWeightMeta           = 20
	seoWeightStructuredData = 15
	seoWeightPerformance    = 25
	seoWeightIndexability   = 20
	seoWeightCanonical      = 10
	seoWeightSocial         = 10
)

// SEO issue codes.
const (
	IssueMissingTitle       = "missing-title"
	IssueMissingDescription = "missing-meta-description"
	IssueNoindex            = "noindex-detected"
	IssueCanonicalMissing   = "canonical-missing"
	IssueRobotsBlocked      = "robots-blocked"
	IssueStructuredData     = "structured-data-invalid"
	IssueLanguageMismatch   = "language-mismatch"
)

// Fetches the home page plus robots.txt and sitemap.xml and scores the
// signals search engines read.
type SEOCollector struct {
	fetcher          *Fetcher
	vitals           VitalsReader
	detector         LanguageDetector
	expectedLanguage string
	now              func() time.Time
}

// detector may be nil to skip the content-language check.
func NewSEOCollector(cfg *config.Config, fetcher *Fetcher, store VitalsReader, detector LanguageDetector) *SEOCollector {
	return &SEOCollector{
		fetcher:          fetcher,
		vitals:           store,
		detector:         detector,
		expectedLanguage: strings.ToLower(cfg.ExpectedLanguage),
		now:              time.Now,
	}
}

func (c *SEOCollector) Category() models.Category {
	return models.CategorySEO
}

// Only a failure to reach the page at all is an error. Every other missing
// signal scores zero for its sub-weight.
func (c *SEOCollector) Collect(ctx context.Context, siteURL string) (models.HealthCheckResult, error) {
	page, err := c.fetcher.Get(ctx, siteURL, "text/html")
	if err != nil && !errors.Is(err, ErrUnexpectedStatus) {
		return models.HealthCheckResult{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return models.HealthCheckResult{}, fmt.Errorf("parse %s: %w", siteURL, err)
	}

	health := &models.SEOHealth{URL: siteURL}
	checks := &health.Checks
	checks.MetaTags = metaTags(doc)
	checks.StructuredData = structuredData(doc)
	checks.Performance = c.performance()
	checks.Canonicalization = canonicalization(doc, siteURL)
	checks.SocialSharing = socialSharing(doc)
	checks.Indexability = models.Indexability{
		RobotsAllowed:    c.robotsAllowed(ctx, siteURL),
		NoindexPresent:   noindex(doc, page),
		CanonicalCorrect: checks.Canonicalization.IsCanonicalCorrect,
		SitemapPresent:   c.sitemapPresent(ctx, siteURL),
		HTTPStatus:       page.StatusCode,
	}

	var languageIssue *models.SEOIssue
	if c.detector != nil && c.expectedLanguage != "" {
		if lang, ok := c.detector.Detect(visibleText(doc)); ok {
			checks.Language = lang
			if lang != c.expectedLanguage {
				languageIssue = &models.SEOIssue{
					Code:    IssueLanguageMismatch,
					Type:    models.IssueWarning,
					Message: fmt.Sprintf("Page content is %q, expected %q", lang, c.expectedLanguage),
				}
			}
		}
	}

	health.Score = ScoreSEO(*checks)
	health.Issues = seoIssues(*checks)
	if languageIssue != nil {
		health.Issues = append(health.Issues, *languageIssue)
	}

	logger.Log.Debug("SEO check finished",
		zap.String("site_url", siteURL),
		zap.Int("score", health.Score),
		zap.Int("issues", len(health.Issues)))

	return models.HealthCheckResult{
		Category:  models.CategorySEO,
		Timestamp: c.now(),
		Status:    seoStatus(health.Score),
		SEO:       health,
	}, nil
}

func seoStatus(score int) models.Status {
	switch {
	case score >= 80:
		return models.StatusHealthy
	case score >= 50:
		return models.StatusWarning
	default:
		return models.StatusCritical
	}
}

// Combines the sub-checks into a 0-100 score.
func ScoreSEO(checks models.SEOChecks) int {
	score := 0.0

	m := checks.MetaTags
	score += fraction(m.Title, m.Description, m.Keywords, m.Robots, m.Canonical, m.Hreflang, m.OpenGraph, m.TwitterCard) * seoWeightMeta

	if checks.StructuredData.Valid {
		score += seoWeightStructuredData
	}

	if p := checks.Performance; p.Available {
		score += (ratingPoints(p.LCP.Rating) + ratingPoints(p.FID.Rating) + ratingPoints(p.CLS.Rating)) / 3 * seoWeightPerformance
	}

	i := checks.Indexability
	score += fraction(i.RobotsAllowed, !i.NoindexPresent, i.CanonicalCorrect, i.SitemapPresent, i.HTTPStatus == 200) * seoWeightIndexability

	if checks.Canonicalization.IsCanonicalCorrect {
		score += seoWeightCanonical
	}

	og, tw := checks.SocialSharing.OpenGraph, checks.SocialSharing.Twitter
	social := (fraction(og.Title, og.Description, og.Image, og.URL, og.Type) + fraction(tw.Card, tw.Title, tw.Description, tw.Image)) / 2
	score += social * seoWeightSocial

	return int(math.Round(score))
}

func fraction(flags ...bool) float64 {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return float64(n) / float64(len(flags))
}

func ratingPoints(r models.Rating) float64 {
	switch r {
	case models.RatingGood:
		return 1
	case models.RatingNeedsImprovement:
		return 0.5
	default:
		return 0
	}
}

func seoIssues(checks models.SEOChecks) []models.SEOIssue {
	issues := []models.SEOIssue{}
	add := func(code, typ, msg string) {
		issues = append(issues, models.SEOIssue{Code: code, Type: typ, Message: msg})
	}

	if !checks.MetaTags.Title {
		add(IssueMissingTitle, models.IssueError, "Page has no <title>")
	}
	if !checks.MetaTags.Description {
		add(IssueMissingDescription, models.IssueError, "Page has no meta description")
	}
	if checks.Indexability.NoindexPresent {
		add(IssueNoindex, models.IssueError, "Page is marked noindex")
	}
	if !checks.Canonicalization.HasCanonical {
		add(IssueCanonicalMissing, models.IssueWarning, "Page has no canonical link")
	}
	if !checks.Indexability.RobotsAllowed {
		add(IssueRobotsBlocked, models.IssueError, "robots.txt blocks crawlers from the site root")
	}
	if checks.StructuredData.Present && !checks.StructuredData.Valid {
		add(IssueStructuredData, models.IssueWarning, "JSON-LD structured data has errors: "+strings.Join(checks.StructuredData.Errors, "; "))
	}
	return issues
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

func metaTags(doc *goquery.Document) models.MetaTags {
	return models.MetaTags{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()) != "",
		Description: metaContent(doc, `meta[name="description"]`) != "",
		Keywords:    metaContent(doc, `meta[name="keywords"]`) != "",
		Robots:      metaContent(doc, `meta[name="robots"]`) != "",
		Canonical:   doc.Find(`link[rel="canonical"]`).Length() > 0,
		Hreflang:    doc.Find(`link[rel="alternate"][hreflang]`).Length() > 0,
		OpenGraph:   doc.Find(`meta[property^="og:"]`).Length() > 0,
		TwitterCard: doc.Find(`meta[name^="twitter:"]`).Length() > 0,
	}
}

func socialSharing(doc *goquery.Document) models.SocialSharing {
	og := func(p string) bool { return metaContent(doc, `meta[property="og:`+p+`"]`) != "" }
	tw := func(n string) bool { return metaContent(doc, `meta[name="twitter:`+n+`"]`) != "" }
	return models.SocialSharing{
		OpenGraph: models.OpenGraphTags{
			Title: og("title"), Description: og("description"), Image: og("image"), URL: og("url"), Type: og("type"),
		},
		Twitter: models.TwitterTags{
			Card: tw("card"), Title: tw("title"), Description: tw("description"), Image: tw("image"),
		},
	}
}

// Valid means every JSON-LD block parses and every item declares an @type.
func structuredData(doc *goquery.Document) models.StructuredDataCheck {
	check := models.StructuredDataCheck{Types: []string{}}

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		check.Present = true
		var raw interface{}
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			check.Errors = append(check.Errors, fmt.Sprintf("block %d: %v", i, err))
			return
		}
		for _, item := range ldItems(raw) {
			typ, ok := item["@type"]
			if !ok {
				check.Errors = append(check.Errors, fmt.Sprintf("block %d: item without @type", i))
				continue
			}
			switch t := typ.(type) {
			case string:
				check.Types = append(check.Types, t)
			case []interface{}:
				for _, v := range t {
					if s, ok := v.(string); ok {
						check.Types = append(check.Types, s)
					}
				}
			}
		}
	})

	check.Valid = check.Present && len(check.Errors) == 0
	return check
}

// Flattens a JSON-LD value into its top-level items, expanding @graph.
func ldItems(v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		var out []map[string]interface{}
		for _, x := range t {
			out = append(out, ldItems(x)...)
		}
		return out
	case map[string]interface{}:
		if graph, ok := t["@graph"].([]interface{}); ok {
			return ldItems(graph)
		}
		return []map[string]interface{}{t}
	}
	return nil
}

func (c *SEOCollector) performance() models.SEOPerformance {
	if c.vitals == nil {
		return models.SEOPerformance{}
	}
	avg, ok := c.vitals.Average("", c.now().Add(-vitals.Window))
	if !ok {
		return models.SEOPerformance{}
	}
	return models.SEOPerformance{
		Available: true,
		LCP:       models.MetricRating{Value: avg.LCP, Rating: c.vitals.Rate(vitals.LCP, avg.LCP)},
		FID:       models.MetricRating{Value: avg.FID, Rating: c.vitals.Rate(vitals.FID, avg.FID)},
		CLS:       models.MetricRating{Value: avg.CLS, Rating: c.vitals.Rate(vitals.CLS, avg.CLS)},
	}
}

func canonicalization(doc *goquery.Document, siteURL string) models.Canonicalization {
	href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return models.Canonicalization{}
	}
	resolved := resolve(siteURL, href)
	return models.Canonicalization{
		HasCanonical:       true,
		CanonicalURL:       resolved,
		IsCanonicalCorrect: sameURL(resolved, siteURL),
	}
}

func noindex(doc *goquery.Document, page *Page) bool {
	if strings.Contains(strings.ToLower(page.Header.Get("X-Robots-Tag")), "noindex") {
		return true
	}
	return strings.Contains(strings.ToLower(metaContent(doc, `meta[name="robots"]`)), "noindex")
}

// A missing robots.txt allows everything. An unreadable one counts as blocked.
func (c *SEOCollector) robotsAllowed(ctx context.Context, siteURL string) bool {
	page, err := c.fetcher.Get(ctx, strings.TrimRight(siteURL, "/")+"/robots.txt", "text/plain")
	if errors.Is(err, ErrUnexpectedStatus) && page.StatusCode == 404 {
		return true
	}
	if err != nil {
		logger.Log.Debug("robots.txt unavailable", zap.String("site_url", siteURL), zap.Error(err))
		return false
	}
	return RobotsAllowsRoot(string(page.Body))
}

// Reports whether the "User-agent: *" group leaves the site root crawlable.
func RobotsAllowsRoot(robots string) bool {
	inWildcard := false
	prevWasAgent := false
	for _, line := range strings.Split(robots, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if !prevWasAgent {
				inWildcard = false
			}
			if value == "*" {
				inWildcard = true
			}
			prevWasAgent = true
			continue
		case "disallow":
			if inWildcard && value == "/" {
				return false
			}
		}
		prevWasAgent = false
	}
	return true
}

func (c *SEOCollector) sitemapPresent(ctx context.Context, siteURL string) bool {
	_, err := c.fetcher.Get(ctx, sitemapURL(siteURL), "application/xml")
	return err == nil
}

// Strips scripts and styles from doc, so call it after the other checks.
func visibleText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// Compares two URLs ignoring scheme/host case and a trailing slash.
func sameURL(a, b string) bool {
	return normalizeURL(a) == normalizeURL(b)
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}
