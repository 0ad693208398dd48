package models

import "time"

// Identifies one of the five health check collectors.
type Category string

const (
	CategorySEO         Category = "seo"
	CategoryPerformance Category = "performance"
	CategoryNotFound    Category = "not-found"
	CategorySitemap     Category = "sitemap"
	CategoryIndexing    Category = "indexing"

	// Used only by the "alerts suppressed" meta-alert.
	CategorySystem Category = "system"
)

// Returns the five collector categories in aggregation order.
func Categories() []Category {
	return []Category{CategorySEO, CategoryPerformance, CategoryNotFound, CategorySitemap, CategoryIndexing}
}

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusError    Status = "error"
)

// Output of a single collector. Exactly one payload pointer matching
// Category is set.
type HealthCheckResult struct {
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`

	// Set when the collector failed and this is its default result.
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`

	SEO         *SEOHealth         `json:"seo,omitempty"`
	Performance *WebVitals         `json:"performance,omitempty"`
	NotFound    *NotFoundAnalytics `json:"not_found,omitempty"`
	Sitemap     *SitemapValidation `json:"sitemap,omitempty"`
	Indexing    *IndexingStatus    `json:"indexing,omitempty"`
}

// Core Web Vitals rating buckets.
type Rating string

const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs-improvement"
	RatingPoor             Rating = "poor"
)

type SEOHealth struct {
	URL    string     `json:"url"`
	Score  int        `json:"score"` // Out of 100
	Checks SEOChecks  `json:"checks"`
	Issues []SEOIssue `json:"issues"`
}

type SEOChecks struct {
	MetaTags         MetaTags            `json:"meta_tags"`
	StructuredData   StructuredDataCheck `json:"structured_data"`
	Performance      SEOPerformance      `json:"performance"`
	Indexability     Indexability        `json:"indexability"`
	Canonicalization Canonicalization    `json:"canonicalization"`
	SocialSharing    SocialSharing       `json:"social_sharing"`
	Language         string              `json:"language,omitempty"`
}

type MetaTags struct {
	Title       bool `json:"title"`
	Description bool `json:"description"`
	Keywords    bool `json:"keywords"`
	Robots      bool `json:"robots"`
	Canonical   bool `json:"canonical"`
	Hreflang    bool `json:"hreflang"`
	OpenGraph   bool `json:"open_graph"`
	TwitterCard bool `json:"twitter_card"`
}

type StructuredDataCheck struct {
	Present bool     `json:"present"`
	Valid   bool     `json:"valid"`
	Types   []string `json:"types"`
	Errors  []string `json:"errors,omitempty"`
}

type MetricRating struct {
	Value  float64 `json:"value"`
	Rating Rating  `json:"rating"`
}

type SEOPerformance struct {
	Available bool         `json:"available"`
	LCP       MetricRating `json:"lcp"`
	FID       MetricRating `json:"fid"`
	CLS       MetricRating `json:"cls"`
}

type Indexability struct {
	RobotsAllowed    bool `json:"robots_allowed"`
	NoindexPresent   bool `json:"noindex_present"`
	CanonicalCorrect bool `json:"canonical_correct"`
	SitemapPresent   bool `json:"sitemap_present"`
	HTTPStatus       int  `json:"http_status"`
}

type Canonicalization struct {
	HasCanonical       bool   `json:"has_canonical"`
	CanonicalURL       string `json:"canonical_url"`
	IsCanonicalCorrect bool   `json:"is_canonical_correct"`
}

type OpenGraphTags struct {
	Title       bool `json:"title"`
	Description bool `json:"description"`
	Image       bool `json:"image"`
	URL         bool `json:"url"`
	Type        bool `json:"type"`
}

type TwitterTags struct {
	Card        bool `json:"card"`
	Title       bool `json:"title"`
	Description bool `json:"description"`
	Image       bool `json:"image"`
}

type SocialSharing struct {
	OpenGraph OpenGraphTags `json:"open_graph"`
	Twitter   TwitterTags   `json:"twitter"`
}

// Issue types shared by SEO and sitemap findings.
const (
	IssueError   = "error"
	IssueWarning = "warning"
	IssueInfo    = "info"
)

type SEOIssue struct {
	Code    string `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Averaged Core Web Vitals over the sampling window. Times are milliseconds.
type WebVitals struct {
	URL     string  `json:"url"`
	LCP     float64 `json:"lcp"`
	FID     float64 `json:"fid"`
	CLS     float64 `json:"cls"`
	TTFB    float64 `json:"ttfb"`
	FCP     float64 `json:"fcp,omitempty"`
	Samples int     `json:"samples"`
}

type URLCount struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

type NotFoundAnalytics struct {
	Total        int        `json:"total"`
	UniqueURLs   int        `json:"unique_urls"`
	TopMissing   []URLCount `json:"top_missing"`
	TopReferrers []URLCount `json:"top_referrers"`
	Since        time.Time  `json:"since"`
}

type SitemapIssue struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

type SitemapValidation struct {
	URL      string         `json:"url"`
	Valid    bool           `json:"valid"`
	URLCount int            `json:"url_count"`
	Issues   []SitemapIssue `json:"issues"`
}

// Counts error-type issues.
func (s *SitemapValidation) ErrorCount() int {
	n := 0
	for _, issue := range s.Issues {
		if issue.Type == IssueError {
			n++
		}
	}
	return n
}

type IndexingError struct {
	URL      string `json:"url"`
	Error    string `json:"error"`
	Severity string `json:"severity"`
}

type IndexingStatus struct {
	TotalPages   int             `json:"total_pages"`
	IndexedPages int             `json:"indexed_pages"`
	IndexingRate float64         `json:"indexing_rate"`
	Errors       []IndexingError `json:"errors"`
}
