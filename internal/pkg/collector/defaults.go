package collector

import (
	"time"

	"sitemonitor/internal/pkg/models"
)

// Worst-case Core Web Vitals reported when no real measurement exists.
const (
	poorLCP  = 8000
	poorFID  = 1000
	poorCLS  = 1.0
	poorTTFB = 3000
	poorFCP  = 5000
)

// Returns the degraded result substituted for a failed collector.
// The result is always fully populated for its category.
func Default(category models.Category, siteURL string, now time.Time, reason string) models.HealthCheckResult {
	var res models.HealthCheckResult
	switch category {
	case models.CategorySEO:
		res = DefaultSEO(siteURL, now)
	case models.CategoryPerformance:
		res = DefaultPerformance(siteURL, now)
	case models.CategoryNotFound:
		res = DefaultNotFound(now)
	case models.CategorySitemap:
		res = DefaultSitemap(siteURL, now)
	case models.CategoryIndexing:
		res = DefaultIndexing(siteURL, now)
	default:
		res = models.HealthCheckResult{Category: category, Timestamp: now}
	}
	res.Status = models.StatusError
	res.Degraded = true
	res.Error = reason
	return res
}

func DefaultSEO(siteURL string, now time.Time) models.HealthCheckResult {
	return models.HealthCheckResult{
		Category:  models.CategorySEO,
		Timestamp: now,
		Status:    models.StatusWarning,
		SEO: &models.SEOHealth{
			URL:   siteURL,
			Score: 0,
			Checks: models.SEOChecks{
				StructuredData: models.StructuredDataCheck{Types: []string{}, Errors: []string{"check failed"}},
				Performance: models.SEOPerformance{
					LCP: models.MetricRating{Value: 5000, Rating: models.RatingPoor},
					FID: models.MetricRating{Value: 500, Rating: models.RatingPoor},
					CLS: models.MetricRating{Value: 0.5, Rating: models.RatingPoor},
				},
				Indexability: models.Indexability{NoindexPresent: true, HTTPStatus: 500},
			},
			Issues: []models.SEOIssue{{Code: "seo-check-failed", Type: models.IssueError, Message: "SEO check failed"}},
		},
	}
}

// The "poor" measurement used when a performance check fails or has no samples.
func PoorVitals(siteURL string) *models.WebVitals {
	return &models.WebVitals{URL: siteURL, LCP: poorLCP, FID: poorFID, CLS: poorCLS, TTFB: poorTTFB, FCP: poorFCP}
}

func DefaultPerformance(siteURL string, now time.Time) models.HealthCheckResult {
	return models.HealthCheckResult{
		Category:    models.CategoryPerformance,
		Timestamp:   now,
		Status:      models.StatusWarning,
		Performance: PoorVitals(siteURL),
	}
}

func DefaultNotFound(now time.Time) models.HealthCheckResult {
	return models.HealthCheckResult{
		Category:  models.CategoryNotFound,
		Timestamp: now,
		Status:    models.StatusHealthy,
		NotFound: &models.NotFoundAnalytics{
			TopMissing:   []models.URLCount{},
			TopReferrers: []models.URLCount{},
			Since:        now.Add(-24 * time.Hour),
		},
	}
}

func DefaultSitemap(siteURL string, now time.Time) models.HealthCheckResult {
	return models.HealthCheckResult{
		Category:  models.CategorySitemap,
		Timestamp: now,
		Status:    models.StatusCritical,
		Sitemap: &models.SitemapValidation{
			URL:   sitemapURL(siteURL),
			Valid: false,
			Issues: []models.SitemapIssue{{
				Type:           models.IssueError,
				Message:        "Sitemap check failed",
				Recommendation: "Check sitemap availability",
			}},
		},
	}
}

func DefaultIndexing(siteURL string, now time.Time) models.HealthCheckResult {
	return models.HealthCheckResult{
		Category:  models.CategoryIndexing,
		Timestamp: now,
		Status:    models.StatusCritical,
		Indexing: &models.IndexingStatus{
			Errors: []models.IndexingError{{URL: siteURL, Error: "Indexing check failed", Severity: "high"}},
		},
	}
}
