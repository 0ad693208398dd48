package aggregator

import (
	"sitemonitor/internal/pkg/models"
)

const RecommendCriticalAlerts = "Address critical alerts immediately to prevent SEO impact"

type rule struct {
	applies func(a *Aggregator, results map[models.Category]models.HealthCheckResult, s models.Summary) bool
	text    string
}

// Advisory only; nothing downstream branches on these.
var rules = []rule{
	{
		applies: func(_ *Aggregator, r map[models.Category]models.HealthCheckResult, _ models.Summary) bool {
			return r[models.CategorySEO].SEO != nil && r[models.CategorySEO].SEO.Score < 80
		},
		text: "Improve SEO health by addressing meta tag and structured data issues",
	},
	{
		applies: func(a *Aggregator, r map[models.Category]models.HealthCheckResult, _ models.Summary) bool {
			p := r[models.CategoryPerformance].Performance
			return p != nil && p.LCP > a.lcp.Good
		},
		text: "Optimize Largest Contentful Paint by improving server response time and image loading",
	},
	{
		applies: func(a *Aggregator, r map[models.Category]models.HealthCheckResult, _ models.Summary) bool {
			p := r[models.CategoryPerformance].Performance
			return p != nil && p.CLS > a.cls.Good
		},
		text: "Reduce layout shift by reserving space for images, embeds and late-loading fonts",
	},
	{
		applies: func(a *Aggregator, r map[models.Category]models.HealthCheckResult, _ models.Summary) bool {
			p := r[models.CategoryPerformance].Performance
			return p != nil && p.TTFB > a.ttfb.Good
		},
		text: "Improve time to first byte with caching or a CDN",
	},
	{
		applies: func(_ *Aggregator, r map[models.Category]models.HealthCheckResult, _ models.Summary) bool {
			nf := r[models.CategoryNotFound].NotFound
			return nf != nil && nf.Total > 10
		},
		text: "Fix or redirect the most requested missing pages",
	},
	{
		applies: func(_ *Aggregator, r map[models.Category]models.HealthCheckResult, _ models.Summary) bool {
			sm := r[models.CategorySitemap].Sitemap
			return sm != nil && !sm.Valid
		},
		text: "Repair the XML sitemap so search engines can discover all pages",
	},
	{
		applies: func(_ *Aggregator, r map[models.Category]models.HealthCheckResult, _ models.Summary) bool {
			idx := r[models.CategoryIndexing].Indexing
			return idx != nil && idx.IndexingRate < 0.9
		},
		text: "Investigate pages missing from the search index",
	},
	{
		applies: func(_ *Aggregator, _ map[models.Category]models.HealthCheckResult, s models.Summary) bool {
			return s.OverallScore < 80
		},
		text: "Overall site health is below 80; prioritise the lowest scoring categories",
	},
}

func (a *Aggregator) recommendations(results map[models.Category]models.HealthCheckResult, s models.Summary) []string {
	out := []string{}
	for _, r := range rules {
		if r.applies(a, results, s) {
			out = append(out, r.text)
		}
	}
	return out
}

// Returns a copy of s with the alert-derived fields filled in.
func WithAlerts(s models.Summary, alerts []models.Alert) models.Summary {
	critical := 0
	for _, a := range alerts {
		if a.Severity == models.SeverityCritical {
			critical++
		}
	}

	out := s
	out.CriticalIssues = critical
	out.Recommendations = append([]string(nil), s.Recommendations...)
	if critical > 0 {
		out.Recommendations = append(out.Recommendations, RecommendCriticalAlerts)
	}
	return out
}
