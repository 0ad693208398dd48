package alert

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/models"
)

// Sitemaps with at least this many error issues are critical.
const criticalSitemapErrors = 3

type thresholds struct {
	seoScore         config.Tiers
	performanceScore config.Tiers
	cwvFailures      config.Tiers
	notFound         config.Tiers
	indexingRate     config.Tiers
	indexingErrors   config.Tiers
	lcp, fid         config.Boundary
	cls, ttfb        config.Boundary
}

func newThresholds(cfg *config.Config) thresholds {
	return thresholds{
		seoScore:         cfg.SEOScoreTiers(),
		performanceScore: cfg.PerformanceScoreTiers(),
		cwvFailures:      cfg.CWVFailureTiers(),
		notFound:         cfg.NotFoundTiers(),
		indexingRate:     cfg.IndexingRateTiers(),
		indexingErrors:   cfg.IndexingErrorTiers(),
		lcp:              cfg.LCP(),
		fid:              cfg.FID(),
		cls:              cfg.CLS(),
		ttfb:             cfg.TTFB(),
	}
}

// Severity for a score or rate, where lower is worse. Each boundary is
// exclusive: a value equal to the critical boundary is only high.
// Returns "" when the value clears every tier.
func ClassifyLowerIsWorse(value float64, t config.Tiers) models.Severity {
	switch {
	case value < t.Critical:
		return models.SeverityCritical
	case value < t.High:
		return models.SeverityHigh
	case value < t.Medium:
		return models.SeverityMedium
	}
	return ""
}

// Severity for a count, where higher is worse. Boundaries are inclusive.
func ClassifyHigherIsWorse(value float64, t config.Tiers) models.Severity {
	switch {
	case value >= t.Critical:
		return models.SeverityCritical
	case value >= t.High:
		return models.SeverityHigh
	case value >= t.Medium:
		return models.SeverityMedium
	}
	return ""
}

func worse(a, b models.Severity) models.Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Per-severity alert titles. The title is part of the fingerprint, so an
// escalation is not throttled by the milder alert before it.
var titles = map[models.Category]map[models.Severity]string{
	models.CategorySEO: {
		models.SeverityCritical: "Critical SEO Issues Detected",
		models.SeverityHigh:     "SEO Score Degraded",
		models.SeverityMedium:   "SEO Score Below Target",
	},
	models.CategoryPerformance: {
		models.SeverityCritical: "Critical Performance Degradation",
		models.SeverityHigh:     "Poor Core Web Vitals",
		models.SeverityMedium:   "Core Web Vitals Need Improvement",
	},
	models.CategoryNotFound: {
		models.SeverityCritical: "Critical 404 Error Rate",
		models.SeverityHigh:     "High 404 Error Rate",
		models.SeverityMedium:   "Elevated 404 Error Rate",
	},
	models.CategorySitemap: {
		models.SeverityCritical: "Sitemap Broken",
		models.SeverityHigh:     "Sitemap Issues",
	},
	models.CategoryIndexing: {
		models.SeverityCritical: "Critical Indexing Failure",
		models.SeverityHigh:     "Low Indexing Rate",
		models.SeverityMedium:   "Indexing Rate Below Target",
	},
}

type finding struct {
	category models.Category
	severity models.Severity
	message  string
	data     map[string]interface{}
}

// Compares each category against its tiers and creates at most one alert
// per category. Throttled and capped alerts are left out; a cap meta-alert
// is included.
func (m *Manager) Evaluate(ctx context.Context, siteURL string,
	results map[models.Category]models.HealthCheckResult, summary models.Summary) []models.Alert {
	alerts := []models.Alert{}

	for _, f := range m.findings(results, summary) {
		if f.severity == "" {
			continue
		}
		res := results[f.category]
		if res.Degraded {
			f.data["degraded"] = true
			f.data["error"] = res.Error
		}

		a, meta, err := m.create(ctx, f.category, f.severity, titles[f.category][f.severity], f.message, siteURL, f.data)
		if err != nil {
			logger.Log.Error("Failed to create alert", zap.String("category", string(f.category)), zap.Error(err))
			continue
		}
		if meta != nil {
			alerts = append(alerts, *meta)
		}
		if a != nil {
			alerts = append(alerts, *a)
		}
	}
	return alerts
}

func (m *Manager) findings(results map[models.Category]models.HealthCheckResult, summary models.Summary) []finding {
	var out []finding
	t := m.tiers

	if seo := results[models.CategorySEO].SEO; seo != nil {
		out = append(out, finding{
			category: models.CategorySEO,
			severity: ClassifyLowerIsWorse(float64(seo.Score), t.seoScore),
			message:  fmt.Sprintf("SEO score dropped to %d. %d issues found.", seo.Score, len(seo.Issues)),
			data:     map[string]interface{}{"score": seo.Score, "issues": len(seo.Issues)},
		})
	}

	if perf := results[models.CategoryPerformance].Performance; perf != nil {
		score := summary.CategoryScores[models.CategoryPerformance]
		failures := 0
		for _, p := range []struct {
			value float64
			b     config.Boundary
		}{{perf.LCP, t.lcp}, {perf.FID, t.fid}, {perf.CLS, t.cls}, {perf.TTFB, t.ttfb}} {
			if p.value > p.b.Poor {
				failures++
			}
		}
		out = append(out, finding{
			category: models.CategoryPerformance,
			severity: worse(ClassifyLowerIsWorse(score, t.performanceScore), ClassifyHigherIsWorse(float64(failures), t.cwvFailures)),
			message: fmt.Sprintf("Performance score is %.0f with %d Core Web Vitals failing (LCP %.0fms, FID %.0fms, CLS %.2f, TTFB %.0fms)",
				score, failures, perf.LCP, perf.FID, perf.CLS, perf.TTFB),
			data: map[string]interface{}{
				"score": score, "cwv_failures": failures,
				"lcp": perf.LCP, "fid": perf.FID, "cls": perf.CLS, "ttfb": perf.TTFB,
			},
		})
	}

	if nf := results[models.CategoryNotFound].NotFound; nf != nil {
		out = append(out, finding{
			category: models.CategoryNotFound,
			severity: ClassifyHigherIsWorse(float64(nf.Total), t.notFound),
			message:  fmt.Sprintf("%d 404 errors in the last 24 hours", nf.Total),
			data:     map[string]interface{}{"count": nf.Total, "unique_urls": nf.UniqueURLs},
		})
	}

	if sm := results[models.CategorySitemap].Sitemap; sm != nil {
		var sev models.Severity
		switch {
		case sm.ErrorCount() >= criticalSitemapErrors:
			sev = models.SeverityCritical
		case !sm.Valid:
			sev = models.SeverityHigh
		}
		out = append(out, finding{
			category: models.CategorySitemap,
			severity: sev,
			message:  fmt.Sprintf("XML sitemap has %d validation errors", sm.ErrorCount()),
			data:     map[string]interface{}{"issues": sm.Issues, "url_count": sm.URLCount},
		})
	}

	if idx := results[models.CategoryIndexing].Indexing; idx != nil {
		out = append(out, finding{
			category: models.CategoryIndexing,
			severity: worse(ClassifyLowerIsWorse(idx.IndexingRate, t.indexingRate), ClassifyHigherIsWorse(float64(len(idx.Errors)), t.indexingErrors)),
			message: fmt.Sprintf("Only %d%% of pages are indexed (%d of %d), %d indexing errors",
				int(math.Round(idx.IndexingRate*100)), idx.IndexedPages, idx.TotalPages, len(idx.Errors)),
			data: map[string]interface{}{"rate": idx.IndexingRate, "errors": len(idx.Errors)},
		})
	}

	return out
}
