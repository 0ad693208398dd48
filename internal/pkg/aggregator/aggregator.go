package aggregator

import (
	"github.com/shopspring/decimal"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/models"
)

var (
	zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// Combines the five collector results into one weighted score. Aggregate
// is pure: identical inputs always give identical output.
type Aggregator struct {
	weights config.Weights
	lcp     config.Boundary
	fid     config.Boundary
	cls     config.Boundary
	ttfb    config.Boundary
}

func New(cfg *config.Config) *Aggregator {
	return &Aggregator{
		weights: cfg.Weights(),
		lcp:     cfg.LCP(),
		fid:     cfg.FID(),
		cls:     cfg.CLS(),
		ttfb:    cfg.TTFB(),
	}
}

func (a *Aggregator) weight(c models.Category) float64 {
	switch c {
	case models.CategorySEO:
		return a.weights.SEO
	case models.CategoryPerformance:
		return a.weights.Performance
	case models.CategoryNotFound:
		return a.weights.NotFound
	case models.CategorySitemap:
		return a.weights.Sitemap
	case models.CategoryIndexing:
		return a.weights.Indexing
	}
	return 0
}

// Computes category scores, the overall score clamped to [0,100] and rounded
// half up, and the recommendations that follow from the results.
func (a *Aggregator) Aggregate(results map[models.Category]models.HealthCheckResult) models.Summary {
	scores := make(map[models.Category]float64, len(models.Categories()))
	sum := zero
	for _, c := range models.Categories() {
		score := a.CategoryScore(c, results[c])
		scores[c] = score
		sum = sum.Add(decimal.NewFromFloat(a.weight(c)).Mul(decimal.NewFromFloat(score)))
	}

	if sum.LessThan(zero) {
		sum = zero
	}
	if sum.GreaterThan(hundred) {
		sum = hundred
	}

	summary := models.Summary{
		OverallScore:   int(sum.Round(0).IntPart()),
		RawScore:       sum.InexactFloat64(),
		CategoryScores: scores,
	}
	summary.Recommendations = a.recommendations(results, summary)
	return summary
}

// Maps one result to 0-100. A result missing its payload scores 0.
func (a *Aggregator) CategoryScore(c models.Category, res models.HealthCheckResult) float64 {
	switch c {
	case models.CategorySEO:
		if res.SEO == nil {
			return 0
		}
		return clamp(float64(res.SEO.Score))
	case models.CategoryPerformance:
		if res.Performance == nil {
			return 0
		}
		return a.PerformanceScore(*res.Performance)
	case models.CategoryNotFound:
		if res.NotFound == nil {
			return 0
		}
		return NotFoundScore(res.NotFound.Total)
	case models.CategorySitemap:
		if res.Sitemap == nil {
			return 0
		}
		return SitemapScore(res.Sitemap.Valid)
	case models.CategoryIndexing:
		if res.Indexing == nil {
			return 0
		}
		return IndexingScore(res.Indexing.IndexingRate)
	}
	return 0
}

// 25 points per metric within its good boundary, 15 within its poor boundary.
func (a *Aggregator) PerformanceScore(v models.WebVitals) float64 {
	return metricPoints(v.LCP, a.lcp) + metricPoints(v.FID, a.fid) + metricPoints(v.CLS, a.cls) + metricPoints(v.TTFB, a.ttfb)
}

func metricPoints(value float64, b config.Boundary) float64 {
	switch {
	case value <= b.Good:
		return 25
	case value <= b.Poor:
		return 15
	default:
		return 0
	}
}

func NotFoundScore(total int) float64 {
	switch {
	case total <= 0:
		return 100
	case total <= 10:
		return 80
	case total <= 50:
		return 60
	default:
		return 40
	}
}

func SitemapScore(valid bool) float64 {
	if valid {
		return 100
	}
	return 50
}

func IndexingScore(rate float64) float64 {
	return clamp(rate * 100)
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
