package indexing

import (
	"context"
	"fmt"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/models"
)

// How much of a site a search index holds.
type Coverage struct {
	TotalPages   int
	IndexedPages int
	Errors       []models.IndexingError
}

// Reports index coverage for a site.
type Source interface {
	Coverage(ctx context.Context, siteURL string) (Coverage, error)
}

// Counts the pages a site publishes, typically from its sitemap.
type TotalFunc func(ctx context.Context, siteURL string) (int, error)

// Creates the source selected by INDEXING_SOURCE.
func New(cfg *config.Config, total TotalFunc) (Source, error) {
	switch cfg.IndexingSource {
	case "static":
		return NewStaticSource(cfg), nil
	case "elasticsearch":
		return NewElasticsearchSource(cfg, total)
	default:
		return nil, fmt.Errorf("unsupported indexing source %q", cfg.IndexingSource)
	}
}

// Reports fixed, configured numbers. Stands in for a search console
// integration until one is wired.
type StaticSource struct {
	Total   int
	Indexed int
	Errors  []models.IndexingError
}

func NewStaticSource(cfg *config.Config) *StaticSource {
	return &StaticSource{Total: cfg.IndexingTotalPages, Indexed: cfg.IndexingIndexedPages}
}

func (s *StaticSource) Coverage(ctx context.Context, _ string) (Coverage, error) {
	if err := ctx.Err(); err != nil {
		return Coverage{}, err
	}
	errs := make([]models.IndexingError, len(s.Errors))
	copy(errs, s.Errors)
	return Coverage{TotalPages: s.Total, IndexedPages: s.Indexed, Errors: errs}, nil
}
