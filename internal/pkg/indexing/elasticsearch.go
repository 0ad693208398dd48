package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
)

// Reads the indexed page count from an Elasticsearch index whose
// documents carry the page address in a "url" field.
type ElasticsearchSource struct {
	client  *elasticsearch.Client
	index   string
	limiter *rate.Limiter
	total   TotalFunc
}

// Creates a source against ELASTICSEARCH_URL/INDEX_NAME. Requests are
// limited to INDEXING_REQUESTS_PER_SECOND.
func NewElasticsearchSource(cfg *config.Config, total TotalFunc) (*ElasticsearchSource, error) {
	if total == nil {
		return nil, errors.New("elasticsearch source needs a page total function")
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticsearchURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	rps := cfg.IndexingRequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	logger.Log.Info("Initializing Elasticsearch indexing source",
		zap.String("url", cfg.ElasticsearchURL),
		zap.String("index", cfg.IndexName),
		zap.Float64("requests_per_second", rps))

	return &ElasticsearchSource{
		client:  client,
		index:   cfg.IndexName,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		total:   total,
	}, nil
}

func (s *ElasticsearchSource) Coverage(ctx context.Context, siteURL string) (Coverage, error) {
	total, err := s.total(ctx, siteURL)
	if err != nil {
		return Coverage{}, fmt.Errorf("count site pages: %w", err)
	}

	indexed, err := s.countIndexed(ctx, siteURL)
	if err != nil {
		return Coverage{}, err
	}

	return Coverage{TotalPages: total, IndexedPages: indexed}, nil
}

type countResponse struct {
	Count int `json:"count"`
}

// Counts documents whose url starts with the site's origin.
func (s *ElasticsearchSource) countIndexed(ctx context.Context, siteURL string) (int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"prefix": map[string]interface{}{
				"url": sitePrefix(siteURL),
			},
		},
	}
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(query); err != nil {
		return 0, err
	}

	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.index),
		s.client.Count.WithBody(&body),
	)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch count: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		logger.Log.Warn("Elasticsearch count failed", zap.Int("status_code", res.StatusCode))
		return 0, fmt.Errorf("elasticsearch count: status %d", res.StatusCode)
	}

	var parsed countResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return parsed.Count, nil
}

// Lowercases scheme and host and drops any trailing slash.
func sitePrefix(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return strings.TrimRight(u.String(), "/")
}
