package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

var ErrInvalidWeights = errors.New("category weights must sum to 1.0")

// Holds every setting of the monitoring service. It is loaded once at startup
// and passed by pointer to each component; nothing mutates it afterwards.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	// Site under observation
	SiteURL      string        `mapstructure:"SITE_URL"`
	FetchTimeout time.Duration `mapstructure:"FETCH_TIMEOUT"`
	UserAgent    string        `mapstructure:"USER_AGENT"`

	// Scheduling
	RunAt       string        `mapstructure:"RUN_AT"`
	RunInterval time.Duration `mapstructure:"RUN_INTERVAL"`
	RunOnStart  bool          `mapstructure:"RUN_ON_START"`

	// Category weights, must sum to 1.0
	WeightSEO         float64 `mapstructure:"WEIGHT_SEO"`
	WeightPerformance float64 `mapstructure:"WEIGHT_PERFORMANCE"`
	WeightNotFound    float64 `mapstructure:"WEIGHT_NOT_FOUND"`
	WeightSitemap     float64 `mapstructure:"WEIGHT_SITEMAP"`
	WeightIndexing    float64 `mapstructure:"WEIGHT_INDEXING"`

	// Core Web Vitals good/poor boundaries
	LCPGood  float64 `mapstructure:"LCP_GOOD"`
	LCPPoor  float64 `mapstructure:"LCP_POOR"`
	FIDGood  float64 `mapstructure:"FID_GOOD"`
	FIDPoor  float64 `mapstructure:"FID_POOR"`
	CLSGood  float64 `mapstructure:"CLS_GOOD"`
	CLSPoor  float64 `mapstructure:"CLS_POOR"`
	TTFBGood float64 `mapstructure:"TTFB_GOOD"`
	TTFBPoor float64 `mapstructure:"TTFB_POOR"`

	// Severity tiers
	CriticalSEOScore         float64 `mapstructure:"CRITICAL_SEO_SCORE"`
	HighSEOScore             float64 `mapstructure:"HIGH_SEO_SCORE"`
	MediumSEOScore           float64 `mapstructure:"MEDIUM_SEO_SCORE"`
	CriticalPerformanceScore float64 `mapstructure:"CRITICAL_PERFORMANCE_SCORE"`
	HighPerformanceScore     float64 `mapstructure:"HIGH_PERFORMANCE_SCORE"`
	MediumPerformanceScore   float64 `mapstructure:"MEDIUM_PERFORMANCE_SCORE"`
	CriticalCWVFailures      float64 `mapstructure:"CRITICAL_CWV_FAILURES"`
	HighCWVFailures          float64 `mapstructure:"HIGH_CWV_FAILURES"`
	MediumCWVFailures        float64 `mapstructure:"MEDIUM_CWV_FAILURES"`
	CriticalIndexingErrors   float64 `mapstructure:"CRITICAL_INDEXING_ERRORS"`
	HighIndexingErrors       float64 `mapstructure:"HIGH_INDEXING_ERRORS"`
	MediumIndexingErrors     float64 `mapstructure:"MEDIUM_INDEXING_ERRORS"`
	CriticalNotFound         float64 `mapstructure:"CRITICAL_NOT_FOUND"`
	HighNotFound             float64 `mapstructure:"HIGH_NOT_FOUND"`
	MediumNotFound           float64 `mapstructure:"MEDIUM_NOT_FOUND"`
	CriticalIndexingRate     float64 `mapstructure:"CRITICAL_INDEXING_RATE"`
	HighIndexingRate         float64 `mapstructure:"HIGH_INDEXING_RATE"`
	MediumIndexingRate       float64 `mapstructure:"MEDIUM_INDEXING_RATE"`

	// Alert throttling
	AlertThrottleWindow time.Duration `mapstructure:"ALERT_THROTTLE_WINDOW"`
	MaxAlertsPerHour    int           `mapstructure:"MAX_ALERTS_PER_HOUR"`

	// Result cache
	CacheBackend         string        `mapstructure:"CACHE_BACKEND"`
	CacheCleanupInterval time.Duration `mapstructure:"CACHE_CLEANUP_INTERVAL"`
	RedisHost            string        `mapstructure:"REDIS_HOST"`
	RedisPort            string        `mapstructure:"REDIS_PORT"`
	RedisPassword        string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int           `mapstructure:"REDIS_DB"`
	RedisPrefix          string        `mapstructure:"REDIS_PREFIX"`

	// Search-index coverage
	IndexingSource            string  `mapstructure:"INDEXING_SOURCE"`
	ElasticsearchURL          string  `mapstructure:"ELASTICSEARCH_URL"`
	IndexName                 string  `mapstructure:"INDEX_NAME"`
	IndexingRequestsPerSecond float64 `mapstructure:"INDEXING_REQUESTS_PER_SECOND"`
	IndexingTotalPages        int     `mapstructure:"INDEXING_TOTAL_PAGES"`
	IndexingIndexedPages      int     `mapstructure:"INDEXING_INDEXED_PAGES"`

	// Notification channels
	EmailEnabled            bool          `mapstructure:"EMAIL_NOTIFICATIONS_ENABLED"`
	EmailFrom               string        `mapstructure:"EMAIL_FROM"`
	EmailTo                 string        `mapstructure:"EMAIL_TO"`
	SMTPHost                string        `mapstructure:"SMTP_HOST"`
	SMTPPort                int           `mapstructure:"SMTP_PORT"`
	SMTPUsername            string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword            string        `mapstructure:"SMTP_PASSWORD"`
	WebhookEnabled          bool          `mapstructure:"WEBHOOK_NOTIFICATIONS_ENABLED"`
	WebhookURL              string        `mapstructure:"WEBHOOK_URL"`
	WebhookSecret           string        `mapstructure:"WEBHOOK_SECRET"`
	SlackEnabled            bool          `mapstructure:"SLACK_NOTIFICATIONS_ENABLED"`
	SlackWebhookURL         string        `mapstructure:"SLACK_WEBHOOK_URL"`
	SlackChannel            string        `mapstructure:"SLACK_CHANNEL"`
	NotifyMinSeverity       string        `mapstructure:"NOTIFY_MIN_SEVERITY"`
	ChannelFailureThreshold int           `mapstructure:"CHANNEL_FAILURE_THRESHOLD"`
	ChannelResetTimeout     time.Duration `mapstructure:"CHANNEL_RESET_TIMEOUT"`
	ChannelSendTimeout      time.Duration `mapstructure:"CHANNEL_SEND_TIMEOUT"`

	// Collectors
	ExpectedLanguage       string   `mapstructure:"EXPECTED_LANGUAGE"`
	NotFoundIgnorePatterns []string `mapstructure:"NOT_FOUND_IGNORE_PATTERNS"`
	NotFoundMaxEvents      int      `mapstructure:"NOT_FOUND_MAX_EVENTS"`
	VitalsMaxSamples       int      `mapstructure:"VITALS_MAX_SAMPLES"`
}

// The five category weights in aggregation order.
type Weights struct {
	SEO         float64
	Performance float64
	NotFound    float64
	Sitemap     float64
	Indexing    float64
}

// Three ordered severity boundaries for one metric.
type Tiers struct {
	Critical float64
	High     float64
	Medium   float64
}

// Good/poor boundaries for one Core Web Vitals metric.
type Boundary struct {
	Good float64
	Poor float64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SITE_URL", "https://proweb-studio.com")
	v.SetDefault("FETCH_TIMEOUT", 10*time.Second)
	v.SetDefault("USER_AGENT", "SiteMonitor/1.0")

	v.SetDefault("RUN_AT", "06:00")
	v.SetDefault("RUN_INTERVAL", 24*time.Hour)
	v.SetDefault("RUN_ON_START", false)

	v.SetDefault("WEIGHT_SEO", 0.30)
	v.SetDefault("WEIGHT_PERFORMANCE", 0.25)
	v.SetDefault("WEIGHT_NOT_FOUND", 0.15)
	v.SetDefault("WEIGHT_SITEMAP", 0.15)
	v.SetDefault("WEIGHT_INDEXING", 0.15)

	// Google's published Core Web Vitals boundaries
	v.SetDefault("LCP_GOOD", 2500)
	v.SetDefault("LCP_POOR", 4000)
	v.SetDefault("FID_GOOD", 100)
	v.SetDefault("FID_POOR", 300)
	v.SetDefault("CLS_GOOD", 0.1)
	v.SetDefault("CLS_POOR", 0.25)
	v.SetDefault("TTFB_GOOD", 800)
	v.SetDefault("TTFB_POOR", 1800)

	v.SetDefault("CRITICAL_SEO_SCORE", 30)
	v.SetDefault("HIGH_SEO_SCORE", 50)
	v.SetDefault("MEDIUM_SEO_SCORE", 70)
	v.SetDefault("CRITICAL_PERFORMANCE_SCORE", 30)
	v.SetDefault("HIGH_PERFORMANCE_SCORE", 50)
	v.SetDefault("MEDIUM_PERFORMANCE_SCORE", 70)
	v.SetDefault("CRITICAL_CWV_FAILURES", 3)
	v.SetDefault("HIGH_CWV_FAILURES", 2)
	v.SetDefault("MEDIUM_CWV_FAILURES", 1)
	v.SetDefault("CRITICAL_INDEXING_ERRORS", 10)
	v.SetDefault("HIGH_INDEXING_ERRORS", 5)
	v.SetDefault("MEDIUM_INDEXING_ERRORS", 2)
	v.SetDefault("CRITICAL_NOT_FOUND", 200)
	v.SetDefault("HIGH_NOT_FOUND", 100)
	v.SetDefault("MEDIUM_NOT_FOUND", 50)
	v.SetDefault("CRITICAL_INDEXING_RATE", 0.5)
	v.SetDefault("HIGH_INDEXING_RATE", 0.8)
	v.SetDefault("MEDIUM_INDEXING_RATE", 0.9)

	v.SetDefault("ALERT_THROTTLE_WINDOW", time.Hour)
	v.SetDefault("MAX_ALERTS_PER_HOUR", 10)

	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("CACHE_CLEANUP_INTERVAL", 5*time.Minute)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "proweb_monitoring:")

	v.SetDefault("INDEXING_SOURCE", "static")
	v.SetDefault("ELASTICSEARCH_URL", "http://localhost:9200")
	v.SetDefault("INDEX_NAME", "search_engine_index")
	v.SetDefault("INDEXING_REQUESTS_PER_SECOND", 1.0)
	v.SetDefault("INDEXING_TOTAL_PAGES", 25)
	v.SetDefault("INDEXING_INDEXED_PAGES", 23)

	v.SetDefault("EMAIL_NOTIFICATIONS_ENABLED", false)
	v.SetDefault("EMAIL_FROM", "monitoring@proweb-studio.com")
	v.SetDefault("EMAIL_TO", "monitoring@proweb-studio.com")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("WEBHOOK_NOTIFICATIONS_ENABLED", false)
	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("SLACK_NOTIFICATIONS_ENABLED", false)
	v.SetDefault("SLACK_WEBHOOK_URL", "")
	v.SetDefault("SLACK_CHANNEL", "#monitoring")
	v.SetDefault("NOTIFY_MIN_SEVERITY", "high")
	v.SetDefault("CHANNEL_FAILURE_THRESHOLD", 3)
	v.SetDefault("CHANNEL_RESET_TIMEOUT", 10*time.Minute)
	v.SetDefault("CHANNEL_SEND_TIMEOUT", 30*time.Second)

	v.SetDefault("EXPECTED_LANGUAGE", "nl")
	v.SetDefault("NOT_FOUND_IGNORE_PATTERNS", []string{".php", ".asp", ".jsp", "wp-admin", "wp-content", "/admin", ".env", ".git"})
	v.SetDefault("NOT_FOUND_MAX_EVENTS", 10000)
	v.SetDefault("VITALS_MAX_SAMPLES", 1000)
}

// Reads an optional .env file, then the environment, into a validated Config.
func LoadConfig() (*Config, error) {
	// A missing .env file is the normal case in production.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Returns a Config populated only with defaults. Used by tests and the check command.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("default config does not unmarshal: %v", err))
	}
	return &config
}

// Checks the constraints every component relies on.
func (c *Config) Validate() error {
	var err error

	if sum := c.Weights().Sum(); !sum.Equal(decimal.NewFromInt(1)) {
		err = multierr.Append(err, fmt.Errorf("%w, got %s", ErrInvalidWeights, sum.String()))
	}
	for name, w := range map[string]float64{
		"WEIGHT_SEO": c.WeightSEO, "WEIGHT_PERFORMANCE": c.WeightPerformance,
		"WEIGHT_NOT_FOUND": c.WeightNotFound, "WEIGHT_SITEMAP": c.WeightSitemap,
		"WEIGHT_INDEXING": c.WeightIndexing,
	} {
		if w < 0 {
			err = multierr.Append(err, fmt.Errorf("%s must not be negative", name))
		}
	}

	// Lower is worse for scores and rates.
	for name, t := range map[string]Tiers{
		"SEO_SCORE":         c.SEOScoreTiers(),
		"PERFORMANCE_SCORE": c.PerformanceScoreTiers(),
		"INDEXING_RATE":     c.IndexingRateTiers(),
	} {
		if !(t.Critical < t.High && t.High < t.Medium) {
			err = multierr.Append(err, fmt.Errorf("%s tiers must satisfy critical < high < medium", name))
		}
	}
	// Higher is worse for counts.
	for name, t := range map[string]Tiers{
		"CWV_FAILURES":    c.CWVFailureTiers(),
		"INDEXING_ERRORS": c.IndexingErrorTiers(),
		"NOT_FOUND":       c.NotFoundTiers(),
	} {
		if !(t.Critical > t.High && t.High > t.Medium) {
			err = multierr.Append(err, fmt.Errorf("%s tiers must satisfy critical > high > medium", name))
		}
	}

	for name, b := range map[string]Boundary{"LCP": c.LCP(), "FID": c.FID(), "CLS": c.CLS(), "TTFB": c.TTFB()} {
		if b.Good <= 0 || b.Good >= b.Poor {
			err = multierr.Append(err, fmt.Errorf("%s_GOOD must be positive and below %s_POOR", name, name))
		}
	}

	if c.AlertThrottleWindow <= 0 {
		err = multierr.Append(err, errors.New("ALERT_THROTTLE_WINDOW must be positive"))
	}
	if c.MaxAlertsPerHour <= 0 {
		err = multierr.Append(err, errors.New("MAX_ALERTS_PER_HOUR must be positive"))
	}
	if c.FetchTimeout <= 0 {
		err = multierr.Append(err, errors.New("FETCH_TIMEOUT must be positive"))
	}
	if c.RunInterval <= 0 {
		err = multierr.Append(err, errors.New("RUN_INTERVAL must be positive"))
	}
	if c.ChannelSendTimeout <= 0 {
		err = multierr.Append(err, errors.New("CHANNEL_SEND_TIMEOUT must be positive"))
	}
	if _, _, perr := c.RunAtClock(); perr != nil {
		err = multierr.Append(err, perr)
	}
	if u, perr := url.Parse(c.SiteURL); perr != nil || u.Scheme == "" || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf("SITE_URL %q is not an absolute URL", c.SiteURL))
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend))
	}
	switch c.IndexingSource {
	case "static", "elasticsearch":
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported INDEXING_SOURCE %q", c.IndexingSource))
	}
	return err
}

func (c *Config) Weights() Weights {
	return Weights{
		SEO:         c.WeightSEO,
		Performance: c.WeightPerformance,
		NotFound:    c.WeightNotFound,
		Sitemap:     c.WeightSitemap,
		Indexing:    c.WeightIndexing,
	}
}

// Sums the weights in decimal so 0.3+0.25+0.15+0.15+0.15 is exactly 1.
func (w Weights) Sum() decimal.Decimal {
	return decimal.NewFromFloat(w.SEO).
		Add(decimal.NewFromFloat(w.Performance)).
		Add(decimal.NewFromFloat(w.NotFound)).
		Add(decimal.NewFromFloat(w.Sitemap)).
		Add(decimal.NewFromFloat(w.Indexing))
}

func (c *Config) SEOScoreTiers() Tiers {
	return Tiers{Critical: c.CriticalSEOScore, High: c.HighSEOScore, Medium: c.MediumSEOScore}
}

func (c *Config) PerformanceScoreTiers() Tiers {
	return Tiers{Critical: c.CriticalPerformanceScore, High: c.HighPerformanceScore, Medium: c.MediumPerformanceScore}
}

func (c *Config) CWVFailureTiers() Tiers {
	return Tiers{Critical: c.CriticalCWVFailures, High: c.HighCWVFailures, Medium: c.MediumCWVFailures}
}

func (c *Config) IndexingErrorTiers() Tiers {
	return Tiers{Critical: c.CriticalIndexingErrors, High: c.HighIndexingErrors, Medium: c.MediumIndexingErrors}
}

func (c *Config) NotFoundTiers() Tiers {
	return Tiers{Critical: c.CriticalNotFound, High: c.HighNotFound, Medium: c.MediumNotFound}
}

func (c *Config) IndexingRateTiers() Tiers {
	return Tiers{Critical: c.CriticalIndexingRate, High: c.HighIndexingRate, Medium: c.MediumIndexingRate}
}

func (c *Config) LCP() Boundary  { return Boundary{Good: c.LCPGood, Poor: c.LCPPoor} }
func (c *Config) FID() Boundary  { return Boundary{Good: c.FIDGood, Poor: c.FIDPoor} }
func (c *Config) CLS() Boundary  { return Boundary{Good: c.CLSGood, Poor: c.CLSPoor} }
func (c *Config) TTFB() Boundary { return Boundary{Good: c.TTFBGood, Poor: c.TTFBPoor} }

// Parses RUN_AT ("HH:MM", local time).
func (c *Config) RunAtClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.RunAt)
	if err != nil {
		return 0, 0, fmt.Errorf("RUN_AT %q must be HH:MM: %w", c.RunAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Returns host:port for the Redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
