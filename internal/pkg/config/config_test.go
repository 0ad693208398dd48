package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Clear environment variables that might interfere.
	os.Clearenv()

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if config.ServerPort != "8080" {
		t.Errorf("expected ServerPort to be '8080', got %s", config.ServerPort)
	}
	if config.FetchTimeout != 10*time.Second {
		t.Errorf("expected FetchTimeout to be 10s, got %s", config.FetchTimeout)
	}
	if config.AlertThrottleWindow != time.Hour {
		t.Errorf("expected AlertThrottleWindow to be 1h, got %s", config.AlertThrottleWindow)
	}
	if config.MaxAlertsPerHour != 10 {
		t.Errorf("expected MaxAlertsPerHour to be 10, got %d", config.MaxAlertsPerHour)
	}
	if config.CriticalSEOScore != 30 {
		t.Errorf("expected CriticalSEOScore to be 30, got %v", config.CriticalSEOScore)
	}
	if len(config.NotFoundIgnorePatterns) != 8 {
		t.Errorf("expected 8 default ignore patterns, got %d", len(config.NotFoundIgnorePatterns))
	}
	if config.LogLevel != "info" {
		t.Errorf("expected LogLevel to be 'info', got %s", config.LogLevel)
	}
	if config.ChannelSendTimeout != 30*time.Second {
		t.Errorf("expected ChannelSendTimeout to be 30s, got %s", config.ChannelSendTimeout)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALERT_THROTTLE_WINDOW", "30m")
	t.Setenv("MAX_ALERTS_PER_HOUR", "4")
	t.Setenv("WEBHOOK_NOTIFICATIONS_ENABLED", "true")
	t.Setenv("NOT_FOUND_IGNORE_PATTERNS", "wp-login,.bak")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if config.ServerPort != "9090" {
		t.Errorf("expected ServerPort to be '9090', got %s", config.ServerPort)
	}
	if config.LogLevel != "debug" {
		t.Errorf("expected LogLevel to be 'debug', got %s", config.LogLevel)
	}
	if config.AlertThrottleWindow != 30*time.Minute {
		t.Errorf("expected AlertThrottleWindow to be 30m, got %s", config.AlertThrottleWindow)
	}
	if config.MaxAlertsPerHour != 4 {
		t.Errorf("expected MaxAlertsPerHour to be 4, got %d", config.MaxAlertsPerHour)
	}
	if !config.WebhookEnabled {
		t.Error("expected webhook channel to be enabled")
	}
	if len(config.NotFoundIgnorePatterns) != 2 || config.NotFoundIgnorePatterns[1] != ".bak" {
		t.Errorf("unexpected ignore patterns %v", config.NotFoundIgnorePatterns)
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if got := config.Weights().Sum().String(); got != "1" {
		t.Errorf("expected weights to sum to 1, got %s", got)
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	config := Default()
	config.WeightSEO = 0.40

	err := config.Validate()
	if !errors.Is(err, ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestValidateRejectsUnorderedTiers(t *testing.T) {
	config := Default()
	config.CriticalSEOScore = 60 // above HIGH_SEO_SCORE

	if err := config.Validate(); err == nil {
		t.Fatal("expected an error for unordered SEO tiers")
	}

	config = Default()
	config.CriticalNotFound = 10 // below MEDIUM_NOT_FOUND

	if err := config.Validate(); err == nil {
		t.Fatal("expected an error for unordered 404 tiers")
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	config := Default()
	config.RunAt = "six"
	config.SiteURL = "not a url"
	config.MaxAlertsPerHour = 0

	err := config.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"RUN_AT", "SITE_URL", "MAX_ALERTS_PER_HOUR"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestRunAtClock(t *testing.T) {
	config := Default()
	hour, minute, err := config.RunAtClock()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if hour != 6 || minute != 0 {
		t.Errorf("expected 06:00, got %02d:%02d", hour, minute)
	}
}
