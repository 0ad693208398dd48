package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/models"
)

func init() {
	logger.Log = zap.NewNop()
}

type fakeChannel struct {
	name    string
	err     error
	panic   bool
	release chan struct{} // when set, Send ignores ctx and waits for it

	mu       sync.Mutex
	payloads []models.NotificationPayload
}

func (f *fakeChannel) Name() string             { return f.name }
func (f *fakeChannel) Type() models.ChannelType { return models.ChannelWebhook }
func (f *fakeChannel) Recipient() string        { return "ops" }

func (f *fakeChannel) Send(_ context.Context, p models.NotificationPayload) error {
	if f.panic {
		panic("boom")
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.mu.Unlock()
	return f.err
}

func (f *fakeChannel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func testResult(alerts ...models.Alert) *models.DailyCheckResult {
	return &models.DailyCheckResult{
		RunID:     "run-1",
		SiteURL:   "https://example.com",
		Timestamp: time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC),
		Summary: models.Summary{
			OverallScore:    42,
			CriticalIssues:  1,
			Recommendations: []string{"Fix the sitemap"},
		},
		Alerts: alerts,
	}
}

func criticalAlert() models.Alert {
	return models.Alert{
		ID:       "sitemap-1",
		Category: models.CategorySitemap,
		Severity: models.SeverityCritical,
		Title:    "Sitemap Broken",
		Message:  "Sitemap not accessible: HTTP 500",
	}
}

func TestDispatchSkipsBelowMinimumSeverity(t *testing.T) {
	ch := &fakeChannel{name: "hook"}
	d := NewDispatcher(config.Default(), ch)

	low := models.Alert{Severity: models.SeverityMedium, Title: "Meh"}
	report := d.Dispatch(context.Background(), []models.Alert{low}, testResult(low))

	assert.True(t, report.Skipped)
	assert.Zero(t, ch.calls())
}

func TestDispatchIsolatesFailingChannels(t *testing.T) {
	ok := &fakeChannel{name: "ok"}
	failing := &fakeChannel{name: "failing", err: errors.New("connection refused")}
	panicking := &fakeChannel{name: "panicking", panic: true}
	d := NewDispatcher(config.Default(), ok, failing, panicking)

	alert := criticalAlert()
	report := d.Dispatch(context.Background(), []models.Alert{alert}, testResult(alert))

	assert.False(t, report.Skipped)
	assert.Equal(t, []string{"ok"}, report.Sent)
	require.Len(t, report.Failed, 2)
	assert.ErrorContains(t, report.Failed["failing"], "connection refused")
	assert.ErrorContains(t, report.Failed["panicking"], "panicked")

	err := report.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing:")
	assert.Contains(t, err.Error(), "panicking:")
}

func TestDispatchOpensCircuitAfterRepeatedFailures(t *testing.T) {
	cfg := config.Default()
	cfg.ChannelFailureThreshold = 2
	cfg.ChannelResetTimeout = time.Hour
	failing := &fakeChannel{name: "failing", err: errors.New("down")}
	d := NewDispatcher(cfg, failing)

	alert := criticalAlert()
	for i := 0; i < 3; i++ {
		d.Dispatch(context.Background(), []models.Alert{alert}, testResult(alert))
	}

	assert.Equal(t, 2, failing.calls(), "third dispatch should be short-circuited")
}

func TestWebhookChannelPostsJSONWithSecret(t *testing.T) {
	var got webhookBody
	var secret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get(SecretHeader)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, "s3cret", time.Second)
	ch.now = func() time.Time { return time.UnixMilli(1700000000123) }

	alert := criticalAlert()
	payload := BuildPayload(ch.Type(), ch.Recipient(), []models.Alert{alert}, testResult(alert))
	require.NoError(t, ch.Send(context.Background(), payload))

	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, "Daily Monitoring Alert", got.Subject)
	assert.Equal(t, "Daily monitoring alert for https://example.com: 1 critical issues found", got.Message)
	assert.Equal(t, int64(1700000000123), got.Timestamp)
	assert.NotNil(t, got.Data)
}

func TestWebhookChannelReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, "", time.Second)
	err := ch.Send(context.Background(), models.NotificationPayload{Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestChatChannelColoursBySeverity(t *testing.T) {
	var got chatBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	ch := NewChatChannel(srv.URL, "#monitoring", time.Second)
	alert := criticalAlert()
	payload := BuildPayload(ch.Type(), ch.Recipient(), []models.Alert{alert}, testResult(alert))
	require.NoError(t, ch.Send(context.Background(), payload))

	assert.Equal(t, "#monitoring", got.Channel)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "danger", got.Attachments[0].Color)
	assert.Contains(t, got.Attachments[0].Text, "Overall Score: *42/100*")
	assert.Contains(t, got.Attachments[0].Text, "Sitemap Broken")
}

func TestChatColor(t *testing.T) {
	tests := []struct {
		severities []models.Severity
		want       string
	}{
		{nil, "good"},
		{[]models.Severity{models.SeverityLow}, "good"},
		{[]models.Severity{models.SeverityLow, models.SeverityMedium}, "warning"},
		{[]models.Severity{models.SeverityHigh}, "warning"},
		{[]models.Severity{models.SeverityHigh, models.SeverityCritical}, "danger"},
	}
	for _, tt := range tests {
		var alerts []models.Alert
		for _, s := range tt.severities {
			alerts = append(alerts, models.Alert{Severity: s})
		}
		assert.Equal(t, tt.want, chatColor(alerts), "severities %v", tt.severities)
	}
}

type fakeMailer struct {
	from    string
	to      []string
	subject string
	body    string
}

func (m *fakeMailer) SendMail(_ context.Context, from string, to []string, subject, body string) error {
	m.from, m.to, m.subject, m.body = from, to, subject, body
	return nil
}

func TestEmailChannelFormatsReport(t *testing.T) {
	mailer := &fakeMailer{}
	ch := NewEmailChannel(mailer, "monitor@example.com", "a@example.com, b@example.com,")

	alert := criticalAlert()
	payload := BuildPayload(ch.Type(), ch.Recipient(), []models.Alert{alert}, testResult(alert))
	require.NoError(t, ch.Send(context.Background(), payload))

	assert.Equal(t, []string{"a@example.com", "b@example.com"}, mailer.to)
	assert.Equal(t, "Daily SEO Monitoring Alert - https://example.com", mailer.subject)
	for _, want := range []string{
		"Daily SEO Monitoring Report for https://example.com",
		"Overall Score: 42/100",
		"Critical Issues: 1",
		"Recent Alerts:",
		"- [critical] Sitemap Broken: Sitemap not accessible: HTTP 500",
		"Recommendations:",
		"- Fix the sitemap",
		"Report generated at:",
	} {
		assert.True(t, strings.Contains(mailer.body, want), "body missing %q", want)
	}
}

func TestEmailChannelWithoutRecipients(t *testing.T) {
	ch := NewEmailChannel(&fakeMailer{}, "monitor@example.com", " ")
	assert.Error(t, ch.Send(context.Background(), models.NotificationPayload{}))
}

func TestChannelsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.EmailEnabled = true
	cfg.SMTPHost = ""
	cfg.WebhookEnabled = true
	cfg.WebhookURL = "http://hooks.example.com"
	cfg.SlackEnabled = true
	cfg.SlackWebhookURL = ""

	channels := ChannelsFromConfig(cfg)
	require.Len(t, channels, 2)
	assert.Equal(t, "email", channels[0].Name())
	assert.Equal(t, "webhook", channels[1].Name())
}

func TestDispatchAbandonsHungChannel(t *testing.T) {
	cfg := config.Default()
	cfg.ChannelSendTimeout = 100 * time.Millisecond
	hung := &fakeChannel{name: "hung", release: make(chan struct{})}
	defer close(hung.release)
	ok := &fakeChannel{name: "ok"}
	d := NewDispatcher(cfg, hung, ok)

	alert := criticalAlert()
	start := time.Now()
	report := d.Dispatch(context.Background(), []models.Alert{alert}, testResult(alert))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{"ok"}, report.Sent)
	require.Contains(t, report.Failed, "hung")
	assert.ErrorIs(t, report.Failed["hung"], context.DeadlineExceeded)
}

// Accepts connections and never sends the SMTP greeting.
func silentSMTPServer(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			conn.Close()
		}
	})
	return "127.0.0.1", ln.Addr().(*net.TCPAddr).Port
}

func TestSMTPMailerHonoursContextDeadline(t *testing.T) {
	cfg := config.Default()
	cfg.SMTPHost, cfg.SMTPPort = silentSMTPServer(t)
	cfg.ChannelSendTimeout = time.Minute
	mailer := NewSMTPMailer(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := mailer.SendMail(ctx, "monitor@example.com", []string{"ops@example.com"}, "subject", "body")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSMTPMailerTimesOutWithoutDeadline(t *testing.T) {
	cfg := config.Default()
	cfg.SMTPHost, cfg.SMTPPort = silentSMTPServer(t)
	cfg.ChannelSendTimeout = 200 * time.Millisecond
	mailer := NewSMTPMailer(cfg)

	start := time.Now()
	err := mailer.SendMail(context.Background(), "monitor@example.com", []string{"ops@example.com"}, "subject", "body")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
