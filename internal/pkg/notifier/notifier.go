package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/circuitbreaker"
	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/metrics"
	"sitemonitor/internal/pkg/models"
)

// A destination for run notifications.
type Channel interface {
	Name() string
	Type() models.ChannelType
	Recipient() string
	Send(ctx context.Context, payload models.NotificationPayload) error
}

// Outcome of one Dispatch call.
type Report struct {
	Skipped bool // no alert met the minimum severity
	Sent    []string
	Failed  map[string]error
}

// All channel failures combined, or nil.
func (r Report) Err() error {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)

	var err error
	for _, name := range names {
		err = multierr.Append(err, fmt.Errorf("%s: %w", name, r.Failed[name]))
	}
	return err
}

type guardedChannel struct {
	Channel
	breaker *circuitbreaker.CircuitBreaker
}

// Fans a run's alerts out to every configured channel.
type Dispatcher struct {
	channels    []guardedChannel
	minSeverity models.Severity
	sendTimeout time.Duration
}

func NewDispatcher(cfg *config.Config, channels ...Channel) *Dispatcher {
	d := &Dispatcher{
		minSeverity: models.Severity(cfg.NotifyMinSeverity),
		sendTimeout: cfg.ChannelSendTimeout,
	}
	for _, ch := range channels {
		d.channels = append(d.channels, guardedChannel{
			Channel: ch,
			breaker: circuitbreaker.NewCircuitBreaker(ch.Name(), cfg.ChannelFailureThreshold, cfg.ChannelResetTimeout),
		})
	}
	return d
}

// Reports whether any alert is severe enough to notify about.
func (d *Dispatcher) ShouldNotify(alerts []models.Alert) bool {
	threshold := d.minSeverity.Rank()
	for _, a := range alerts {
		if a.Severity.Rank() >= threshold {
			return true
		}
	}
	return false
}

// Sends one notification per channel, concurrently. A failing channel
// never stops the others and never fails the caller; failures are
// logged and returned in the report.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []models.Alert, result *models.DailyCheckResult) Report {
	report := Report{Failed: map[string]error{}}
	if !d.ShouldNotify(alerts) || len(d.channels) == 0 {
		report.Skipped = true
		return report
	}

	var mu sync.Mutex
	p := pool.New().WithErrors()
	for _, ch := range d.channels {
		p.Go(func() error {
			payload := BuildPayload(ch.Type(), ch.Recipient(), alerts, result)
			err := d.send(ctx, ch, payload)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[ch.Name()] = err
				return err
			}
			report.Sent = append(report.Sent, ch.Name())
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		logger.Log.Error("Some notification channels failed", zap.Error(report.Err()))
	}
	sort.Strings(report.Sent)
	return report
}

func (d *Dispatcher) send(ctx context.Context, ch guardedChannel, payload models.NotificationPayload) error {
	err := ch.breaker.Execute(ctx, func(ctx context.Context) error {
		return d.sendWithTimeout(ctx, ch, payload)
	})

	switch {
	case err == nil:
		metrics.Notifications.WithLabelValues(ch.Name(), "sent").Inc()
		logger.Log.Info("Notification sent", zap.String("channel", ch.Name()))
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		metrics.Notifications.WithLabelValues(ch.Name(), "circuit_open").Inc()
		logger.Log.Warn("Notification skipped, channel circuit open", zap.String("channel", ch.Name()))
	default:
		metrics.Notifications.WithLabelValues(ch.Name(), "failed").Inc()
		logger.Log.Error("Notification failed", zap.String("channel", ch.Name()), zap.Error(err))
	}
	return err
}

// A channel that ignores its context is abandoned once the send timeout
// fires, so a hung endpoint cannot stall the run.
func (d *Dispatcher) sendWithTimeout(ctx context.Context, ch guardedChannel, payload models.NotificationPayload) error {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var sendErr error
		var pc panics.Catcher
		pc.Try(func() { sendErr = ch.Send(ctx, payload) })
		if rec := pc.Recovered(); rec != nil {
			sendErr = fmt.Errorf("channel panicked: %w", rec.AsError())
		}
		done <- sendErr
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send timed out after %s: %w", d.sendTimeout, ctx.Err())
	}
}

// Builds the channels enabled in cfg. Email falls back to logging when no
// SMTP host is configured.
func ChannelsFromConfig(cfg *config.Config) []Channel {
	var channels []Channel
	if cfg.EmailEnabled {
		var mailer Mailer = LogMailer{}
		if cfg.SMTPHost != "" {
			mailer = NewSMTPMailer(cfg)
		}
		channels = append(channels, NewEmailChannel(mailer, cfg.EmailFrom, cfg.EmailTo))
	}
	if cfg.WebhookEnabled && cfg.WebhookURL != "" {
		channels = append(channels, NewWebhookChannel(cfg.WebhookURL, cfg.WebhookSecret, cfg.FetchTimeout))
	}
	if cfg.SlackEnabled && cfg.SlackWebhookURL != "" {
		channels = append(channels, NewChatChannel(cfg.SlackWebhookURL, cfg.SlackChannel, cfg.FetchTimeout))
	}
	return channels
}
