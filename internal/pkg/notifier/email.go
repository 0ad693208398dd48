package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/models"
)

// Delivers a plain-text message.
type Mailer interface {
	SendMail(ctx context.Context, from string, to []string, subject, body string) error
}

// Sends through an SMTP relay. Every send is bounded by timeout and ctx.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		timeout:  cfg.ChannelSendTimeout,
	}
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}
	return mail.NewClient(m.host, opts...)
}

// Gives up once ctx or the mailer timeout expires. A server that stops
// responding mid-session is abandoned and the client's timeout closes it.
func (m *SMTPMailer) SendMail(ctx context.Context, from string, to []string, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("invalid recipients %s: %w", strings.Join(to, ","), err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := m.client()
	if err != nil {
		return fmt.Errorf("smtp client for %s: %w", m.host, err)
	}

	done := make(chan error, 1)
	go func() { done <- client.DialAndSendWithContext(ctx, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send via %s:%d: %w", m.host, m.port, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send via %s:%d: %w", m.host, m.port, ctx.Err())
	}
}

// Logs messages instead of sending them. Used when no SMTP host is set.
type LogMailer struct{}

func (LogMailer) SendMail(_ context.Context, from string, to []string, subject, body string) error {
	logger.Log.Info("Email notification",
		zap.String("from", from),
		zap.Strings("to", to),
		zap.String("subject", subject),
		zap.Int("bodyLength", len(body)),
	)
	return nil
}

type EmailChannel struct {
	mailer Mailer
	from   string
	to     []string
}

// to is a comma separated recipient list.
func NewEmailChannel(mailer Mailer, from, to string) *EmailChannel {
	var recipients []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return &EmailChannel{mailer: mailer, from: from, to: recipients}
}

func (c *EmailChannel) Name() string             { return string(models.ChannelEmail) }
func (c *EmailChannel) Type() models.ChannelType { return models.ChannelEmail }
func (c *EmailChannel) Recipient() string        { return strings.Join(c.to, ",") }

func (c *EmailChannel) Send(ctx context.Context, payload models.NotificationPayload) error {
	if len(c.to) == 0 {
		return fmt.Errorf("email channel has no recipients")
	}
	return c.mailer.SendMail(ctx, c.from, c.to, payload.Subject, payload.Message)
}
