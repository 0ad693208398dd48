package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sitemonitor/internal/pkg/models"
)

// Header carrying the shared webhook secret.
const SecretHeader = "X-Webhook-Secret"

type webhookBody struct {
	Subject   string      `json:"subject"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Posts the payload as JSON to a generic endpoint.
type WebhookChannel struct {
	url    string
	secret string
	client *http.Client
	now    func() time.Time
}

func NewWebhookChannel(url, secret string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (c *WebhookChannel) Name() string             { return string(models.ChannelWebhook) }
func (c *WebhookChannel) Type() models.ChannelType { return models.ChannelWebhook }
func (c *WebhookChannel) Recipient() string        { return c.url }

func (c *WebhookChannel) Send(ctx context.Context, payload models.NotificationPayload) error {
	body, err := json.Marshal(webhookBody{
		Subject:   payload.Subject,
		Message:   payload.Message,
		Data:      payload.Data,
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}
	return doPost(c.client, req)
}

func doPost(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s responded with HTTP %d", req.URL.Host, resp.StatusCode)
	}
	return nil
}
