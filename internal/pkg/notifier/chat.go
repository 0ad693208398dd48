package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sitemonitor/internal/pkg/models"
)

type chatAttachment struct {
	Color string `json:"color"`
	Text  string `json:"text"`
	TS    int64  `json:"ts"`
}

type chatBody struct {
	Text        string           `json:"text"`
	Channel     string           `json:"channel,omitempty"`
	Attachments []chatAttachment `json:"attachments"`
}

// Posts to a Slack incoming webhook.
type ChatChannel struct {
	url     string
	channel string
	client  *http.Client
	now     func() time.Time
}

func NewChatChannel(url, channel string, timeout time.Duration) *ChatChannel {
	return &ChatChannel{
		url:     url,
		channel: channel,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

func (c *ChatChannel) Name() string             { return string(models.ChannelChat) }
func (c *ChatChannel) Type() models.ChannelType { return models.ChannelChat }
func (c *ChatChannel) Recipient() string        { return c.channel }

func (c *ChatChannel) Send(ctx context.Context, payload models.NotificationPayload) error {
	var alerts []models.Alert
	if result, ok := payload.Data.(*models.DailyCheckResult); ok && result != nil {
		alerts = result.Alerts
	}

	body, err := json.Marshal(chatBody{
		Text:    payload.Subject,
		Channel: c.channel,
		Attachments: []chatAttachment{{
			Color: chatColor(alerts),
			Text:  payload.Message,
			TS:    c.now().Unix(),
		}},
	})
	if err != nil {
		return fmt.Errorf("marshal chat body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doPost(c.client, req)
}
