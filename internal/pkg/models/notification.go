package models

type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelWebhook ChannelType = "webhook"
	ChannelChat    ChannelType = "chat"
)

// Built per channel from a run; never persisted.
type NotificationPayload struct {
	Channel   ChannelType `json:"channel"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}
