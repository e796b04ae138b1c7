package dispatch

import (
	"context"
	"errors"
)

// ErrInvalidTarget is returned by a sender when the provider reports the
// destination as gone or malformed. The dispatcher deactivates the device
// so future dispatches skip it.
var ErrInvalidTarget = errors.New("invalid delivery target")

// PushMessage is the channel-neutral push payload.
type PushMessage struct {
	Title              string                 `json:"title"`
	Body               string                 `json:"body"`
	Data               map[string]interface{} `json:"data,omitempty"`
	Priority           string                 `json:"priority"`
	RequireInteraction bool                   `json:"require_interaction"`
}

// BrowserTarget is a web-push subscription (endpoint plus encryption keys).
type BrowserTarget struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dh"`
	AuthKey   string `json:"auth"`
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type MobilePushSender interface {
	Send(ctx context.Context, token string, msg PushMessage) error
}

type BrowserPushSender interface {
	Send(ctx context.Context, target BrowserTarget, msg PushMessage) error
}

type SMSSender interface {
	Send(ctx context.Context, phone, text string) error
}
