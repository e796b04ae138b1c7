package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lifehub-app/notify-engine/internal/dispatch"
	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/repository"
)

// ChannelError reports one failed delivery attempt. Failures are isolated:
// one channel failing never blocks the others.
type ChannelError struct {
	Channel string
	Err     error
}

func (e ChannelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Channel, e.Err)
}

type Dispatcher interface {
	// Dispatch delivers one notification across its resolved channel set and
	// transitions it to sent. The returned slice holds per-channel failures;
	// partial delivery still counts as sent.
	Dispatch(ctx context.Context, n *model.Notification) []ChannelError
}

type dispatcher struct {
	notifications repository.NotificationRepository
	devices       repository.DeviceRepository
	prefs         PreferenceService

	email      dispatch.EmailSender
	mobilePush dispatch.MobilePushSender
	webPush    dispatch.BrowserPushSender
	sms        dispatch.SMSSender

	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(
	notifications repository.NotificationRepository,
	devices repository.DeviceRepository,
	prefs PreferenceService,
	email dispatch.EmailSender,
	mobilePush dispatch.MobilePushSender,
	webPush dispatch.BrowserPushSender,
	sms dispatch.SMSSender,
	timeout time.Duration,
) Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &dispatcher{
		notifications: notifications,
		devices:       devices,
		prefs:         prefs,
		email:         email,
		mobilePush:    mobilePush,
		webPush:       webPush,
		sms:           sms,
		timeout:       timeout,
		now:           time.Now,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, n *model.Notification) []ChannelError {
	if !n.DueForDispatch(d.now()) {
		// A scheduler pass releases it once due.
		return nil
	}

	var errs []ChannelError

	resolution, err := d.prefs.Resolve(n.UserID, n.WorkspaceID, n.Type, n.Priority, n.Channels)
	if err != nil {
		errs = append(errs, ChannelError{Channel: "resolve", Err: err})
	}

	if err == nil && !resolution.Suppressed {
		errs = append(errs, d.fanout(ctx, n, resolution.Channels)...)
	} else if resolution.Suppressed {
		log.Printf("notification %s suppressed (%s), in-app record kept", n.ID, resolution.Reason)
	}

	// Partial or even total channel failure still marks the notification
	// sent; the in-app record is already persisted and the failure list is
	// surfaced to operators.
	sentAt := d.now()
	if err := d.notifications.UpdateStatus(n.ID, model.StatusSent, &sentAt); err != nil {
		errs = append(errs, ChannelError{Channel: "store", Err: err})
	} else {
		n.Status = model.StatusSent
		n.SentAt = &sentAt
	}

	for _, e := range errs {
		log.Printf("notification %s channel %s failed: %v", n.ID, e.Channel, e.Err)
	}

	return errs
}

// fanout attempts every channel concurrently and waits for all of them to
// settle, collecting errors instead of failing fast.
func (d *dispatcher) fanout(ctx context.Context, n *model.Notification, channels model.StringList) []ChannelError {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []ChannelError
	)

	for _, channel := range channels {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()

			chCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			if err := d.deliver(chCtx, channel, n); err != nil {
				mu.Lock()
				errs = append(errs, ChannelError{Channel: channel, Err: err})
				mu.Unlock()
			}
		}(channel)
	}

	wg.Wait()
	return errs
}

func (d *dispatcher) deliver(ctx context.Context, channel string, n *model.Notification) error {
	switch channel {
	case model.ChannelInApp:
		// Creation already persisted the record; nothing to deliver.
		return nil
	case model.ChannelEmail:
		return d.deliverEmail(ctx, n)
	case model.ChannelPush:
		return d.deliverPush(ctx, n)
	case model.ChannelSMS:
		return d.deliverSMS(ctx, n)
	default:
		return fmt.Errorf("unknown channel %q", channel)
	}
}

func (d *dispatcher) deliverEmail(ctx context.Context, n *model.Notification) error {
	if d.email == nil {
		return errors.New("email sender not configured")
	}

	to, ok := n.Metadata["recipient_email"].(string)
	if !ok || to == "" {
		return errors.New("notification metadata has no recipient_email")
	}

	subject, body, err := dispatch.RenderEmail(n)
	if err != nil {
		return err
	}

	return d.email.Send(ctx, to, subject, body)
}

func (d *dispatcher) deliverPush(ctx context.Context, n *model.Notification) error {
	devices, err := d.devices.ActiveByUser(n.UserID, "")
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	if len(devices) == 0 {
		// Nothing registered; not a failure.
		return nil
	}

	msg := dispatch.PushMessage{
		Title:              n.Title,
		Body:               n.Message,
		Data:               n.Metadata,
		Priority:           string(n.Priority),
		RequireInteraction: n.Priority == model.PriorityUrgent,
	}

	var failed int
	var lastErr error
	for _, device := range devices {
		var sendErr error
		switch device.Kind {
		case model.DeviceMobilePush:
			if d.mobilePush == nil {
				sendErr = errors.New("mobile push sender not configured")
			} else {
				sendErr = d.mobilePush.Send(ctx, device.Token, msg)
			}
		case model.DeviceBrowserPush:
			if d.webPush == nil {
				sendErr = errors.New("browser push sender not configured")
			} else {
				sendErr = d.webPush.Send(ctx, dispatch.BrowserTarget{
					Endpoint:  device.Endpoint,
					P256dhKey: device.P256dhKey,
					AuthKey:   device.AuthKey,
				}, msg)
			}
		default:
			sendErr = fmt.Errorf("unknown device kind %q", device.Kind)
		}

		if sendErr == nil {
			if err := d.devices.TouchLastUsed(device.ID, d.now()); err != nil {
				log.Printf("touch last_used for device %s: %v", device.ID, err)
			}
			continue
		}

		// Self-healing: a provider-reported dead target is deactivated so
		// future dispatches skip it.
		if errors.Is(sendErr, dispatch.ErrInvalidTarget) {
			if err := d.devices.Deactivate(device.ID); err != nil {
				log.Printf("deactivate device %s: %v", device.ID, err)
			}
		}
		failed++
		lastErr = sendErr
	}

	if failed == len(devices) {
		return fmt.Errorf("all %d push targets failed: %w", failed, lastErr)
	}
	return nil
}

func (d *dispatcher) deliverSMS(ctx context.Context, n *model.Notification) error {
	if d.sms == nil {
		return errors.New("sms sender not configured")
	}

	phone, ok := n.Metadata["recipient_phone"].(string)
	if !ok || phone == "" {
		return errors.New("notification metadata has no recipient_phone")
	}

	text := n.Title
	if n.Message != "" {
		text += ": " + n.Message
	}
	return d.sms.Send(ctx, phone, text)
}
