// Package notify delivers fired rule messages to registered web-push
// subscribers. Delivery is best effort: a failed subscriber is logged and
// skipped, never retried, and never surfaces to the caller.
package notify

import (
	"context"
	"fmt"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/goccy/go-json"

	"github.com/luki/smoker/internal/logging"
)

// Subscription is an opaque push delivery target as registered by a
// browser client. Never mutated after creation.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) error
}

// WebPush sends via the web-push protocol with VAPID auth.
type WebPush struct {
	publicKey  string
	privateKey string
	subscriber string
}

// NewWebPush builds a sender from a VAPID key pair. Subscriber is the
// contact address required by push services (mailto: or https:).
func NewWebPush(publicKey, privateKey, subscriber string) *WebPush {
	return &WebPush{publicKey: publicKey, privateKey: privateKey, subscriber: subscriber}
}

func (w *WebPush) Send(ctx context.Context, sub Subscription, payload []byte) error {
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, target, &webpush.Options{
		Subscriber:      w.subscriber,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             int((30 * time.Second).Seconds()),
	})
	if err != nil {
		return fmt.Errorf("webpush send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webpush send: endpoint returned %d", resp.StatusCode)
	}
	return nil
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
}

// Dispatcher fans a message out to every subscriber.
type Dispatcher struct {
	sender Sender
	icon   string
}

// NewDispatcher wires a dispatcher to a sender. Icon is the notification
// icon path included in every payload.
func NewDispatcher(sender Sender, icon string) *Dispatcher {
	return &Dispatcher{sender: sender, icon: icon}
}

// Dispatch sends {title: "Smoker", body: message} to all subscribers.
// Each delivery is isolated: one expired endpoint or network error does
// not abort the rest. Nothing is returned; the rule cooldown already
// bounds how soon the message can recur.
func (d *Dispatcher) Dispatch(ctx context.Context, message string, subs []Subscription) {
	payload, err := json.Marshal(pushPayload{Title: "Smoker", Body: message, Icon: d.icon})
	if err != nil {
		logging.Error().Err(err).Msg("marshal push payload")
		return
	}

	for _, sub := range subs {
		if err := d.sender.Send(ctx, sub, payload); err != nil {
			logging.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("push delivery dropped")
		}
	}
}
