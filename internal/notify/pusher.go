package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"barber_queue/internal/config"
	"barber_queue/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Outcome описывает результат одной попытки доставки.
type Outcome int

const (
	Delivered Outcome = iota
	// Gone: endpoint больше никогда не примет сообщение, подписку нужно удалить.
	Gone
	Transient
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Gone:
		return "gone"
	default:
		return "transient"
	}
}

// Pusher доставляет payload на одно устройство.
type Pusher interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) (Outcome, error)
}

// WebPusher отправляет web push с VAPID-подписью. Ключи приходят из конфигурации процесса.
type WebPusher struct {
	subject    string
	publicKey  string
	privateKey string
	ttl        int
	client     webpush.HTTPClient
}

func NewWebPusher(cfg config.Push) *WebPusher {
	return &WebPusher{
		subject:    cfg.Subject,
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		ttl:        cfg.TTL,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *WebPusher) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (Outcome, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      p.client,
		Subscriber:      p.subject,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey,
		TTL:             p.ttl,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return Transient, fmt.Errorf("отправка push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classify(resp.StatusCode)
}

func classify(status int) (Outcome, error) {
	switch {
	case status >= 200 && status < 300:
		return Delivered, nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return Gone, fmt.Errorf("push endpoint недействителен: %d", status)
	default:
		return Transient, fmt.Errorf("push сервис ответил %d", status)
	}
}

// NopPusher используется, когда push-уведомления выключены.
type NopPusher struct{}

func (NopPusher) Send(context.Context, models.PushSubscription, []byte) (Outcome, error) {
	return Delivered, nil
}

var _ Pusher = (*WebPusher)(nil)
