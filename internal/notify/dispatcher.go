// Package notify доставляет push-уведомления пользователям, которые сейчас не подключены.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"barber_queue/internal/models"
	"barber_queue/internal/storage"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Policy определяет, сколько устройств пользователя получают уведомление о позиции.
type Policy int

const (
	PolicyAllDevices Policy = iota
	PolicyFirstDevice
)

const defaultIcon = "/icon.png"

type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
}

// PositionMessage собирает уведомление о новой позиции.
func PositionMessage(position int) Message {
	return Message{
		Title: "Изменение в очереди",
		Body:  fmt.Sprintf("Ваша позиция в очереди теперь #%d.", position),
		Icon:  defaultIcon,
	}
}

// Report подводит итог рассылки.
type Report struct {
	Attempted int
	Delivered int
	Gone      int
	Failed    int
}

type counters struct {
	attempted, delivered, gone, failed atomic.Int64
}

func (c *counters) report() Report {
	return Report{
		Attempted: int(c.attempted.Load()),
		Delivered: int(c.delivered.Load()),
		Gone:      int(c.gone.Load()),
		Failed:    int(c.failed.Load()),
	}
}

type Dispatcher struct {
	subs        storage.SubscriptionStore
	pusher      Pusher
	policy      Policy
	concurrency int
	log         zerolog.Logger
}

type Option func(*Dispatcher)

func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithConcurrency ограничивает число одновременных доставок.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

func NewDispatcher(subs storage.SubscriptionStore, pusher Pusher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subs:        subs,
		pusher:      pusher,
		policy:      PolicyAllDevices,
		concurrency: 8,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// PositionChanges возвращает записи из after, которые есть в before с другой позицией.
// Вышедшая запись в after отсутствует и поэтому не попадает в результат.
func PositionChanges(before, after []models.QueueEntry) []models.QueueEntry {
	prev := make(map[string]int, len(before))
	for _, e := range before {
		prev[e.ID] = e.Position
	}
	var changed []models.QueueEntry
	for _, e := range after {
		if pos, ok := prev[e.ID]; ok && pos != e.Position {
			changed = append(changed, e)
		}
	}
	return changed
}

// NotifyPositionChanges сообщает каждому пользователю, чья позиция изменилась, его новый номер.
// Метод возвращается после завершения всех доставок.
func (d *Dispatcher) NotifyPositionChanges(ctx context.Context, providerID string, before, after []models.QueueEntry) Report {
	changed := PositionChanges(before, after)
	var c counters
	if len(changed) == 0 {
		return c.report()
	}

	g := d.group()
	for _, entry := range changed {
		entry := entry
		g.Go(func() error {
			subs, err := d.subs.FindByUser(ctx, entry.UserID)
			if err != nil {
				d.log.Error().Err(err).Str("user_id", entry.UserID).Msg("Ошибка поиска push-подписки")
				return nil
			}
			if len(subs) == 0 {
				return nil
			}
			if d.policy == PolicyFirstDevice {
				subs = subs[:1]
			}
			payload, err := json.Marshal(PositionMessage(entry.Position))
			if err != nil {
				return nil
			}
			for _, sub := range subs {
				d.deliver(ctx, sub, payload, &c)
			}
			return nil
		})
	}
	_ = g.Wait()

	r := c.report()
	d.log.Info().
		Str("provider_id", providerID).
		Int("changed", len(changed)).
		Int("delivered", r.Delivered).
		Int("gone", r.Gone).
		Int("failed", r.Failed).
		Msg("Уведомления о позициях отправлены")
	return r
}

// NotifyAnnouncement рассылает сообщение по всем известным подпискам.
func (d *Dispatcher) NotifyAnnouncement(ctx context.Context, msg Message) Report {
	var c counters
	if msg.Icon == "" {
		msg.Icon = defaultIcon
	}

	subs, err := d.subs.FindAll(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("Ошибка чтения push-подписок")
		return c.report()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return c.report()
	}

	g := d.group()
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			d.deliver(ctx, sub, payload, &c)
			return nil
		})
	}
	_ = g.Wait()

	r := c.report()
	d.log.Info().
		Int("subscriptions", len(subs)).
		Int("delivered", r.Delivered).
		Int("gone", r.Gone).
		Int("failed", r.Failed).
		Msg("Объявление разослано")
	return r
}

func (d *Dispatcher) group() *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	return g
}

func (d *Dispatcher) deliver(ctx context.Context, sub models.PushSubscription, payload []byte, c *counters) {
	c.attempted.Add(1)
	outcome, err := d.pusher.Send(ctx, sub, payload)
	switch outcome {
	case Delivered:
		c.delivered.Add(1)
	case Gone:
		c.gone.Add(1)
		d.log.Warn().Str("endpoint", sub.Endpoint).Msg("Удаляем недействительную push-подписку")
		if err := d.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
			d.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("Не удалось удалить push-подписку")
		}
	default:
		c.failed.Add(1)
		d.log.Error().Err(err).
			Str("user_id", sub.UserID).
			Str("endpoint", sub.Endpoint).
			Msg("Ошибка при отправке push-уведомления")
	}
}
