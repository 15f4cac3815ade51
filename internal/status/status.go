// Package status переключает мастера между «открыт» и «закрыт».
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barber_queue/internal/async"
	"barber_queue/internal/models"
	"barber_queue/internal/notify"
	"barber_queue/internal/queue"
	"barber_queue/internal/storage"

	"github.com/rs/zerolog"
)

type State int

const (
	Unset State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unset"
	}
}

var ErrValidation = errors.New("не указан providerId")

// OpenAnnouncement рассылается всем подписчикам при открытии.
var OpenAnnouncement = notify.Message{
	Title: "Мы открыты ✂️",
	Body:  "Мы уже работаем! Занимайте очередь заранее, чтобы не ждать.",
}

type Broadcaster interface {
	BroadcastSnapshot(ctx context.Context, providerID string) error
}

type Announcer interface {
	NotifyAnnouncement(ctx context.Context, msg notify.Message) notify.Report
}

type Transition struct {
	From   State
	To     State
	Status models.ProviderStatus
}

type Controller struct {
	store     storage.StatusStore
	locker    queue.Locker
	broadcast Broadcaster
	announcer Announcer
	tasks     *async.Group
	now       func() time.Time
	log       zerolog.Logger
}

func NewController(store storage.StatusStore, locker queue.Locker, b Broadcaster, a Announcer, tasks *async.Group, log zerolog.Logger) *Controller {
	if locker == nil {
		locker = queue.NewLocalLocker()
	}
	return &Controller{
		store:     store,
		locker:    locker,
		broadcast: b,
		announcer: a,
		tasks:     tasks,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

func (c *Controller) State(ctx context.Context, providerID string) (State, error) {
	st, err := c.store.Get(ctx, providerID)
	if errors.Is(err, storage.ErrNotFound) {
		return Unset, nil
	}
	if err != nil {
		return Unset, err
	}
	if st.IsOpen {
		return Open, nil
	}
	return Closed, nil
}

// Toggle продвигает цикл Unset -> Open -> Closed -> Open ровно на один шаг.
// После фиксации очередь рассылается всегда, объявление уходит только при открытии.
func (c *Controller) Toggle(ctx context.Context, providerID string) (Transition, error) {
	if providerID == "" {
		return Transition{}, ErrValidation
	}

	unlock, err := c.locker.Lock(ctx, "status:"+providerID)
	if err != nil {
		return Transition{}, err
	}
	tr, err := c.advance(ctx, providerID)
	unlock()
	if err != nil {
		return Transition{}, err
	}

	c.log.Info().
		Str("provider_id", providerID).
		Stringer("from", tr.From).
		Stringer("to", tr.To).
		Msg("Статус мастера изменён")

	c.tasks.Go(ctx, "status-broadcast", func(ctx context.Context) error {
		return c.broadcast.BroadcastSnapshot(ctx, providerID)
	})
	if tr.To == Open {
		c.tasks.Go(ctx, "status-announcement", func(ctx context.Context) error {
			c.announcer.NotifyAnnouncement(ctx, OpenAnnouncement)
			return nil
		})
	}
	return tr, nil
}

func (c *Controller) advance(ctx context.Context, providerID string) (Transition, error) {
	st, err := c.store.Get(ctx, providerID)
	now := c.now()

	switch {
	case errors.Is(err, storage.ErrNotFound):
		st = models.ProviderStatus{ProviderID: providerID, IsOpen: true, OpenedAt: now}
		if err := c.store.Create(ctx, st); err != nil {
			return Transition{}, fmt.Errorf("создание статуса: %w", err)
		}
		return Transition{From: Unset, To: Open, Status: st}, nil

	case err != nil:
		return Transition{}, fmt.Errorf("чтение статуса: %w", err)

	case st.IsOpen:
		if err := c.store.Update(ctx, providerID, false, nil); err != nil {
			return Transition{}, fmt.Errorf("закрытие: %w", err)
		}
		st.IsOpen = false
		return Transition{From: Open, To: Closed, Status: st}, nil

	default:
		if err := c.store.Update(ctx, providerID, true, &now); err != nil {
			return Transition{}, fmt.Errorf("открытие: %w", err)
		}
		st.IsOpen = true
		st.OpenedAt = now
		return Transition{From: Closed, To: Open, Status: st}, nil
	}
}
