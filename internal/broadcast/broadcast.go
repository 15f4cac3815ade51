// Package broadcast рассылает снимок очереди и статус мастера всем подключенным клиентам.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barber_queue/internal/models"
	"barber_queue/internal/queue"
	"barber_queue/internal/storage"
	"barber_queue/internal/ws"

	"github.com/rs/zerolog"
)

// Registry: источник соединений для рассылки (ws.Hub).
type Registry interface {
	ConnectionsFor(providerID string) []ws.Conn
}

type UserView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

type EntryView struct {
	ID        string    `json:"id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	User      UserView  `json:"user"`
}

type QueueUpdated struct {
	Entries []EntryView `json:"entries"`
}

// Snapshot содержит полную очередь мастера и его текущий статус.
type Snapshot struct {
	ProviderID string      `json:"providerId"`
	Entries    []EntryView `json:"entries"`
	IsOpen     bool        `json:"isOpen"`
}

// Engine читает и отправляет снимок под замком мастера: кадры одного мастера
// уходят в порядке чтения, и последний из них отражает последнее зафиксированное состояние.
type Engine struct {
	queue    storage.QueueStore
	users    storage.UserStore
	status   storage.StatusStore
	registry Registry
	sends    *queue.LocalLocker
	log      zerolog.Logger
}

func NewEngine(queueStore storage.QueueStore, users storage.UserStore, status storage.StatusStore, registry Registry, log zerolog.Logger) *Engine {
	return &Engine{
		queue:    queueStore,
		users:    users,
		status:   status,
		registry: registry,
		sends:    queue.NewLocalLocker(),
		log:      log,
	}
}

// Snapshot читает очередь по возрастанию позиции вместе с минимальными данными пользователей.
func (e *Engine) Snapshot(ctx context.Context, providerID string) (Snapshot, error) {
	entries, err := e.queue.ListFor(ctx, providerID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("чтение очереди: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.UserID)
	}
	users, err := e.users.FindByIDs(ctx, ids)
	if err != nil {
		return Snapshot{}, fmt.Errorf("чтение пользователей: %w", err)
	}

	isOpen := false
	st, err := e.status.Get(ctx, providerID)
	switch {
	case err == nil:
		isOpen = st.IsOpen
	case !errors.Is(err, storage.ErrNotFound):
		return Snapshot{}, fmt.Errorf("чтение статуса: %w", err)
	}

	views := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toView(entry, users[entry.UserID]))
	}
	return Snapshot{ProviderID: providerID, Entries: views, IsOpen: isOpen}, nil
}

func toView(entry models.QueueEntry, user models.User) EntryView {
	if user.ID == "" {
		user.ID = entry.UserID
	}
	return EntryView{
		ID:        entry.ID,
		Position:  entry.Position,
		CreatedAt: entry.CreatedAt,
		User:      UserView{ID: user.ID, Name: user.Name, IsAdmin: user.IsAdmin},
	}
}

// SendSnapshot отправляет снимок одному соединению (при подключении).
func (e *Engine) SendSnapshot(ctx context.Context, conn ws.Conn, providerID string) error {
	unlock, err := e.sends.Lock(ctx, providerID)
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := e.Snapshot(ctx, providerID)
	if err != nil {
		return err
	}
	frames, err := encode(snap)
	if err != nil {
		return err
	}
	for _, frame := range frames {
		if err := conn.Send(frame); err != nil {
			return err
		}
	}
	return nil
}

// BroadcastSnapshot рассылает снимок всем соединениям мастера.
// Ошибка доставки одному клиенту не мешает остальным; возвращается только ошибка чтения.
func (e *Engine) BroadcastSnapshot(ctx context.Context, providerID string) error {
	unlock, err := e.sends.Lock(ctx, providerID)
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := e.Snapshot(ctx, providerID)
	if err != nil {
		return err
	}
	frames, err := encode(snap)
	if err != nil {
		return err
	}

	conns := e.registry.ConnectionsFor(providerID)
	failed := 0
	for _, conn := range conns {
		for _, frame := range frames {
			if err := conn.Send(frame); err != nil {
				failed++
				e.log.Warn().Err(err).
					Str("provider_id", providerID).
					Str("conn_id", conn.ID()).
					Msg("Не удалось отправить обновление клиенту")
				break
			}
		}
	}

	e.log.Debug().
		Str("provider_id", providerID).
		Int("connections", len(conns)).
		Int("failed", failed).
		Int("entries", len(snap.Entries)).
		Msg("Очередь разослана")
	return nil
}

func encode(snap Snapshot) ([][]byte, error) {
	queue, err := ws.Encode(ws.EventQueueUpdated, QueueUpdated{Entries: snap.Entries})
	if err != nil {
		return nil, err
	}
	status, err := ws.Encode(ws.EventStatusChanged, ws.StatusChanged{IsOpen: snap.IsOpen})
	if err != nil {
		return nil, err
	}
	return [][]byte{queue, status}, nil
}
