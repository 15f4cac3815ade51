// Package queue изменяет очереди мастеров, сохраняя позиции плотными: 1..N без пропусков и повторов.
// Рассылка и уведомления сюда не входят, ими занимается вызывающий код.
package queue

import (
	"context"
	"errors"
	"fmt"

	"barber_queue/internal/models"
	"barber_queue/internal/storage"

	"github.com/rs/zerolog"
)

var (
	ErrValidation    = errors.New("некорректный запрос")
	ErrEntryNotFound = errors.New("запись в очереди не найдена")
)

// LeaveResult содержит удалённую запись и оставшиеся записи до и после перенумерации.
type LeaveResult struct {
	Removed models.QueueEntry
	Before  []models.QueueEntry
	After   []models.QueueEntry
}

type Coordinator struct {
	store  storage.QueueStore
	locker Locker
	log    zerolog.Logger
}

func NewCoordinator(store storage.QueueStore, locker Locker, log zerolog.Logger) *Coordinator {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Coordinator{store: store, locker: locker, log: log}
}

// Join ставит пользователя в конец очереди мастера (позиция N+1).
func (c *Coordinator) Join(ctx context.Context, providerID, userID string) (models.QueueEntry, error) {
	if providerID == "" || userID == "" {
		return models.QueueEntry{}, fmt.Errorf("%w: providerId и userId обязательны", ErrValidation)
	}

	unlock, err := c.locker.Lock(ctx, providerID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer unlock()

	var entry models.QueueEntry
	err = c.store.Transaction(ctx, func(tx storage.QueueStore) error {
		count, err := tx.CountFor(ctx, providerID)
		if err != nil {
			return fmt.Errorf("подсчёт очереди: %w", err)
		}
		entry = models.QueueEntry{
			ProviderID: providerID,
			UserID:     userID,
			Position:   count + 1,
		}
		if err := tx.Append(ctx, &entry); err != nil {
			return fmt.Errorf("добавление в очередь: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.QueueEntry{}, err
	}

	c.log.Debug().
		Str("provider_id", providerID).
		Str("user_id", userID).
		Int("position", entry.Position).
		Msg("Пользователь встал в очередь")
	return entry, nil
}

// Leave удаляет запись и сдвигает всех, кто стоял за ней, на одну позицию вперёд.
func (c *Coordinator) Leave(ctx context.Context, entryID, providerID string) (LeaveResult, error) {
	if entryID == "" || providerID == "" {
		return LeaveResult{}, fmt.Errorf("%w: entryId и providerId обязательны", ErrValidation)
	}

	unlock, err := c.locker.Lock(ctx, providerID)
	if err != nil {
		return LeaveResult{}, err
	}
	defer unlock()

	var res LeaveResult
	err = c.store.Transaction(ctx, func(tx storage.QueueStore) error {
		entry, err := tx.Get(ctx, entryID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && entry.ProviderID != providerID) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("поиск записи: %w", err)
		}
		if err := tx.Remove(ctx, entryID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("удаление записи: %w", err)
		}

		before, after, err := renumber(ctx, tx, providerID)
		if err != nil {
			return err
		}
		res = LeaveResult{Removed: entry, Before: before, After: after}
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}

	c.log.Debug().
		Str("provider_id", providerID).
		Str("entry_id", entryID).
		Int("left_position", res.Removed.Position).
		Int("remaining", len(res.After)).
		Msg("Пользователь вышел из очереди")
	return res, nil
}

// Renumber восстанавливает плотность позиций без удаления. Возвращает true, если что-то поменялось.
func (c *Coordinator) Renumber(ctx context.Context, providerID string) (bool, error) {
	unlock, err := c.locker.Lock(ctx, providerID)
	if err != nil {
		return false, err
	}
	defer unlock()

	changed := false
	err = c.store.Transaction(ctx, func(tx storage.QueueStore) error {
		before, after, err := renumber(ctx, tx, providerID)
		if err != nil {
			return err
		}
		for i := range before {
			if before[i].Position != after[i].Position {
				changed = true
				break
			}
		}
		return nil
	})
	return changed, err
}

// Entries возвращает текущую очередь мастера.
func (c *Coordinator) Entries(ctx context.Context, providerID string) ([]models.QueueEntry, error) {
	return c.store.ListFor(ctx, providerID)
}

// Providers перечисляет мастеров, у которых есть записи.
func (c *Coordinator) Providers(ctx context.Context) ([]string, error) {
	return c.store.Providers(ctx)
}

// renumber переписывает позиции в 1..N, сохраняя текущий порядок.
// Обновляются только записи, чья позиция изменилась.
func renumber(ctx context.Context, tx storage.QueueStore, providerID string) (before, after []models.QueueEntry, err error) {
	before, err = tx.ListFor(ctx, providerID)
	if err != nil {
		return nil, nil, fmt.Errorf("чтение очереди: %w", err)
	}

	after = make([]models.QueueEntry, len(before))
	for i, e := range before {
		e.Position = i + 1
		after[i] = e
		if before[i].Position == e.Position {
			continue
		}
		if err := tx.UpdatePosition(ctx, e.ID, e.Position); err != nil {
			return nil, nil, fmt.Errorf("перенумерация записи %s: %w", e.ID, err)
		}
	}
	return before, after, nil
}
