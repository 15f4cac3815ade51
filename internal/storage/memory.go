package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"barber_queue/internal/models"

	"github.com/google/uuid"
)

// MemoryQueueStore хранит очередь в памяти процесса.
// Транзакция работает с копией и подменяет состояние только при успехе,
// поэтому читатели вне транзакции видят лишь зафиксированные данные.
// Запись вне транзакции ждёт завершения текущей транзакции.
type MemoryQueueStore struct {
	txMu    sync.Mutex
	mu      sync.Mutex
	entries map[string]models.QueueEntry
	// staged: копия внутри транзакции, txMu уже удерживается владельцем
	staged bool
}

func NewMemoryQueueStore() *MemoryQueueStore {
	return &MemoryQueueStore{entries: make(map[string]models.QueueEntry)}
}

// write выполняет изменение; вне транзакции оно сериализуется с транзакциями.
func (s *MemoryQueueStore) write(fn func() error) error {
	if !s.staged {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *MemoryQueueStore) Append(_ context.Context, entry *models.QueueEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.write(func() error {
		s.entries[entry.ID] = *entry
		return nil
	})
}

func (s *MemoryQueueStore) CountFor(_ context.Context, providerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.ProviderID == providerID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryQueueStore) ListFor(_ context.Context, providerID string) ([]models.QueueEntry, error) {
	s.mu.Lock()
	out := make([]models.QueueEntry, 0)
	for _, e := range s.entries {
		if e.ProviderID == providerID {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryQueueStore) Get(_ context.Context, entryID string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return models.QueueEntry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryQueueStore) Remove(_ context.Context, entryID string) error {
	return s.write(func() error {
		if _, ok := s.entries[entryID]; !ok {
			return ErrNotFound
		}
		delete(s.entries, entryID)
		return nil
	})
}

func (s *MemoryQueueStore) UpdatePosition(_ context.Context, entryID string, position int) error {
	return s.write(func() error {
		e, ok := s.entries[entryID]
		if !ok {
			return ErrNotFound
		}
		e.Position = position
		s.entries[entryID] = e
		return nil
	})
}

func (s *MemoryQueueStore) Providers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, e := range s.entries {
		if _, ok := seen[e.ProviderID]; ok {
			continue
		}
		seen[e.ProviderID] = struct{}{}
		ids = append(ids, e.ProviderID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryQueueStore) Transaction(_ context.Context, fn func(QueueStore) error) error {
	if s.staged {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	stage := &MemoryQueueStore{entries: make(map[string]models.QueueEntry, len(s.entries)), staged: true}
	for k, v := range s.entries {
		stage.entries[k] = v
	}
	s.mu.Unlock()

	if err := fn(stage); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = stage.entries
	s.mu.Unlock()
	return nil
}

type MemorySubscriptionStore struct {
	mu   sync.Mutex
	subs []models.PushSubscription
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{}
}

func (s *MemorySubscriptionStore) FindByUser(_ context.Context, userID string) ([]models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PushSubscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *MemorySubscriptionStore) FindAll(_ context.Context) ([]models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PushSubscription(nil), s.subs...), nil
}

func (s *MemorySubscriptionStore) DeleteByEndpoint(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.Endpoint != endpoint {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
	return nil
}

func (s *MemorySubscriptionStore) Save(_ context.Context, sub models.PushSubscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subs {
		if s.subs[i].Endpoint == sub.Endpoint {
			s.subs[i] = sub
			return nil
		}
	}
	s.subs = append(s.subs, sub)
	return nil
}

type MemoryStatusStore struct {
	mu       sync.Mutex
	statuses map[string]models.ProviderStatus
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]models.ProviderStatus)}
}

func (s *MemoryStatusStore) Get(_ context.Context, providerID string) (models.ProviderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[providerID]
	if !ok {
		return models.ProviderStatus{}, ErrNotFound
	}
	return st, nil
}

func (s *MemoryStatusStore) Create(_ context.Context, status models.ProviderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	status.UpdatedAt = time.Now().UTC()
	s.statuses[status.ProviderID] = status
	return nil
}

func (s *MemoryStatusStore) Update(_ context.Context, providerID string, isOpen bool, openedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[providerID]
	if !ok {
		return ErrNotFound
	}
	st.IsOpen = isOpen
	if openedAt != nil {
		st.OpenedAt = *openedAt
	}
	st.UpdatedAt = time.Now().UTC()
	s.statuses[providerID] = st
	return nil
}

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserStore(users ...models.User) *MemoryUserStore {
	s := &MemoryUserStore{users: make(map[string]models.User)}
	s.Put(users...)
	return s
}

func (s *MemoryUserStore) Put(users ...models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.ID] = u
	}
}

func (s *MemoryUserStore) FindByIDs(_ context.Context, ids []string) (map[string]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}
