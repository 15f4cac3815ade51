package storage

import (
	"context"
	"errors"
	"time"

	"barber_queue/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueueStore хранит упорядоченные записи очереди по мастерам.
type QueueStore interface {
	Append(ctx context.Context, entry *models.QueueEntry) error
	CountFor(ctx context.Context, providerID string) (int, error)
	// ListFor возвращает записи мастера по возрастанию позиции.
	ListFor(ctx context.Context, providerID string) ([]models.QueueEntry, error)
	Get(ctx context.Context, entryID string) (models.QueueEntry, error)
	Remove(ctx context.Context, entryID string) error
	UpdatePosition(ctx context.Context, entryID string, position int) error
	Providers(ctx context.Context) ([]string, error)
	// Transaction выполняет fn атомарно: при ошибке ни одно изменение не сохраняется.
	Transaction(ctx context.Context, fn func(QueueStore) error) error
}

type queueStore struct {
	db *gorm.DB
}

func NewQueueStore(db *gorm.DB) QueueStore {
	return &queueStore{db: db}
}

func (s *queueStore) Append(ctx context.Context, entry *models.QueueEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *queueStore) CountFor(ctx context.Context, providerID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("provider_id = ?", providerID).
		Count(&n).Error
	return int(n), err
}

func (s *queueStore) ListFor(ctx context.Context, providerID string) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := s.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (s *queueStore) Get(ctx context.Context, entryID string) (models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db.WithContext(ctx).Where("id = ?", entryID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entry, ErrNotFound
	}
	return entry, err
}

func (s *queueStore) Remove(ctx context.Context, entryID string) error {
	res := s.db.WithContext(ctx).Where("id = ?", entryID).Delete(&models.QueueEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *queueStore) UpdatePosition(ctx context.Context, entryID string, position int) error {
	res := s.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("id = ?", entryID).
		Update("position", position)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *queueStore) Providers(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Distinct("provider_id").
		Pluck("provider_id", &ids).Error
	return ids, err
}

func (s *queueStore) Transaction(ctx context.Context, fn func(QueueStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&queueStore{db: tx})
	})
}
