package storage

import (
	"context"
	"errors"
	"time"

	"barber_queue/internal/models"

	"gorm.io/gorm"
)

// StatusStore хранит флаг открыт/закрыт для каждого мастера.
type StatusStore interface {
	Get(ctx context.Context, providerID string) (models.ProviderStatus, error)
	Create(ctx context.Context, status models.ProviderStatus) error
	// Update меняет isOpen; openedAt обновляется только если передан.
	Update(ctx context.Context, providerID string, isOpen bool, openedAt *time.Time) error
}

type statusStore struct {
	db *gorm.DB
}

func NewStatusStore(db *gorm.DB) StatusStore {
	return &statusStore{db: db}
}

func (s *statusStore) Get(ctx context.Context, providerID string) (models.ProviderStatus, error) {
	var st models.ProviderStatus
	err := s.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return st, ErrNotFound
	}
	return st, err
}

func (s *statusStore) Create(ctx context.Context, status models.ProviderStatus) error {
	return s.db.WithContext(ctx).Create(&status).Error
}

func (s *statusStore) Update(ctx context.Context, providerID string, isOpen bool, openedAt *time.Time) error {
	fields := map[string]interface{}{"is_open": isOpen}
	if openedAt != nil {
		fields["opened_at"] = *openedAt
	}
	res := s.db.WithContext(ctx).
		Model(&models.ProviderStatus{}).
		Where("provider_id = ?", providerID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
