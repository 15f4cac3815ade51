package storage

import (
	"context"
	"time"

	"barber_queue/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionStore хранит push-подписки пользователей (по одной на устройство).
type SubscriptionStore interface {
	FindByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	FindAll(ctx context.Context) ([]models.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	Save(ctx context.Context, sub models.PushSubscription) error
}

type subscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) SubscriptionStore {
	return &subscriptionStore{db: db}
}

func (s *subscriptionStore) FindByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&subs).Error
	return subs, err
}

func (s *subscriptionStore) FindAll(ctx context.Context) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&subs).Error
	return subs, err
}

func (s *subscriptionStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).
		Where("endpoint = ?", endpoint).
		Delete(&models.PushSubscription{}).Error
}

// Save создаёт или обновляет подписку по endpoint.
func (s *subscriptionStore) Save(ctx context.Context, sub models.PushSubscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&sub).Error
}
