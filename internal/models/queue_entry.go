package models

import "time"

// QueueEntry описывает место пользователя в очереди к конкретному мастеру.
// Для одного ProviderID позиции всегда образуют ровно 1..N.
type QueueEntry struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ProviderID string    `gorm:"size:64;not null;uniqueIndex:idx_provider_position,priority:1"`
	UserID     string    `gorm:"size:64;index;not null"`
	Position   int       `gorm:"not null;uniqueIndex:idx_provider_position,priority:2"` // Текущая позиция в очереди
	CreatedAt  time.Time `gorm:"not null"`
}
