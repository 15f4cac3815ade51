package models

import "time"

// ProviderStatus создаётся при первом переключении и больше не удаляется.
// Отсутствие записи означает, что статус ни разу не менялся.
type ProviderStatus struct {
	ProviderID string    `gorm:"primaryKey;size:64"`
	IsOpen     bool      `gorm:"not null"`
	OpenedAt   time.Time // Время последнего открытия
	UpdatedAt  time.Time
}
