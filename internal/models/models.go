package models

import "time"

// User только читается ядром очереди.
type User struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"not null"`
	IsAdmin   bool   `gorm:"default:false"`
	CreatedAt time.Time
}

// All перечисляет модели для AutoMigrate.
func All() []interface{} {
	return []interface{}{&User{}, &QueueEntry{}, &PushSubscription{}, &ProviderStatus{}}
}
