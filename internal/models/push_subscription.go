package models

import (
	"errors"
	"net/url"
	"time"
)

var ErrInvalidSubscription = errors.New("некорректная push-подписка")

// PushSubscription хранит endpoint одного устройства пользователя.
type PushSubscription struct {
	Endpoint  string `gorm:"primaryKey"`
	P256dh    string `gorm:"column:p256dh;not null"`
	Auth      string `gorm:"not null"`
	UserID    string `gorm:"size:64;index;not null"`
	CreatedAt time.Time
}

// Validate проверяет обязательные поля. Вызывается хранилищем до сохранения,
// поэтому рассылка всегда работает с полными записями.
func (s PushSubscription) Validate() error {
	switch {
	case s.Endpoint == "":
		return errors.Join(ErrInvalidSubscription, errors.New("endpoint пуст"))
	case s.P256dh == "" || s.Auth == "":
		return errors.Join(ErrInvalidSubscription, errors.New("ключи p256dh/auth обязательны"))
	case s.UserID == "":
		return errors.Join(ErrInvalidSubscription, errors.New("user_id обязателен"))
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return errors.Join(ErrInvalidSubscription, errors.New("endpoint должен быть https URL"))
	}
	return nil
}
