package model

import (
	"time"

	"github.com/google/uuid"
)

// User минимальная копия пользователя из внешнего сервиса идентификации,
// нужна только для доставки уведомлений
type User struct {
	ID         int64     `json:"id"`
	TelegramID *int64    `json:"telegram_id"`
	FirstName  string    `json:"first_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// LinkToken одноразовый токен из ссылки на бота; выдаётся владельцу учётной записи
type LinkToken struct {
	Token     uuid.UUID  `json:"token"`
	UserID    int64      `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable токен ещё не погашен и не истёк
func (t *LinkToken) Usable(at time.Time) bool {
	return t.UsedAt == nil && at.Before(t.ExpiresAt)
}
