package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/google/uuid"
)

// UserRepository контакты пользователей для доставки уведомлений.
// ID приходят из внешнего сервиса идентификации, поэтому Upsert, а не Create.
type UserRepository struct {
	*base.Repository
}

func NewUserRepository(q base.Querier) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(q)}
}

// Upsert создаёт или обновляет пользователя. Существующую привязку к другому чату
// не трогает: сначала её нужно снять через ClearTelegram
func (r *UserRepository) Upsert(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, telegram_id, first_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET telegram_id = EXCLUDED.telegram_id, first_name = EXCLUDED.first_name
		WHERE users.telegram_id IS NULL OR users.telegram_id = EXCLUDED.telegram_id
		RETURNING created_at
	`

	err := r.QueryRow(ctx, query, user.ID, user.TelegramID, user.FirstName).Scan(&user.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return apperr.New(apperr.CodeTelegramAlreadyLinked, "user is already linked to another telegram chat")
		}
		if base.IsUniqueViolation(err, "users_telegram_id_key") {
			return apperr.New(apperr.CodeTelegramAlreadyLinked, "telegram chat is linked to another user")
		}
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

// ClearTelegram снимает привязку чата
func (r *UserRepository) ClearTelegram(ctx context.Context, userID int64) error {
	query := `UPDATE users SET telegram_id = NULL WHERE id = $1`

	if _, err := r.ExecAffected(ctx, query, userID); err != nil {
		return fmt.Errorf("clear telegram: %w", err)
	}
	return nil
}

// CreateLinkToken сохраняет выданный токен привязки
func (r *UserRepository) CreateLinkToken(ctx context.Context, token *model.LinkToken) error {
	query := `
		INSERT INTO telegram_link_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.ExecAffected(ctx, query, token.Token, token.UserID, token.ExpiresAt, token.CreatedAt); err != nil {
		return fmt.Errorf("create link token: %w", err)
	}
	return nil
}

// ConsumeLinkToken атомарно гасит токен: повторное использование и истёкшие токены дают 0
func (r *UserRepository) ConsumeLinkToken(ctx context.Context, token uuid.UUID, at time.Time) (int64, error) {
	query := `
		UPDATE telegram_link_tokens
		SET used_at = $2
		WHERE token = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING user_id
	`

	var userID int64
	err := r.QueryRow(ctx, query, token, at).Scan(&userID)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("consume link token: %w", err)
	}

	return userID, nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, telegram_id, first_name, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.QueryRow(ctx, query, id).Scan(&user.ID, &user.TelegramID, &user.FirstName, &user.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `
		SELECT id, telegram_id, first_name, created_at
		FROM users
		WHERE telegram_id = $1
	`

	var user model.User
	err := r.QueryRow(ctx, query, telegramID).Scan(&user.ID, &user.TelegramID, &user.FirstName, &user.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}

	return &user, nil
}
