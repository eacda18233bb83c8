package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLinkTTL срок жизни ссылки на бота
const DefaultLinkTTL = 15 * time.Minute

// UserService хранит привязку пользователя к Telegram-чату для доставки уведомлений.
// Сами пользователи заводятся внешним сервисом идентификации.
type UserService struct {
	store   repository.Store
	linkTTL time.Duration
	now     Clock
	logger  *zap.Logger
}

func NewUserService(store repository.Store, linkTTL time.Duration, now Clock, logger *zap.Logger) *UserService {
	if linkTTL <= 0 {
		linkTTL = DefaultLinkTTL
	}

	return &UserService{
		store:   store,
		linkTTL: linkTTL,
		now:     now,
		logger:  logger,
	}
}

// IssueLinkToken выдаёт одноразовый токен для ссылки "/start <token>"
func (s *UserService) IssueLinkToken(ctx context.Context, userID int64) (*model.LinkToken, error) {
	if userID <= 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "user id must be positive")
	}

	now := s.now()
	token := &model.LinkToken{
		Token:     uuid.New(),
		UserID:    userID,
		ExpiresAt: now.Add(s.linkTTL),
		CreatedAt: now,
	}

	if err := s.store.Users().CreateLinkToken(ctx, token); err != nil {
		return nil, fmt.Errorf("create link token: %w", err)
	}

	s.logger.Info("Telegram link token issued",
		zap.Int64("user_id", userID),
		zap.Time("expires_at", token.ExpiresAt),
	)

	return token, nil
}

// LinkTelegram гасит токен и привязывает чат к его владельцу.
// Если Upsert отказал, токен остаётся действующим: транзакция откатывается целиком
func (s *UserService) LinkTelegram(ctx context.Context, rawToken string, telegramID int64, firstName string) (*model.User, error) {
	token, err := uuid.Parse(rawToken)
	if err != nil {
		return nil, apperr.New(apperr.CodeLinkTokenInvalid, "link token is malformed")
	}

	now := s.now()
	var user *model.User

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		userID, err := tx.Users().ConsumeLinkToken(ctx, token, now)
		if err != nil {
			return err
		}

		if userID == 0 {
			return apperr.New(apperr.CodeLinkTokenInvalid, "link token is unknown, expired or already used")
		}

		user = &model.User{
			ID:         userID,
			TelegramID: &telegramID,
			FirstName:  firstName,
			CreatedAt:  now,
		}
		return tx.Users().Upsert(ctx, user)
	})
	if err != nil {
		if apperr.CodeOf(err) != apperr.CodeUnknown {
			s.logger.Warn("Telegram link rejected", zap.Int64("telegram_id", telegramID), zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("link telegram: %w", err)
	}

	s.logger.Info("Telegram linked",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
	)

	return user, nil
}

// UnlinkTelegram отключает уведомления в чате; false - чат не был привязан
func (s *UserService) UnlinkTelegram(ctx context.Context, telegramID int64) (bool, error) {
	user, err := s.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return false, err
	}

	if user == nil {
		return false, nil
	}

	if err := s.store.Users().ClearTelegram(ctx, user.ID); err != nil {
		return false, fmt.Errorf("clear telegram: %w", err)
	}

	s.logger.Info("Telegram unlinked",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
	)

	return true, nil
}

// GetByTelegramID возвращает пользователя, привязанного к чату, или nil
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.store.Users().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}
	return user, nil
}
