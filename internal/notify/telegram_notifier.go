package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Sender часть *bot.Bot, нужная для отправки сообщений
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier отправляет студенту сообщение о событии его бронирования
type TelegramNotifier struct {
	sender Sender
	store  repository.Tx
	logger *zap.Logger
}

func NewTelegramNotifier(sender Sender, store repository.Tx, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		store:  store,
		logger: logger,
	}
}

// Notify пропускает события без студента и студентов без привязанного Telegram
func (n *TelegramNotifier) Notify(ctx context.Context, ev *model.Event) error {
	if ev.StudentID == nil {
		return nil
	}

	user, err := n.store.Users().GetByID(ctx, *ev.StudentID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if user == nil || user.TelegramID == nil {
		n.logger.Debug("Student has no telegram chat, skipping",
			zap.Int64("student_id", *ev.StudentID),
			zap.String("type", string(ev.Type)),
		)
		return nil
	}

	slot, err := n.store.Slots().GetByID(ctx, ev.SlotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}

	text, ok := FormatEvent(ev, slot)
	if !ok {
		return nil
	}

	_, err = n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *user.TelegramID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	n.logger.Info("Notification sent",
		zap.Int64("student_id", *ev.StudentID),
		zap.Int64("chat_id", *user.TelegramID),
		zap.String("type", string(ev.Type)),
	)
	return nil
}
