// Package telegram привязывает Telegram-чаты студентов к их учётным записям,
// чтобы диспетчер уведомлений мог доставлять события бронирований.
// Привязка идёт только по одноразовой ссылке из личного кабинета.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/notify"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Users привязка Telegram к пользователю
type Users interface {
	LinkTelegram(ctx context.Context, token string, telegramID int64, firstName string) (*model.User, error)
	UnlinkTelegram(ctx context.Context, telegramID int64) (bool, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

// Bookings чтение бронирований студента
type Bookings interface {
	ListStudentBookings(ctx context.Context, studentID int64) ([]*model.Booking, error)
}

var (
	_ Users    = (*service.UserService)(nil)
	_ Bookings = (*service.BookingService)(nil)
)

type BotController struct {
	sender   notify.Sender
	users    Users
	bookings Bookings
	logger   *zap.Logger
}

func NewBotController(sender notify.Sender, users Users, bookings Bookings, logger *zap.Logger) *BotController {
	return &BotController{
		sender:   sender,
		users:    users,
		bookings: bookings,
		logger:   logger,
	}
}

// RegisterHandlers регистрирует команды и меню бота
func (c *BotController) RegisterHandlers(ctx context.Context, b *bot.Bot) error {
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, c.HandleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/mybookings", bot.MatchTypeExact, c.HandleMyBookings)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/stop", bot.MatchTypeExact, c.HandleStop)

	_, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: "🚀 Подключить уведомления"},
			{Command: "mybookings", Description: "📅 Мои записи на занятия"},
			{Command: "stop", Description: "🔕 Отключить уведомления"},
		},
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return fmt.Errorf("set bot commands: %w", err)
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// HandleStart "/start <token>" из ссылки в личном кабинете привязывает чат к пользователю
func (c *BotController) HandleStart(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	args := strings.Fields(update.Message.Text)
	if len(args) != 2 {
		c.send(ctx, chatID, "👋 Откройте ссылку на бота из личного кабинета, чтобы подключить уведомления.")
		return
	}

	from := update.Message.From
	user, err := c.users.LinkTelegram(ctx, args[1], from.ID, from.FirstName)
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeLinkTokenInvalid:
			c.send(ctx, chatID, "❌ Ссылка недействительна или устарела. Получите новую в личном кабинете.")
		case apperr.CodeTelegramAlreadyLinked:
			c.send(ctx, chatID, "❌ Уведомления для этой учётной записи уже подключены в другом чате, или этот чат привязан к другой учётной записи. Отключите их там командой /stop.")
		default:
			c.logger.Error("Failed to link telegram", zap.Int64("telegram_id", from.ID), zap.Error(err))
			c.send(ctx, chatID, "❌ Не удалось подключить уведомления. Попробуйте позже.")
		}
		return
	}

	c.send(ctx, chatID, fmt.Sprintf("✅ %s, уведомления о записях подключены.\n\n/mybookings - мои записи\n/stop - отключить уведомления", user.FirstName))
}

// HandleStop отвязывает чат
func (c *BotController) HandleStop(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	unlinked, err := c.users.UnlinkTelegram(ctx, update.Message.From.ID)
	if err != nil {
		c.logger.Error("Failed to unlink telegram", zap.Int64("telegram_id", update.Message.From.ID), zap.Error(err))
		c.send(ctx, chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}

	if !unlinked {
		c.send(ctx, chatID, "ℹ️ Уведомления в этом чате не подключены.")
		return
	}

	c.send(ctx, chatID, "🔕 Уведомления отключены.")
}

// HandleMyBookings список записей студента
func (c *BotController) HandleMyBookings(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	user, err := c.users.GetByTelegramID(ctx, update.Message.From.ID)
	if err != nil {
		c.logger.Error("Failed to get user", zap.Int64("telegram_id", update.Message.From.ID), zap.Error(err))
		c.send(ctx, chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}

	if user == nil {
		c.send(ctx, chatID, "❌ Чат не привязан. Используйте ссылку из личного кабинета.")
		return
	}

	bookings, err := c.bookings.ListStudentBookings(ctx, user.ID)
	if err != nil {
		c.logger.Error("Failed to list bookings", zap.Int64("student_id", user.ID), zap.Error(err))
		c.send(ctx, chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}

	c.send(ctx, chatID, FormatBookings(bookings))
}

// send отправляет сообщение и логирует если не удалось
func (c *BotController) send(ctx context.Context, chatID int64, text string) {
	_, err := c.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

var statusDisplay = map[model.BookingStatus]string{
	model.BookingStatusConfirmed: "✅ Подтверждена",
	model.BookingStatusCancelled: "❌ Отменена",
	model.BookingStatusCompleted: "🎓 Посещена",
	model.BookingStatusNoShow:    "⚠️ Пропущена",
}

// FormatBookings список записей для сообщения
func FormatBookings(bookings []*model.Booking) string {
	if len(bookings) == 0 {
		return "📅 У вас пока нет записей."
	}

	var sb strings.Builder
	sb.WriteString("📅 Ваши записи (" + notify.PluralizeBookings(len(bookings)) + "):\n")
	for _, b := range bookings {
		sb.WriteString(fmt.Sprintf("\n#%d · слот %d · %s", b.ID, b.SlotID, statusDisplay[b.Status]))
		if b.Slot != nil {
			sb.WriteString(" · " + notify.FormatDateTime(b.Slot.StartTime))
		}
	}
	return sb.String()
}
