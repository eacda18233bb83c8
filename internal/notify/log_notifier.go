// Package notify доставляет события движка бронирований внешним получателям.
package notify

import (
	"context"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"go.uber.org/zap"
)

// LogNotifier пишет события в лог; используется, когда Telegram не настроен
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, ev *model.Event) error {
	fields := []zap.Field{
		zap.String("event_id", ev.ID.String()),
		zap.String("type", string(ev.Type)),
		zap.Int64("seq", ev.Seq),
		zap.Int64("slot_id", ev.SlotID),
		zap.Int64("branch_id", ev.BranchID),
		zap.Time("occurred_at", ev.OccurredAt),
	}
	if ev.BookingID != nil {
		fields = append(fields, zap.Int64("booking_id", *ev.BookingID))
	}
	if ev.StudentID != nil {
		fields = append(fields, zap.Int64("student_id", *ev.StudentID))
	}
	if ev.ReasonCode != "" {
		fields = append(fields, zap.String("reason_code", ev.ReasonCode))
	}

	n.logger.Info("Lifecycle event", fields...)
	return nil
}
