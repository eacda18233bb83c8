package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"go.uber.org/zap"
)

// Emitter пишет событие в outbox той же транзакцией, что и изменение состояния
type Emitter struct {
	logger *zap.Logger
}

func NewEmitter(logger *zap.Logger) *Emitter {
	return &Emitter{logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, tx repository.Tx, ev *model.Event) error {
	if err := tx.Events().Append(ctx, ev); err != nil {
		return fmt.Errorf("append event %s: %w", ev.Type, err)
	}

	e.logger.Debug("Event recorded",
		zap.String("event_id", ev.ID.String()),
		zap.String("type", string(ev.Type)),
		zap.Int64("slot_id", ev.SlotID),
	)
	return nil
}
