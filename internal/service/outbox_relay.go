package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"go.uber.org/zap"
)

// Notifier доставка событий внешнему диспетчеру уведомлений
type Notifier interface {
	Notify(ctx context.Context, ev *model.Event) error
}

// OutboxRelay доставляет записанные события по порядку seq и помечает их отправленными.
// Доставка at-least-once: сбой между Notify и MarkDispatched приведёт к повтору.
type OutboxRelay struct {
	store     repository.Store
	notifier  Notifier
	batchSize int
	now       Clock
	logger    *zap.Logger
}

func NewOutboxRelay(store repository.Store, notifier Notifier, batchSize int, now Clock, logger *zap.Logger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		store:     store,
		notifier:  notifier,
		batchSize: batchSize,
		now:       now,
		logger:    logger,
	}
}

// Flush отправляет одну пачку; на первой ошибке останавливается, чтобы не нарушить порядок
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.Events().ListUndispatched(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list undispatched events: %w", err)
	}

	sent := 0
	for _, ev := range events {
		if err := r.notifier.Notify(ctx, ev); err != nil {
			r.logger.Warn("Failed to deliver event",
				zap.String("event_id", ev.ID.String()),
				zap.String("type", string(ev.Type)),
				zap.Int64("seq", ev.Seq),
				zap.Error(err),
			)
			return sent, fmt.Errorf("notify event %s: %w", ev.ID, err)
		}

		if err := r.store.Events().MarkDispatched(ctx, ev.ID, r.now()); err != nil {
			return sent, fmt.Errorf("mark event dispatched: %w", err)
		}
		sent++
	}

	if sent > 0 {
		r.logger.Debug("Outbox flushed", zap.Int("events", sent))
	}

	return sent, nil
}
