package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Allocator единственный, кто меняет reserved_count слота.
// Оба метода работают внутри транзакции вызывающего, чтобы бронирование
// и событие фиксировались вместе с изменением счётчика.
type Allocator struct {
	logger *zap.Logger
}

func NewAllocator(logger *zap.Logger) *Allocator {
	return &Allocator{logger: logger}
}

// Reserve занимает одно место и возвращает токен резервации.
// Строка слота блокируется до конца транзакции, поэтому проверка и инкремент линейризуемы.
func (a *Allocator) Reserve(ctx context.Context, tx repository.Tx, slotID, studentID int64, now time.Time) (*model.Slot, uuid.UUID, error) {
	slot, err := tx.Slots().GetForUpdate(ctx, slotID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("lock slot: %w", err)
	}

	if slot == nil {
		return nil, uuid.Nil, apperr.New(apperr.CodeSlotNotFound, "slot not found")
	}

	if !slot.IsActive {
		return nil, uuid.Nil, apperr.New(apperr.CodeSlotInactive, "slot is blocked")
	}

	if !slot.BranchActive {
		return nil, uuid.Nil, apperr.New(apperr.CodeBranchInactive, "branch is inactive")
	}

	if !now.Before(slot.StartTime) {
		return nil, uuid.Nil, apperr.WithMetadata(apperr.CodeSlotInPast, "slot has already started", map[string]string{
			"start_time": slot.StartTime.UTC().Format(time.RFC3339),
		})
	}

	active, err := tx.Bookings().HasActive(ctx, studentID, slotID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("check active booking: %w", err)
	}

	if active {
		return nil, uuid.Nil, apperr.New(apperr.CodeDuplicateReservation, "student already holds a booking on this slot")
	}

	ok, err := tx.Slots().IncrementReserved(ctx, slotID, now)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("increment reserved: %w", err)
	}

	if !ok {
		return nil, uuid.Nil, apperr.WithMetadata(apperr.CodeCapacityExceeded, "slot is full", map[string]string{
			"available": "0",
			"capacity":  strconv.Itoa(slot.Capacity),
		})
	}

	slot.ReservedCount++
	slot.UpdatedAt = now

	return slot, uuid.New(), nil
}

// Release возвращает одно место. Release без парного Reserve - ошибка вызывающего:
// счётчик не трогается, операция прерывается с INVARIANT_VIOLATION.
func (a *Allocator) Release(ctx context.Context, tx repository.Tx, slot *model.Slot, bookingID int64, actor model.Actor, now time.Time) error {
	ok, err := tx.Slots().DecrementReserved(ctx, slot.ID, now)
	if err != nil {
		return fmt.Errorf("decrement reserved: %w", err)
	}

	if !ok {
		a.logger.Error("Release without matching reserve",
			zap.Int64("slot_id", slot.ID),
			zap.Int64("booking_id", bookingID),
			zap.Int("reserved_count", slot.ReservedCount),
			zap.Int("capacity", slot.Capacity),
			zap.String("operation", "release"),
			zap.Int64("actor_id", actor.ID),
			zap.String("actor_role", string(actor.Role)),
		)
		return apperr.New(apperr.CodeInvariantViolation, "release without matching reserve")
	}

	if slot.ReservedCount > 0 {
		slot.ReservedCount--
	}
	slot.UpdatedAt = now

	return nil
}
