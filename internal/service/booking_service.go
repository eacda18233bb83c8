package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"go.uber.org/zap"
)

type BookingService struct {
	store     repository.Store
	allocator *Allocator
	machine   *BookingMachine
	emitter   *Emitter
	rules     Rules
	now       Clock
	logger    *zap.Logger
}

func NewBookingService(
	store repository.Store,
	allocator *Allocator,
	machine *BookingMachine,
	emitter *Emitter,
	rules Rules,
	now Clock,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		store:     store,
		allocator: allocator,
		machine:   machine,
		emitter:   emitter,
		rules:     rules.withDefaults(),
		now:       now,
		logger:    logger,
	}
}

// Book резервирует место и создаёт confirmed бронирование одной транзакцией
func (s *BookingService) Book(ctx context.Context, slotID, studentID int64, actor model.Actor) (*model.Booking, error) {
	now := s.now()
	var booking *model.Booking

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		slot, token, err := s.allocator.Reserve(ctx, tx, slotID, studentID, now)
		if err != nil {
			return err
		}

		booking, err = s.machine.Confirm(ctx, tx, slot, studentID, token, actor, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot booked",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("slot_id", slotID),
		zap.Int("reserved_count", booking.Slot.ReservedCount),
		zap.Int("capacity", booking.Slot.Capacity),
	)

	return booking, nil
}

// Cancel отменяет бронирование; bypassWindow разрешён только с явной причиной
func (s *BookingService) Cancel(ctx context.Context, bookingID int64, actor model.Actor, reason *model.CancellationReason, bypassWindow bool) (*model.Booking, error) {
	return s.machine.Transition(ctx, bookingID, TransitionRequest{
		Target:       model.BookingStatusCancelled,
		Actor:        actor,
		Reason:       reason,
		BypassWindow: bypassWindow,
	})
}

// MarkAttendance attended=true ведёт в completed, false - в no_show
func (s *BookingService) MarkAttendance(ctx context.Context, bookingID int64, attended bool, actor model.Actor) (*model.Booking, error) {
	target := model.BookingStatusNoShow
	if attended {
		target = model.BookingStatusCompleted
	}

	return s.machine.Transition(ctx, bookingID, TransitionRequest{
		Target: target,
		Actor:  actor,
	})
}

// Reschedule отменяет старое бронирование (SCHEDULE_CHANGE) и бронирует новый слот; либо всё, либо ничего
func (s *BookingService) Reschedule(ctx context.Context, bookingID, newSlotID int64, actor model.Actor) (*model.Booking, error) {
	now := s.now()
	reason := model.ReasonScheduleChange
	var old, booking *model.Booking

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		old, err = tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}

		if old == nil {
			return apperr.New(apperr.CodeBookingNotFound, "booking not found")
		}

		if old.SlotID == newSlotID {
			return apperr.New(apperr.CodeInvalidArgument, "booking is already on this slot")
		}

		err = s.machine.apply(ctx, tx, old, TransitionRequest{
			Target: model.BookingStatusCancelled,
			Actor:  actor,
			Reason: &reason,
		}, now)
		if err != nil {
			return err
		}

		slot, token, err := s.allocator.Reserve(ctx, tx, newSlotID, old.StudentID, now)
		if err != nil {
			return err
		}

		booking, err = s.machine.Confirm(ctx, tx, slot, old.StudentID, token, actor, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking rescheduled",
		zap.Int64("old_booking_id", old.ID),
		zap.Int64("booking_id", booking.ID),
		zap.Int64("old_slot_id", old.SlotID),
		zap.Int64("slot_id", newSlotID),
		zap.Int64("actor_id", actor.ID),
	)

	return booking, nil
}

// GetBooking возвращает бронирование вместе со слотом
func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*model.Booking, error) {
	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	if booking == nil {
		return nil, apperr.New(apperr.CodeBookingNotFound, "booking not found")
	}

	slot, err := s.store.Slots().GetByID(ctx, booking.SlotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	booking.Slot = slot

	return booking, nil
}

// ListStudentBookings бронирования студента, новые первыми
func (s *BookingService) ListStudentBookings(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	bookings, err := s.store.Bookings().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// SweepNoShows переводит в no_show confirmed бронирования, чей слот закончился раньше now - grace.
// Повторный запуск ничего не меняет: бронирование вне confirmed пропускается без ошибки.
func (s *BookingService) SweepNoShows(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.rules.NoShowGracePeriod)

	ids, err := s.store.Bookings().ListConfirmedEndedBefore(ctx, cutoff, s.rules.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list overdue bookings: %w", err)
	}

	marked := 0
	var errs []error

	for _, id := range ids {
		changed := false

		err := s.store.InTx(ctx, func(tx repository.Tx) error {
			booking, err := tx.Bookings().GetForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("lock booking: %w", err)
			}

			// Уже отмечен или отменён параллельно
			if booking == nil || booking.Status != model.BookingStatusConfirmed {
				return nil
			}

			changed = true
			return s.machine.apply(ctx, tx, booking, TransitionRequest{
				Target: model.BookingStatusNoShow,
				Actor:  model.SystemActor,
			}, now)
		})
		if err != nil {
			s.logger.Error("Failed to mark no-show", zap.Int64("booking_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("booking %d: %w", id, err))
			continue
		}

		if changed {
			marked++
		}
	}

	if marked > 0 {
		s.logger.Info("No-show sweep completed", zap.Int("marked", marked))
	}

	return marked, errors.Join(errs...)
}

// SweepReminders пишет booking.reminder_due для занятий, начинающихся в ближайшие ReminderLead.
// reminded_at гарантирует одно напоминание на бронирование.
func (s *BookingService) SweepReminders(ctx context.Context) (int, error) {
	now := s.now()

	ids, err := s.store.Bookings().ListConfirmedStartingBetween(ctx, now, now.Add(s.rules.ReminderLead), s.rules.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list upcoming bookings: %w", err)
	}

	sent := 0
	var errs []error

	for _, id := range ids {
		changed := false

		err := s.store.InTx(ctx, func(tx repository.Tx) error {
			booking, err := tx.Bookings().GetForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("lock booking: %w", err)
			}

			if booking == nil || booking.Status != model.BookingStatusConfirmed || booking.RemindedAt != nil {
				return nil
			}

			slot, err := tx.Slots().GetByID(ctx, booking.SlotID)
			if err != nil {
				return fmt.Errorf("get slot: %w", err)
			}

			remindedAt := now
			booking.RemindedAt = &remindedAt
			booking.UpdatedAt = now

			if err := tx.Bookings().Update(ctx, booking); err != nil {
				return fmt.Errorf("update booking: %w", err)
			}

			ev := model.NewBookingEvent(model.EventBookingReminderDue, booking, slot, model.SystemActor, now)
			ev.Payload = map[string]string{
				"start_time": slot.StartTime.UTC().Format(time.RFC3339),
			}

			changed = true
			return s.emitter.Emit(ctx, tx, ev)
		})
		if err != nil {
			s.logger.Error("Failed to schedule reminder", zap.Int64("booking_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("booking %d: %w", id, err))
			continue
		}

		if changed {
			sent++
		}
	}

	if sent > 0 {
		s.logger.Info("Reminder sweep completed", zap.Int("reminders", sent))
	}

	return sent, errors.Join(errs...)
}

// VerifySlotBalance сверяет reserved_count с числом бронирований, занимающих место
func (s *BookingService) VerifySlotBalance(ctx context.Context, slotID int64) error {
	slot, err := s.store.Slots().GetByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}

	if slot == nil {
		return apperr.New(apperr.CodeSlotNotFound, "slot not found")
	}

	holders, err := s.store.Bookings().CountSeatHolders(ctx, slotID)
	if err != nil {
		return fmt.Errorf("count seat holders: %w", err)
	}

	if holders != slot.ReservedCount || slot.ReservedCount > slot.Capacity {
		s.logger.Error("Slot reservation count out of balance",
			zap.Int64("slot_id", slotID),
			zap.Int("reserved_count", slot.ReservedCount),
			zap.Int("seat_holders", holders),
			zap.Int("capacity", slot.Capacity),
			zap.String("operation", "verify_slot_balance"),
		)
		return apperr.WithMetadata(apperr.CodeInvariantViolation, "slot reservation count out of balance", map[string]string{
			"reserved_count": strconv.Itoa(slot.ReservedCount),
			"seat_holders":   strconv.Itoa(holders),
		})
	}

	return nil
}
