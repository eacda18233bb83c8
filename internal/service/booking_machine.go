package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/policy"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransitionRequest параметры перехода бронирования
type TransitionRequest struct {
	Target model.BookingStatus
	Actor  model.Actor
	// Reason код причины отмены; nil для студента означает STUDENT_REQUEST
	Reason *model.CancellationReason
	// BypassWindow отмена внутри окна; решение о праве на обход принимает вызывающий
	BypassWindow bool
}

// BookingMachine владеет статусом бронирования. Все переходы идут через apply,
// и это единственное место, где пишутся события бронирования.
type BookingMachine struct {
	store     repository.Store
	allocator *Allocator
	policy    policy.CancellationPolicy
	emitter   *Emitter
	rules     Rules
	now       Clock
	logger    *zap.Logger
}

func NewBookingMachine(
	store repository.Store,
	allocator *Allocator,
	emitter *Emitter,
	rules Rules,
	now Clock,
	logger *zap.Logger,
) *BookingMachine {
	rules = rules.withDefaults()
	return &BookingMachine{
		store:     store,
		allocator: allocator,
		policy:    policy.NewCancellationPolicy(rules.CancellationWindow),
		emitter:   emitter,
		rules:     rules,
		now:       now,
		logger:    logger,
	}
}

// Policy политика отмены, с которой работает автомат
func (m *BookingMachine) Policy() policy.CancellationPolicy {
	return m.policy
}

// Transition выполняет один переход в собственной транзакции
func (m *BookingMachine) Transition(ctx context.Context, bookingID int64, req TransitionRequest) (*model.Booking, error) {
	var booking *model.Booking

	err := m.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		booking, err = m.transitionTx(ctx, tx, bookingID, req, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	m.logTransition(booking, req)
	return booking, nil
}

// transitionTx блокирует бронирование и применяет переход внутри tx
func (m *BookingMachine) transitionTx(ctx context.Context, tx repository.Tx, bookingID int64, req TransitionRequest, now time.Time) (*model.Booking, error) {
	booking, err := tx.Bookings().GetForUpdate(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}

	if booking == nil {
		return nil, apperr.New(apperr.CodeBookingNotFound, "booking not found")
	}

	if err := m.apply(ctx, tx, booking, req, now); err != nil {
		return nil, err
	}

	return booking, nil
}

// apply проверяет переход по таблице и бизнес-правилам, сохраняет его и пишет ровно одно событие
func (m *BookingMachine) apply(ctx context.Context, tx repository.Tx, booking *model.Booking, req TransitionRequest, now time.Time) error {
	transition, ok := model.LookupBookingTransition(booking.Status, req.Target)
	if !ok {
		return apperr.WithMetadata(apperr.CodeInvalidTransition, "transition is not allowed", map[string]string{
			"from": string(booking.Status),
			"to":   string(req.Target),
		})
	}

	slot, err := tx.Slots().GetByID(ctx, booking.SlotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}

	if slot == nil {
		m.logger.Error("Booking references missing slot",
			zap.Int64("booking_id", booking.ID),
			zap.Int64("slot_id", booking.SlotID),
		)
		return apperr.New(apperr.CodeInvariantViolation, "booking references missing slot")
	}

	from := booking.Status
	payload := map[string]string{}

	switch req.Target {
	case model.BookingStatusCancelled:
		reason, err := m.cancellationReason(req)
		if err != nil {
			return err
		}

		if req.BypassWindow {
			payload["window_bypassed"] = "true"
		} else if decision := m.policy.CanCancel(booking, slot, now); !decision.Allowed {
			return decision.Err(booking)
		}

		if err := m.allocator.Release(ctx, tx, slot, booking.ID, req.Actor, now); err != nil {
			return err
		}

		cancelledAt := now
		booking.CancellationReason = &reason
		booking.CancelledAt = &cancelledAt

	case model.BookingStatusCompleted, model.BookingStatusNoShow:
		earliest := slot.EndTime.Add(-m.rules.AttendanceEarlyMark)
		if now.Before(earliest) {
			return apperr.WithMetadata(apperr.CodeSessionNotEnded, "session has not ended yet", map[string]string{
				"earliest_mark_time": earliest.UTC().Format(time.RFC3339),
			})
		}

		attended := req.Target == model.BookingStatusCompleted
		booking.Attended = &attended
	}

	booking.Status = req.Target
	booking.UpdatedAt = now

	if err := tx.Bookings().Update(ctx, booking); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	ev := model.NewBookingEvent(transition.Event, booking, slot, req.Actor, now)
	ev.FromStatus = string(from)
	ev.ToStatus = string(booking.Status)
	if booking.CancellationReason != nil {
		ev.ReasonCode = string(*booking.CancellationReason)
	}
	if len(payload) > 0 {
		ev.Payload = payload
	}

	booking.Slot = slot
	return m.emitter.Emit(ctx, tx, ev)
}

func (m *BookingMachine) cancellationReason(req TransitionRequest) (model.CancellationReason, error) {
	if req.Reason == nil {
		// Обход окна без явной причины никогда не подставляется молча
		if req.BypassWindow || req.Actor.Role != model.RoleStudent {
			return "", apperr.New(apperr.CodeReasonRequired, "cancellation reason is required")
		}
		return model.ReasonStudentRequest, nil
	}

	if !req.Reason.Valid() {
		return "", apperr.WithMetadata(apperr.CodeInvalidArgument, "unknown cancellation reason", map[string]string{
			"reason": string(*req.Reason),
		})
	}

	return *req.Reason, nil
}

// Confirm создаёт бронирование в статусе confirmed по токену Allocator и пишет booking.confirmed
func (m *BookingMachine) Confirm(ctx context.Context, tx repository.Tx, slot *model.Slot, studentID int64, token uuid.UUID, actor model.Actor, now time.Time) (*model.Booking, error) {
	booking := &model.Booking{
		StudentID:        studentID,
		SlotID:           slot.ID,
		ReservationToken: token,
		Status:           model.BookingStatusConfirmed,
		BookedAt:         now,
		UpdatedAt:        now,
	}

	if err := tx.Bookings().Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	ev := model.NewBookingEvent(model.EventBookingConfirmed, booking, slot, actor, now)
	ev.ToStatus = string(booking.Status)
	ev.Payload = map[string]string{
		"reservation_token": token.String(),
		"start_time":        slot.StartTime.UTC().Format(time.RFC3339),
	}

	if err := m.emitter.Emit(ctx, tx, ev); err != nil {
		return nil, err
	}

	booking.Slot = slot
	return booking, nil
}

func (m *BookingMachine) logTransition(b *model.Booking, req TransitionRequest) {
	fields := []zap.Field{
		zap.Int64("booking_id", b.ID),
		zap.Int64("student_id", b.StudentID),
		zap.Int64("slot_id", b.SlotID),
		zap.String("status", string(b.Status)),
		zap.Int64("actor_id", req.Actor.ID),
		zap.String("actor_role", string(req.Actor.Role)),
	}
	if b.CancellationReason != nil {
		fields = append(fields, zap.String("reason", string(*b.CancellationReason)))
	}
	if req.BypassWindow {
		fields = append(fields, zap.Bool("window_bypassed", true))
	}
	m.logger.Info("Booking transitioned", fields...)
}
