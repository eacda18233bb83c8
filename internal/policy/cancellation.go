// Package policy содержит чистые функции бизнес-правил без доступа к хранилищу.
package policy

import (
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
)

// DefaultCancellationWindow минимальный запас времени до начала занятия для отмены
const DefaultCancellationWindow = 24 * time.Hour

type ReasonCode string

const (
	ReasonNone                     ReasonCode = ""
	ReasonWithinCancellationWindow ReasonCode = "WITHIN_CANCELLATION_WINDOW"
	ReasonBookingNotConfirmed      ReasonCode = "BOOKING_NOT_CONFIRMED"
)

// Decision результат проверки; Deadline - момент, начиная с которого отмена запрещена
type Decision struct {
	Allowed  bool
	Reason   ReasonCode
	Deadline time.Time
}

// Err переводит отказ в доменную ошибку с контекстом для UI
func (d Decision) Err(b *model.Booking) error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonWithinCancellationWindow:
		return apperr.WithMetadata(apperr.CodeWithinCancellationWindow, "cancellation window has passed", map[string]string{
			"cancellation_deadline": d.Deadline.UTC().Format(time.RFC3339),
		})
	default:
		return apperr.WithMetadata(apperr.CodeInvalidTransition, "booking is not confirmed", map[string]string{
			"from": string(b.Status),
			"to":   string(model.BookingStatusCancelled),
		})
	}
}

// CancellationPolicy решает, можно ли отменить бронирование; состояние не меняет
type CancellationPolicy struct {
	Window time.Duration
}

func NewCancellationPolicy(window time.Duration) CancellationPolicy {
	if window <= 0 {
		window = DefaultCancellationWindow
	}
	return CancellationPolicy{Window: window}
}

// Deadline момент, начиная с которого отмена запрещена
func (p CancellationPolicy) Deadline(slot *model.Slot) time.Time {
	return slot.StartTime.Add(-p.Window)
}

// CanCancel отмена разрешена только для confirmed и строго до startTime - window
func (p CancellationPolicy) CanCancel(b *model.Booking, slot *model.Slot, now time.Time) Decision {
	deadline := p.Deadline(slot)

	if b.Status != model.BookingStatusConfirmed {
		return Decision{Allowed: false, Reason: ReasonBookingNotConfirmed, Deadline: deadline}
	}

	if !now.Before(deadline) {
		return Decision{Allowed: false, Reason: ReasonWithinCancellationWindow, Deadline: deadline}
	}

	return Decision{Allowed: true, Reason: ReasonNone, Deadline: deadline}
}
