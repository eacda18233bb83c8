package policy

import (
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slotStart = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func confirmed() (*model.Booking, *model.Slot) {
	slot := &model.Slot{ID: 1, StartTime: slotStart, EndTime: slotStart.Add(time.Hour)}
	return &model.Booking{ID: 1, SlotID: 1, Status: model.BookingStatusConfirmed}, slot
}

func TestCanCancelWindowBoundary(t *testing.T) {
	p := NewCancellationPolicy(24 * time.Hour)
	b, slot := confirmed()
	deadline := slotStart.Add(-24 * time.Hour)

	before := p.CanCancel(b, slot, deadline.Add(-time.Second))
	assert.True(t, before.Allowed)
	assert.Equal(t, ReasonNone, before.Reason)

	lastAllowed := p.CanCancel(b, slot, deadline.Add(-time.Nanosecond))
	assert.True(t, lastAllowed.Allowed)

	exact := p.CanCancel(b, slot, deadline)
	assert.False(t, exact.Allowed)
	assert.Equal(t, p.Deadline(slot), exact.Deadline)

	after := p.CanCancel(b, slot, deadline.Add(time.Second))
	assert.False(t, after.Allowed)
	assert.Equal(t, ReasonWithinCancellationWindow, after.Reason)
	assert.Equal(t, deadline, after.Deadline)
}

func TestCanCancelScenarios(t *testing.T) {
	p := NewCancellationPolicy(0)
	b, slot := confirmed()

	d := p.CanCancel(b, slot, slotStart.Add(-30*time.Hour))
	assert.True(t, d.Allowed)

	d = p.CanCancel(b, slot, slotStart.Add(-10*time.Hour))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonWithinCancellationWindow, d.Reason)
}

func TestCanCancelRequiresConfirmed(t *testing.T) {
	p := NewCancellationPolicy(time.Hour)

	for _, st := range []model.BookingStatus{model.BookingStatusCancelled, model.BookingStatusCompleted, model.BookingStatusNoShow} {
		b, slot := confirmed()
		b.Status = st

		d := p.CanCancel(b, slot, slotStart.Add(-48*time.Hour))
		assert.False(t, d.Allowed, st)
		assert.Equal(t, ReasonBookingNotConfirmed, d.Reason, st)
		assert.True(t, apperr.IsCode(d.Err(b), apperr.CodeInvalidTransition))
	}
}

func TestDecisionErrCarriesDeadline(t *testing.T) {
	p := NewCancellationPolicy(24 * time.Hour)
	b, slot := confirmed()

	d := p.CanCancel(b, slot, slotStart.Add(-time.Hour))
	err := d.Err(b)

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeWithinCancellationWindow))
	assert.Equal(t, "2026-03-09T15:00:00Z", apperr.MetadataOf(err)["cancellation_deadline"])

	assert.NoError(t, p.CanCancel(b, slot, slotStart.Add(-48*time.Hour)).Err(b))
}
