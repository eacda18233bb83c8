package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookEmitsConfirmed(t *testing.T) {
	e := newEnv(t)
	slot := e.slotAt(t, 48*time.Hour, 2)

	b := e.book(t, slot.ID, student.ID)

	assert.Equal(t, model.BookingStatusConfirmed, b.Status)
	assert.Nil(t, b.Attended)
	assert.Equal(t, []model.EventType{model.EventBookingConfirmed}, e.eventsOf(b.ID))

	events, err := e.store.Events().ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, slot.ID, events[0].SlotID)
	assert.Equal(t, e.branchID, events[0].BranchID)
	assert.Equal(t, student.ID, *events[0].StudentID)
	assert.Equal(t, b.ReservationToken.String(), events[0].Payload["reservation_token"])
}

// Слот через 30 часов при окне 24 часа: отмена разрешена, место возвращается
func TestCancelOutsideWindowFreesSeat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.slotAt(t, 30*time.Hour, 1)
	b := e.book(t, slot.ID, 1)

	decision := e.machine.Policy().CanCancel(b, slot, e.clock.Now())
	require.True(t, decision.Allowed)

	cancelled, err := e.bookings.Cancel(ctx, b.ID, model.Actor{ID: 1, Role: model.RoleStudent}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, model.ReasonStudentRequest, *cancelled.CancellationReason)
	assert.Equal(t, e.clock.Now(), *cancelled.CancelledAt)
	assert.Equal(t, 0, e.reserved(t, slot.ID))

	second := e.book(t, slot.ID, 2)
	assert.Equal(t, model.BookingStatusConfirmed, second.Status)
	assert.Equal(t, 1, e.reserved(t, slot.ID))
}

// Слот через 10 часов: отмена внутри окна запрещена, дедлайн в контексте ошибки
func TestCancelWithinWindowRejected(t *testing.T) {
	e := newEnv(t)
	slot := e.slotAt(t, 10*time.Hour, 1)
	b := e.book(t, slot.ID, student.ID)

	decision := e.machine.Policy().CanCancel(b, slot, e.clock.Now())
	assert.False(t, decision.Allowed)
	assert.Equal(t, "WITHIN_CANCELLATION_WINDOW", string(decision.Reason))

	_, err := e.bookings.Cancel(context.Background(), b.ID, student, nil, false)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeWithinCancellationWindow, apperr.CodeOf(err))
	assert.Equal(t, slot.StartTime.Add(-24*time.Hour).Format(time.RFC3339), apperr.MetadataOf(err)["cancellation_deadline"])

	assert.Equal(t, 1, e.reserved(t, slot.ID))
	assert.Equal(t, []model.EventType{model.EventBookingConfirmed}, e.eventsOf(b.ID))
}

func TestStaffBypassRequiresReason(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.slotAt(t, 2*time.Hour, 1)
	b := e.book(t, slot.ID, student.ID)

	_, err := e.bookings.Cancel(ctx, b.ID, staff, nil, true)
	assert.Equal(t, apperr.CodeReasonRequired, apperr.CodeOf(err))

	_, err = e.bookings.Cancel(ctx, b.ID, staff, nil, false)
	assert.Equal(t, apperr.CodeReasonRequired, apperr.CodeOf(err))

	_, err = e.bookings.Cancel(ctx, b.ID, staff, reasonPtr("WEATHER"), true)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	cancelled, err := e.bookings.Cancel(ctx, b.ID, staff, reasonPtr(model.ReasonTeacherUnavailable), true)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonTeacherUnavailable, *cancelled.CancellationReason)
	assert.Equal(t, 0, e.reserved(t, slot.ID))

	events, err := e.store.Events().ListByBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	last := events[1]
	assert.Equal(t, model.EventBookingCancelled, last.Type)
	assert.Equal(t, "TEACHER_UNAVAILABLE", last.ReasonCode)
	assert.Equal(t, "true", last.Payload["window_bypassed"])
	assert.Equal(t, staff.ID, last.ActorID)
	assert.Equal(t, model.RoleStaff, last.ActorRole)
	assert.Equal(t, "confirmed", last.FromStatus)
	assert.Equal(t, "cancelled", last.ToStatus)
}

func TestReserveCancelBalance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.slotAt(t, 72*time.Hour, 3)

	for round := 0; round < 3; round++ {
		a := e.book(t, slot.ID, 1)
		e.book(t, slot.ID, 2)

		_, err := e.bookings.Cancel(ctx, a.ID, model.Actor{ID: 1, Role: model.RoleStudent}, nil, false)
		require.NoError(t, err)
		require.NoError(t, e.bookings.VerifySlotBalance(ctx, slot.ID))

		list, err := e.bookings.ListStudentBookings(ctx, 2)
		require.NoError(t, err)
		for _, b := range list {
			if b.Status == model.BookingStatusConfirmed {
				_, err = e.bookings.Cancel(ctx, b.ID, staff, reasonPtr(model.ReasonAdminCorrection), false)
				require.NoError(t, err)
			}
		}
	}

	assert.Equal(t, 0, e.reserved(t, slot.ID))
	require.NoError(t, e.bookings.VerifySlotBalance(ctx, slot.ID))
}

func TestTransitionClosure(t *testing.T) {
	ctx := context.Background()

	terminal := map[model.BookingStatus]func(t *testing.T, e *env) *model.Booking{
		model.BookingStatusCancelled: func(t *testing.T, e *env) *model.Booking {
			slot := e.slotAt(t, 48*time.Hour, 1)
			b := e.book(t, slot.ID, student.ID)
			b, err := e.bookings.Cancel(ctx, b.ID, student, nil, false)
			require.NoError(t, err)
			return b
		},
		model.BookingStatusCompleted: func(t *testing.T, e *env) *model.Booking {
			return e.completedBooking(t)
		},
		model.BookingStatusNoShow: func(t *testing.T, e *env) *model.Booking {
			slot := e.slotAt(t, time.Hour, 1)
			b := e.book(t, slot.ID, student.ID)
			e.clock.Set(slot.EndTime)
			b, err := e.bookings.MarkAttendance(ctx, b.ID, false, teacher)
			require.NoError(t, err)
			return b
		},
	}

	for status, setup := range terminal {
		t.Run(string(status), func(t *testing.T) {
			e := newEnv(t)
			b := setup(t, e)
			require.Equal(t, status, b.Status)
			before := len(e.eventsOf(b.ID))

			for _, target := range model.BookingStatuses {
				_, err := e.machine.Transition(ctx, b.ID, TransitionRequest{
					Target:       target,
					Actor:        staff,
					Reason:       reasonPtr(model.ReasonAdminCorrection),
					BypassWindow: true,
				})
				require.Error(t, err, "%s -> %s", status, target)
				assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))
				assert.Equal(t, string(status), apperr.MetadataOf(err)["from"])
			}

			assert.Len(t, e.eventsOf(b.ID), before)
		})
	}
}

func TestTransitionUnknownBooking(t *testing.T) {
	e := newEnv(t)

	_, err := e.bookings.MarkAttendance(context.Background(), 42, true, teacher)
	assert.Equal(t, apperr.CodeBookingNotFound, apperr.CodeOf(err))
}

func TestMarkAttendanceBeforeSessionEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.slotAt(t, time.Hour, 1)
	b := e.book(t, slot.ID, student.ID)

	e.clock.Set(slot.StartTime.Add(10 * time.Minute))
	_, err := e.bookings.MarkAttendance(ctx, b.ID, true, teacher)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSessionNotEnded, apperr.CodeOf(err))
	assert.Equal(t, slot.EndTime.Add(-15*time.Minute).Format(time.RFC3339), apperr.MetadataOf(err)["earliest_mark_time"])

	// Отметка "в конце занятия" допускается за 15 минут до конца
	e.clock.Set(slot.EndTime.Add(-15 * time.Minute))
	marked, err := e.bookings.MarkAttendance(ctx, b.ID, true, teacher)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, marked.Status)
	require.NotNil(t, marked.Attended)
	assert.True(t, *marked.Attended)
}

func TestNoShowKeepsSeat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.slotAt(t, time.Hour, 2)
	b := e.book(t, slot.ID, student.ID)

	e.clock.Set(slot.EndTime)
	marked, err := e.bookings.MarkAttendance(ctx, b.ID, false, teacher)
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusNoShow, marked.Status)
	assert.False(t, *marked.Attended)
	assert.Equal(t, 1, e.reserved(t, slot.ID))
	require.NoError(t, e.bookings.VerifySlotBalance(ctx, slot.ID))
	assert.Equal(t, []model.EventType{model.EventBookingConfirmed, model.EventBookingNoShow}, e.eventsOf(b.ID))
}

// Два сотрудника одновременно отмечают посещение: переход выполняется ровно один раз
func TestConcurrentMarkAttendanceSerialized(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.slotAt(t, time.Hour, 1)
	b := e.book(t, slot.ID, student.ID)
	e.clock.Set(slot.EndTime)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		ok, invalid int
	)

	for _, attended := range []bool{true, false} {
		wg.Add(1)
		go func(attended bool) {
			defer wg.Done()
			_, err := e.bookings.MarkAttendance(ctx, b.ID, attended, teacher)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.IsCode(err, apperr.CodeInvalidTransition):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(attended)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, invalid)

	events := e.eventsOf(b.ID)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventBookingConfirmed, events[0])
	assert.Contains(t, []model.EventType{model.EventBookingCompleted, model.EventBookingNoShow}, events[1])

	got, err := e.bookings.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.IsTerminal())
	assert.Equal(t, 1, e.reserved(t, slot.ID))
}

func TestSweepNoShowsIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	overdue := e.slotAt(t, time.Hour, 2)
	attended := e.slotAt(t, time.Hour, 2)
	future := e.slotAt(t, 5*time.Hour, 2)

	missed := e.book(t, overdue.ID, 1)
	marked := e.book(t, attended.ID, 1)
	upcoming := e.book(t, future.ID, 1)

	// Внутри grace периода ничего не трогаем
	e.clock.Set(overdue.EndTime.Add(10 * time.Minute))
	n, err := e.bookings.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = e.bookings.MarkAttendance(ctx, marked.ID, true, teacher)
	require.NoError(t, err)

	e.clock.Set(overdue.EndTime.Add(31 * time.Minute))
	n, err = e.bookings.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := e.bookings.GetBooking(ctx, missed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusNoShow, got.Status)
	assert.False(t, *got.Attended)

	eventsBefore := len(e.store.AllEvents())

	n, err = e.bookings.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, e.store.AllEvents(), eventsBefore)
	assert.Equal(t, []model.EventType{model.EventBookingConfirmed, model.EventBookingNoShow}, e.eventsOf(missed.ID))

	got, err = e.bookings.GetBooking(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)

	noShow := e.store.AllEvents()[eventsBefore-1]
	assert.Equal(t, model.RoleSystem, noShow.ActorRole)
}

func TestSweepRemindersOncePerBooking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	soon := e.slotAt(t, 20*time.Hour, 2)
	later := e.slotAt(t, 50*time.Hour, 2)
	cancelled := e.slotAt(t, 30*time.Hour, 2)

	a := e.book(t, soon.ID, 1)
	e.book(t, later.ID, 1)
	c := e.book(t, cancelled.ID, 1)
	_, err := e.bookings.Cancel(ctx, c.ID, model.Actor{ID: 1, Role: model.RoleStudent}, nil, false)
	require.NoError(t, err)

	n, err := e.bookings.SweepReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []model.EventType{model.EventBookingConfirmed, model.EventBookingReminderDue}, e.eventsOf(a.ID))

	n, err = e.bookings.SweepReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := e.bookings.GetBooking(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RemindedAt)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)
}

func TestRescheduleMovesSeat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	from := e.slotAt(t, 48*time.Hour, 1)
	to := e.slotAt(t, 72*time.Hour, 1)
	b := e.book(t, from.ID, student.ID)

	moved, err := e.bookings.Reschedule(ctx, b.ID, to.ID, student)
	require.NoError(t, err)
	assert.Equal(t, to.ID, moved.SlotID)
	assert.Equal(t, model.BookingStatusConfirmed, moved.Status)

	old, err := e.bookings.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, old.Status)
	assert.Equal(t, model.ReasonScheduleChange, *old.CancellationReason)

	assert.Equal(t, 0, e.reserved(t, from.ID))
	assert.Equal(t, 1, e.reserved(t, to.ID))
}

func TestRescheduleIsAtomic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	from := e.slotAt(t, 48*time.Hour, 1)
	full := e.slotAt(t, 72*time.Hour, 1)
	b := e.book(t, from.ID, student.ID)
	e.book(t, full.ID, 999)
	eventsBefore := len(e.store.AllEvents())

	_, err := e.bookings.Reschedule(ctx, b.ID, full.ID, student)
	assert.Equal(t, apperr.CodeCapacityExceeded, apperr.CodeOf(err))

	// Отмена старого бронирования откатилась вместе с неудачной резервацией
	old, err := e.bookings.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, old.Status)
	assert.Equal(t, 1, e.reserved(t, from.ID))
	assert.Len(t, e.store.AllEvents(), eventsBefore)
}

func TestRescheduleRespectsWindow(t *testing.T) {
	e := newEnv(t)
	from := e.slotAt(t, 5*time.Hour, 1)
	to := e.slotAt(t, 72*time.Hour, 1)
	b := e.book(t, from.ID, student.ID)

	_, err := e.bookings.Reschedule(context.Background(), b.ID, to.ID, student)
	assert.Equal(t, apperr.CodeWithinCancellationWindow, apperr.CodeOf(err))
	assert.Equal(t, 0, e.reserved(t, to.ID))
}

func TestVerifySlotBalanceDetectsDrift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.slotAt(t, 48*time.Hour, 3)
	e.book(t, slot.ID, 1)

	ok, err := e.store.Slots().IncrementReserved(ctx, slot.ID, e.clock.Now())
	require.NoError(t, err)
	require.True(t, ok)

	err = e.bookings.VerifySlotBalance(ctx, slot.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvariantViolation, apperr.CodeOf(err))
	assert.Equal(t, "2", apperr.MetadataOf(err)["reserved_count"])
	assert.Equal(t, "1", apperr.MetadataOf(err)["seat_holders"])
}
