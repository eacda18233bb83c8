package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	student  = model.Actor{ID: 101, Role: model.RoleStudent}
	teacher  = model.Actor{ID: 7, Role: model.RoleTeacher}
	staff    = model.Actor{ID: 1, Role: model.RoleStaff}
)

// fakeClock управляемое время для тестов
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

type env struct {
	store       *memory.Store
	clock       *fakeClock
	allocator   *Allocator
	machine     *BookingMachine
	bookings    *BookingService
	slots       *SlotService
	assessments *AssessmentService
	branchID    int64
}

func newEnv(t *testing.T) *env {
	t.Helper()

	logger := zap.NewNop()
	store := memory.NewStore()
	clock := &fakeClock{now: baseTime}
	rules := DefaultRules()

	emitter := NewEmitter(logger)
	allocator := NewAllocator(logger)
	machine := NewBookingMachine(store, allocator, emitter, rules, clock.Now, logger)

	branch := &model.Branch{Name: "Central", IsActive: true, CreatedAt: baseTime}
	require.NoError(t, store.Branches().Create(context.Background(), branch))

	return &env{
		store:       store,
		clock:       clock,
		allocator:   allocator,
		machine:     machine,
		bookings:    NewBookingService(store, allocator, machine, emitter, rules, clock.Now, logger),
		slots:       NewSlotService(store, emitter, clock.Now, logger),
		assessments: NewAssessmentService(store, emitter, clock.Now, logger),
		branchID:    branch.ID,
	}
}

// slotAt создаёт слот длиной в час, начинающийся через startIn от текущего времени
func (e *env) slotAt(t *testing.T, startIn time.Duration, capacity int) *model.Slot {
	t.Helper()

	start := e.clock.Now().Add(startIn)
	slot, err := e.slots.CreateSlot(context.Background(), CreateSlotInput{
		BranchID:      e.branchID,
		TeacherID:     teacher.ID,
		ServiceTypeID: 1,
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		Capacity:      capacity,
	}, staff)
	require.NoError(t, err)
	return slot
}

func (e *env) book(t *testing.T, slotID, studentID int64) *model.Booking {
	t.Helper()

	b, err := e.bookings.Book(context.Background(), slotID, studentID, model.Actor{ID: studentID, Role: model.RoleStudent})
	require.NoError(t, err)
	return b
}

func (e *env) reserved(t *testing.T, slotID int64) int {
	t.Helper()

	slot, err := e.slots.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	return slot.ReservedCount
}

// completedBooking бронирование, отмеченное как посещённое после конца занятия
func (e *env) completedBooking(t *testing.T) *model.Booking {
	t.Helper()

	slot := e.slotAt(t, 2*time.Hour, 1)
	b := e.book(t, slot.ID, student.ID)

	e.clock.Set(slot.EndTime.Add(time.Minute))
	b, err := e.bookings.MarkAttendance(context.Background(), b.ID, true, teacher)
	require.NoError(t, err)
	return b
}

func (e *env) eventsOf(bookingID int64) []model.EventType {
	var types []model.EventType
	for _, ev := range e.store.AllEvents() {
		if ev.BookingID != nil && *ev.BookingID == bookingID {
			types = append(types, ev.Type)
		}
	}
	return types
}

func reasonPtr(r model.CancellationReason) *model.CancellationReason {
	return &r
}

func scorePtr(v float64) *float64 {
	return &v
}
