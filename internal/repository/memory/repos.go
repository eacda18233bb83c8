package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
)

type branchRepo struct{ sc *scope }

func (r branchRepo) Create(_ context.Context, branch *model.Branch) error {
	defer r.sc.lock()()
	st := r.sc.data()

	st.nextBranchID++
	branch.ID = st.nextBranchID
	st.branches[branch.ID] = *branch
	return nil
}

func (r branchRepo) GetByID(_ context.Context, id int64) (*model.Branch, error) {
	defer r.sc.lock()()

	b, ok := r.sc.data().branches[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// SetBranchActive переключает филиал; каталог внешний, поэтому только для тестов
func (s *Store) SetBranchActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.st.branches[id]; ok {
		b.IsActive = active
		s.st.branches[id] = b
	}
}

type slotRepo struct{ sc *scope }

func (r slotRepo) withBranch(s model.Slot) *model.Slot {
	s.BranchActive = r.sc.data().branches[s.BranchID].IsActive
	return &s
}

func (r slotRepo) Create(_ context.Context, slot *model.Slot) error {
	defer r.sc.lock()()
	st := r.sc.data()

	if _, ok := st.branches[slot.BranchID]; !ok {
		return fmt.Errorf("create slot: branch %d does not exist", slot.BranchID)
	}

	st.nextSlotID++
	slot.ID = st.nextSlotID
	slot.ReservedCount = 0
	slot.UpdatedAt = slot.CreatedAt
	st.slots[slot.ID] = *slot
	return nil
}

func (r slotRepo) GetByID(_ context.Context, id int64) (*model.Slot, error) {
	defer r.sc.lock()()

	s, ok := r.sc.data().slots[id]
	if !ok {
		return nil, nil
	}
	return r.withBranch(s), nil
}

func (r slotRepo) GetForUpdate(ctx context.Context, id int64) (*model.Slot, error) {
	return r.GetByID(ctx, id)
}

func (r slotRepo) IncrementReserved(_ context.Context, id int64, at time.Time) (bool, error) {
	defer r.sc.lock()()
	st := r.sc.data()

	s, ok := st.slots[id]
	if !ok || s.ReservedCount >= s.Capacity {
		return false, nil
	}
	s.ReservedCount++
	s.UpdatedAt = at
	st.slots[id] = s
	return true, nil
}

func (r slotRepo) DecrementReserved(_ context.Context, id int64, at time.Time) (bool, error) {
	defer r.sc.lock()()
	st := r.sc.data()

	s, ok := st.slots[id]
	if !ok || s.ReservedCount <= 0 {
		return false, nil
	}
	s.ReservedCount--
	s.UpdatedAt = at
	st.slots[id] = s
	return true, nil
}

func (r slotRepo) SetActive(_ context.Context, id int64, active bool, at time.Time) error {
	defer r.sc.lock()()
	st := r.sc.data()

	s, ok := st.slots[id]
	if !ok {
		return fmt.Errorf("slot not found")
	}
	s.IsActive = active
	s.UpdatedAt = at
	st.slots[id] = s
	return nil
}

func (r slotRepo) ListByBranch(_ context.Context, branchID int64, from, to time.Time) ([]*model.Slot, error) {
	defer r.sc.lock()()

	var out []*model.Slot
	for _, s := range r.sc.data().slots {
		if s.BranchID != branchID || s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		out = append(out, r.withBranch(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

type bookingRepo struct{ sc *scope }

func (r bookingRepo) hasActive(studentID, slotID int64) bool {
	for _, b := range r.sc.data().bookings {
		if b.StudentID == studentID && b.SlotID == slotID && b.Status != model.BookingStatusCancelled {
			return true
		}
	}
	return false
}

func (r bookingRepo) Create(_ context.Context, booking *model.Booking) error {
	defer r.sc.lock()()
	st := r.sc.data()

	if _, ok := st.slots[booking.SlotID]; !ok {
		return fmt.Errorf("create booking: slot %d does not exist", booking.SlotID)
	}
	if booking.Status != model.BookingStatusCancelled && r.hasActive(booking.StudentID, booking.SlotID) {
		return apperr.New(apperr.CodeDuplicateReservation, "student already holds a booking on this slot")
	}
	for _, b := range st.bookings {
		if b.ReservationToken == booking.ReservationToken {
			return fmt.Errorf("create booking: duplicate reservation token")
		}
	}

	st.nextBookingID++
	booking.ID = st.nextBookingID
	booking.UpdatedAt = booking.BookedAt
	st.bookings[booking.ID] = *booking
	return nil
}

func (r bookingRepo) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	defer r.sc.lock()()

	b, ok := r.sc.data().bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r bookingRepo) GetForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r bookingRepo) HasActive(_ context.Context, studentID, slotID int64) (bool, error) {
	defer r.sc.lock()()
	return r.hasActive(studentID, slotID), nil
}

func (r bookingRepo) Update(_ context.Context, booking *model.Booking) error {
	defer r.sc.lock()()
	st := r.sc.data()

	old, ok := st.bookings[booking.ID]
	if !ok {
		return fmt.Errorf("booking not found")
	}
	old.Status = booking.Status
	old.Attended = booking.Attended
	old.CancellationReason = booking.CancellationReason
	old.CancelledAt = booking.CancelledAt
	old.RemindedAt = booking.RemindedAt
	old.UpdatedAt = booking.UpdatedAt
	st.bookings[booking.ID] = old
	return nil
}

func (r bookingRepo) ListByStudent(_ context.Context, studentID int64) ([]*model.Booking, error) {
	defer r.sc.lock()()

	var out []*model.Booking
	for _, b := range r.sc.data().bookings {
		if b.StudentID == studentID {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookedAt.Equal(out[j].BookedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].BookedAt.After(out[j].BookedAt)
	})
	return out, nil
}

func (r bookingRepo) CountSeatHolders(_ context.Context, slotID int64) (int, error) {
	defer r.sc.lock()()

	count := 0
	for _, b := range r.sc.data().bookings {
		if b.SlotID == slotID && b.Status.ConsumesSeat() {
			count++
		}
	}
	return count, nil
}

type bookingWithSlot struct {
	booking model.Booking
	slot    model.Slot
}

func (r bookingRepo) confirmedWithSlots(match func(b model.Booking, s model.Slot) bool) []bookingWithSlot {
	st := r.sc.data()

	var out []bookingWithSlot
	for _, b := range st.bookings {
		if b.Status != model.BookingStatusConfirmed {
			continue
		}
		s := st.slots[b.SlotID]
		if match(b, s) {
			out = append(out, bookingWithSlot{booking: b, slot: s})
		}
	}
	return out
}

func limitIDs(rows []bookingWithSlot, key func(bookingWithSlot) time.Time, limit int) []int64 {
	sort.Slice(rows, func(i, j int) bool {
		ki, kj := key(rows[i]), key(rows[j])
		if ki.Equal(kj) {
			return rows[i].booking.ID < rows[j].booking.ID
		}
		return ki.Before(kj)
	})
	var ids []int64
	for _, row := range rows {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, row.booking.ID)
	}
	return ids
}

func (r bookingRepo) ListConfirmedEndedBefore(_ context.Context, cutoff time.Time, limit int) ([]int64, error) {
	defer r.sc.lock()()

	rows := r.confirmedWithSlots(func(_ model.Booking, s model.Slot) bool {
		return s.EndTime.Before(cutoff)
	})
	return limitIDs(rows, func(row bookingWithSlot) time.Time { return row.slot.EndTime }, limit), nil
}

func (r bookingRepo) ListConfirmedStartingBetween(_ context.Context, from, to time.Time, limit int) ([]int64, error) {
	defer r.sc.lock()()

	rows := r.confirmedWithSlots(func(b model.Booking, s model.Slot) bool {
		return b.RemindedAt == nil && !s.StartTime.Before(from) && s.StartTime.Before(to)
	})
	return limitIDs(rows, func(row bookingWithSlot) time.Time { return row.slot.StartTime }, limit), nil
}

type assessmentRepo struct{ sc *scope }

func (r assessmentRepo) Create(_ context.Context, a *model.Assessment) error {
	defer r.sc.lock()()
	st := r.sc.data()

	for _, existing := range st.assessments {
		if existing.BookingID == a.BookingID {
			return apperr.New(apperr.CodeDuplicateAssessment, "assessment already exists for booking")
		}
	}

	st.nextAssessmentID++
	a.ID = st.nextAssessmentID
	a.UpdatedAt = a.CreatedAt
	st.assessments[a.ID] = *a
	return nil
}

func (r assessmentRepo) GetByID(_ context.Context, id int64) (*model.Assessment, error) {
	defer r.sc.lock()()

	a, ok := r.sc.data().assessments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r assessmentRepo) GetForUpdate(ctx context.Context, id int64) (*model.Assessment, error) {
	return r.GetByID(ctx, id)
}

func (r assessmentRepo) GetByBookingID(_ context.Context, bookingID int64) (*model.Assessment, error) {
	defer r.sc.lock()()

	for _, a := range r.sc.data().assessments {
		if a.BookingID == bookingID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r assessmentRepo) Update(_ context.Context, a *model.Assessment) error {
	defer r.sc.lock()()
	st := r.sc.data()

	old, ok := st.assessments[a.ID]
	if !ok || old.Status == model.AssessmentStatusCompleted {
		return apperr.New(apperr.CodeAssessmentFinalized, "assessment is finalized")
	}
	old.Components = a.Components
	old.Overall = a.Overall
	old.Status = a.Status
	old.Remarks = a.Remarks
	old.ReviewerID = a.ReviewerID
	old.AssessedAt = a.AssessedAt
	old.ReviewedAt = a.ReviewedAt
	old.UpdatedAt = a.UpdatedAt
	st.assessments[a.ID] = old
	return nil
}

type eventRepo struct{ sc *scope }

func (r eventRepo) Append(_ context.Context, e *model.Event) error {
	defer r.sc.lock()()
	st := r.sc.data()

	st.nextEventSeq++
	e.Seq = st.nextEventSeq
	stored := *e
	stored.Payload = maps.Clone(e.Payload)
	st.events = append(st.events, stored)
	return nil
}

func (r eventRepo) ListUndispatched(_ context.Context, limit int) ([]*model.Event, error) {
	defer r.sc.lock()()

	var out []*model.Event
	for _, e := range r.sc.data().events {
		if e.DispatchedAt != nil {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, &e)
	}
	return out, nil
}

func (r eventRepo) MarkDispatched(_ context.Context, id uuid.UUID, at time.Time) error {
	defer r.sc.lock()()
	st := r.sc.data()

	for i := range st.events {
		if st.events[i].ID == id && st.events[i].DispatchedAt == nil {
			t := at
			st.events[i].DispatchedAt = &t
		}
	}
	return nil
}

func (r eventRepo) ListByBooking(_ context.Context, bookingID int64) ([]*model.Event, error) {
	defer r.sc.lock()()

	var out []*model.Event
	for _, e := range r.sc.data().events {
		if e.BookingID != nil && *e.BookingID == bookingID {
			out = append(out, &e)
		}
	}
	return out, nil
}

// AllEvents все события журнала в порядке записи
func (s *Store) AllEvents() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.Event(nil), s.st.events...)
}

type userRepo struct{ sc *scope }

func (r userRepo) Upsert(_ context.Context, user *model.User) error {
	defer r.sc.lock()()
	st := r.sc.data()

	if user.TelegramID != nil {
		for _, u := range st.users {
			if u.ID != user.ID && u.TelegramID != nil && *u.TelegramID == *user.TelegramID {
				return apperr.New(apperr.CodeTelegramAlreadyLinked, "telegram chat is linked to another user")
			}
		}
	}

	if old, ok := st.users[user.ID]; ok {
		if old.TelegramID != nil && (user.TelegramID == nil || *old.TelegramID != *user.TelegramID) {
			return apperr.New(apperr.CodeTelegramAlreadyLinked, "user is already linked to another telegram chat")
		}
		user.CreatedAt = old.CreatedAt
	}
	st.users[user.ID] = *user
	return nil
}

func (r userRepo) ClearTelegram(_ context.Context, userID int64) error {
	defer r.sc.lock()()
	st := r.sc.data()

	if u, ok := st.users[userID]; ok {
		u.TelegramID = nil
		st.users[userID] = u
	}
	return nil
}

func (r userRepo) CreateLinkToken(_ context.Context, token *model.LinkToken) error {
	defer r.sc.lock()()
	st := r.sc.data()

	if _, ok := st.linkTokens[token.Token]; ok {
		return fmt.Errorf("create link token: duplicate token")
	}
	st.linkTokens[token.Token] = *token
	return nil
}

func (r userRepo) ConsumeLinkToken(_ context.Context, token uuid.UUID, at time.Time) (int64, error) {
	defer r.sc.lock()()
	st := r.sc.data()

	t, ok := st.linkTokens[token]
	if !ok || !t.Usable(at) {
		return 0, nil
	}
	used := at
	t.UsedAt = &used
	st.linkTokens[token] = t
	return t.UserID, nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	defer r.sc.lock()()

	u, ok := r.sc.data().users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	defer r.sc.lock()()

	for _, u := range r.sc.data().users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, nil
}
