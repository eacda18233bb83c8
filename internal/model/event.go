package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingConfirmed   EventType = "booking.confirmed"
	EventBookingCancelled   EventType = "booking.cancelled"
	EventBookingCompleted   EventType = "booking.completed"
	EventBookingNoShow      EventType = "booking.no_show"
	EventBookingReminderDue EventType = "booking.reminder_due"

	EventSlotCreated   EventType = "slot.created"
	EventSlotBlocked   EventType = "slot.blocked"
	EventSlotUnblocked EventType = "slot.unblocked"

	EventAssessmentDrafted   EventType = "assessment.drafted"
	EventAssessmentScored    EventType = "assessment.scored"
	EventAssessmentSubmitted EventType = "assessment.submitted"
	EventAssessmentFinalized EventType = "assessment.finalized"
)

// Event неизменяемая запись журнала: одновременно аудит и исходящее уведомление
type Event struct {
	ID           uuid.UUID         `json:"id"`
	Seq          int64             `json:"seq"` // порядок записи в outbox
	Type         EventType         `json:"type"`
	BookingID    *int64            `json:"booking_id,omitempty"`
	StudentID    *int64            `json:"student_id,omitempty"`
	SlotID       int64             `json:"slot_id"`
	BranchID     int64             `json:"branch_id"`
	AssessmentID *int64            `json:"assessment_id,omitempty"`
	ActorID      int64             `json:"actor_id"`
	ActorRole    Role              `json:"actor_role"`
	FromStatus   string            `json:"from_status,omitempty"`
	ToStatus     string            `json:"to_status,omitempty"`
	ReasonCode   string            `json:"reason_code,omitempty"`
	Payload      map[string]string `json:"payload,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
	DispatchedAt *time.Time        `json:"dispatched_at,omitempty"`
}

// NewBookingEvent заполняет обязательный для событий бронирования контекст
func NewBookingEvent(t EventType, b *Booking, slot *Slot, actor Actor, at time.Time) *Event {
	bookingID, studentID := b.ID, b.StudentID
	return &Event{
		ID:         uuid.New(),
		Type:       t,
		BookingID:  &bookingID,
		StudentID:  &studentID,
		SlotID:     slot.ID,
		BranchID:   slot.BranchID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		OccurredAt: at,
	}
}

// NewSlotEvent событие уровня слота (без бронирования)
func NewSlotEvent(t EventType, slot *Slot, actor Actor, at time.Time) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       t,
		SlotID:     slot.ID,
		BranchID:   slot.BranchID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		OccurredAt: at,
	}
}

// NewAssessmentEvent событие оценивания; контекст бронирования и слота обязателен
func NewAssessmentEvent(t EventType, a *Assessment, slot *Slot, actor Actor, at time.Time) *Event {
	bookingID, studentID, assessmentID := a.BookingID, a.StudentID, a.ID
	return &Event{
		ID:           uuid.New(),
		Type:         t,
		BookingID:    &bookingID,
		StudentID:    &studentID,
		SlotID:       slot.ID,
		BranchID:     slot.BranchID,
		AssessmentID: &assessmentID,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		OccurredAt:   at,
	}
}
