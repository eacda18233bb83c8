package httpapi

import (
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
)

type CreateSlotRequest struct {
	BranchID      int64     `json:"branch_id" validate:"required,gt=0"`
	TeacherID     int64     `json:"teacher_id" validate:"required,gt=0"`
	ServiceTypeID int64     `json:"service_type_id" validate:"required,gt=0"`
	RoomID        *int64    `json:"room_id" validate:"omitempty,gt=0"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	EndTime       time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Capacity      int       `json:"capacity" validate:"required,gte=1,lte=1000"`
}

type SetSlotActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type BookRequest struct {
	// StudentID пусто - бронирует сам студент из заголовков
	StudentID int64 `json:"student_id" validate:"omitempty,gt=0"`
}

type CancelRequest struct {
	Reason       *model.CancellationReason `json:"reason" validate:"omitempty,oneof=STUDENT_REQUEST TEACHER_UNAVAILABLE BRANCH_CLOSED SCHEDULE_CHANGE ADMIN_CORRECTION OTHER"`
	BypassWindow bool                      `json:"bypass_window"`
}

type RescheduleRequest struct {
	SlotID int64 `json:"slot_id" validate:"required,gt=0"`
}

type AttendanceRequest struct {
	Attended *bool `json:"attended" validate:"required"`
}

type ScoresRequest struct {
	Fluency       *float64 `json:"fluency" validate:"omitempty,gte=0,lte=9"`
	Coherence     *float64 `json:"coherence" validate:"omitempty,gte=0,lte=9"`
	Lexical       *float64 `json:"lexical" validate:"omitempty,gte=0,lte=9"`
	Grammar       *float64 `json:"grammar" validate:"omitempty,gte=0,lte=9"`
	Pronunciation *float64 `json:"pronunciation" validate:"omitempty,gte=0,lte=9"`
	Remarks       *string  `json:"remarks" validate:"omitempty,max=2000"`
}

func (r ScoresRequest) Components() model.Components {
	return model.Components{
		Fluency:       r.Fluency,
		Coherence:     r.Coherence,
		Lexical:       r.Lexical,
		Grammar:       r.Grammar,
		Pronunciation: r.Pronunciation,
	}
}

type AvailabilityResponse struct {
	BranchID int64                    `json:"branch_id"`
	From     time.Time                `json:"from"`
	To       time.Time                `json:"to"`
	Slots    []model.SlotAvailability `json:"slots"`
}

type TelegramLinkResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Link      string    `json:"link,omitempty"`
}
