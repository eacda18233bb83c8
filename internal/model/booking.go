package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed" // Место занято, занятие впереди
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено, место освобождено
	BookingStatusCompleted BookingStatus = "completed" // Студент пришёл
	BookingStatusNoShow    BookingStatus = "no_show"   // Студент не пришёл, место не возвращается
)

// BookingStatuses полный набор статусов бронирования
var BookingStatuses = []BookingStatus{
	BookingStatusConfirmed,
	BookingStatusCancelled,
	BookingStatusCompleted,
	BookingStatusNoShow,
}

// ParseBookingStatus возвращает ошибку для любого значения вне закрытого набора
func ParseBookingStatus(s string) (BookingStatus, error) {
	for _, st := range BookingStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

// IsTerminal из терминального статуса переходов нет
func (s BookingStatus) IsTerminal() bool {
	return s != BookingStatusConfirmed
}

// ConsumesSeat место занято бронированием (отменённые место не держат)
func (s BookingStatus) ConsumesSeat() bool {
	return s != BookingStatusCancelled
}

type CancellationReason string

const (
	ReasonStudentRequest     CancellationReason = "STUDENT_REQUEST"
	ReasonTeacherUnavailable CancellationReason = "TEACHER_UNAVAILABLE"
	ReasonBranchClosed       CancellationReason = "BRANCH_CLOSED"
	ReasonScheduleChange     CancellationReason = "SCHEDULE_CHANGE"
	ReasonAdminCorrection    CancellationReason = "ADMIN_CORRECTION"
	ReasonOther              CancellationReason = "OTHER"
)

var cancellationReasons = map[CancellationReason]struct{}{
	ReasonStudentRequest:     {},
	ReasonTeacherUnavailable: {},
	ReasonBranchClosed:       {},
	ReasonScheduleChange:     {},
	ReasonAdminCorrection:    {},
	ReasonOther:              {},
}

// Valid проверяет принадлежность закрытому набору кодов
func (r CancellationReason) Valid() bool {
	_, ok := cancellationReasons[r]
	return ok
}

type Booking struct {
	ID                 int64               `json:"id"`
	StudentID          int64               `json:"student_id"`
	SlotID             int64               `json:"slot_id"`
	ReservationToken   uuid.UUID           `json:"reservation_token"`
	Status             BookingStatus       `json:"status"`
	Attended           *bool               `json:"attended"` // nil пока статус confirmed
	CancellationReason *CancellationReason `json:"cancellation_reason"`
	BookedAt           time.Time           `json:"booked_at"`
	CancelledAt        *time.Time          `json:"cancelled_at"`
	RemindedAt         *time.Time          `json:"reminded_at"`
	UpdatedAt          time.Time           `json:"updated_at"`

	// Дополнительные поля для удобства (не из БД)
	Slot *Slot `json:"slot,omitempty"`
}

// BookingTransition допустимое ребро автомата бронирования
type BookingTransition struct {
	From  BookingStatus
	To    BookingStatus
	Event EventType
}

var bookingTransitions = []BookingTransition{
	{From: BookingStatusConfirmed, To: BookingStatusCancelled, Event: EventBookingCancelled},
	{From: BookingStatusConfirmed, To: BookingStatusCompleted, Event: EventBookingCompleted},
	{From: BookingStatusConfirmed, To: BookingStatusNoShow, Event: EventBookingNoShow},
}

// LookupBookingTransition ищет ребро from -> to; всё, чего нет в таблице, запрещено
func LookupBookingTransition(from, to BookingStatus) (BookingTransition, bool) {
	for _, t := range bookingTransitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return BookingTransition{}, false
}
