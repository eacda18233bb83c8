package model

import "time"

type Slot struct {
	ID            int64     `json:"id"`
	BranchID      int64     `json:"branch_id"`
	TeacherID     int64     `json:"teacher_id"`
	ServiceTypeID int64     `json:"service_type_id"`
	RoomID        *int64    `json:"room_id"` // указатель - комната может быть не назначена
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Capacity      int       `json:"capacity"`
	ReservedCount int       `json:"reserved_count"` // пишет только Allocator
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Заполняется join-ом по branches (не колонка slots)
	BranchActive bool `json:"branch_active"`
}

// Date дата занятия в часовом поясе слота
func (s *Slot) Date() time.Time {
	y, m, d := s.StartTime.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.StartTime.Location())
}

// Available количество свободных мест
func (s *Slot) Available() int {
	if s.ReservedCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.ReservedCount
}

// Bookable проверяет что слот и его филиал не заблокированы
func (s *Slot) Bookable() bool {
	return s.IsActive && s.BranchActive
}

// SlotAvailability строка ответа на запрос доступности
type SlotAvailability struct {
	SlotID        int64     `json:"slot_id"`
	BranchID      int64     `json:"branch_id"`
	TeacherID     int64     `json:"teacher_id"`
	ServiceTypeID int64     `json:"service_type_id"`
	RoomID        *int64    `json:"room_id"`
	Date          string    `json:"date"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Capacity      int       `json:"capacity"`
	ReservedCount int       `json:"reserved_count"`
	Available     int       `json:"available"`
	IsActive      bool      `json:"is_active"`
}

// NewSlotAvailability строит проекцию доступности для слота
func NewSlotAvailability(s *Slot) SlotAvailability {
	return SlotAvailability{
		SlotID:        s.ID,
		BranchID:      s.BranchID,
		TeacherID:     s.TeacherID,
		ServiceTypeID: s.ServiceTypeID,
		RoomID:        s.RoomID,
		Date:          s.Date().Format("2006-01-02"),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Capacity:      s.Capacity,
		ReservedCount: s.ReservedCount,
		Available:     s.Available(),
		IsActive:      s.Bookable(),
	}
}
