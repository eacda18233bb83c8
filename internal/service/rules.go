package service

import (
	"time"

	"github.com/Freeeeeet/booking_engine/internal/policy"
)

// Clock источник текущего времени; в тестах подменяется
type Clock func() time.Time

// Rules бизнес-параметры жизненного цикла бронирования
type Rules struct {
	CancellationWindow  time.Duration // Отмена запрещена позже startTime - window
	NoShowGracePeriod   time.Duration // Сколько ждать отметки после конца занятия
	AttendanceEarlyMark time.Duration // Насколько раньше конца можно отмечать посещение
	ReminderLead        time.Duration // За сколько до начала напоминать
	SweepBatchSize      int
}

func DefaultRules() Rules {
	return Rules{
		CancellationWindow:  policy.DefaultCancellationWindow,
		NoShowGracePeriod:   30 * time.Minute,
		AttendanceEarlyMark: 15 * time.Minute,
		ReminderLead:        24 * time.Hour,
		SweepBatchSize:      100,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.CancellationWindow <= 0 {
		r.CancellationWindow = d.CancellationWindow
	}
	if r.NoShowGracePeriod < 0 {
		r.NoShowGracePeriod = d.NoShowGracePeriod
	}
	if r.AttendanceEarlyMark < 0 {
		r.AttendanceEarlyMark = d.AttendanceEarlyMark
	}
	if r.ReminderLead <= 0 {
		r.ReminderLead = d.ReminderLead
	}
	if r.SweepBatchSize <= 0 {
		r.SweepBatchSize = d.SweepBatchSize
	}
	return r
}
