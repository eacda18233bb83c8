package notify

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
)

// FormatDateTime формат даты и времени в сообщениях
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

var reasonText = map[string]string{
	string(model.ReasonStudentRequest):     "по вашей просьбе",
	string(model.ReasonTeacherUnavailable): "преподаватель недоступен",
	string(model.ReasonBranchClosed):       "филиал закрыт",
	string(model.ReasonScheduleChange):     "перенос занятия",
	string(model.ReasonAdminCorrection):    "исправление администратором",
	string(model.ReasonOther):              "другая причина",
}

// FormatEvent текст сообщения студенту; false - событие студенту не показывается
func FormatEvent(ev *model.Event, slot *model.Slot) (string, bool) {
	when := ""
	if slot != nil {
		when = FormatDateTime(slot.StartTime)
	}

	switch ev.Type {
	case model.EventBookingConfirmed:
		return fmt.Sprintf("✅ Запись #%d подтверждена\n\n📅 %s", *ev.BookingID, when), true

	case model.EventBookingCancelled:
		text := fmt.Sprintf("❌ Запись #%d отменена\n\n📅 %s", *ev.BookingID, when)
		if reason, ok := reasonText[ev.ReasonCode]; ok {
			text += "\n📝 Причина: " + reason
		}
		return text, true

	case model.EventBookingReminderDue:
		return fmt.Sprintf("⏰ Напоминание: занятие %s\n\nЗапись #%d", when, *ev.BookingID), true

	case model.EventBookingCompleted:
		return fmt.Sprintf("🎓 Занятие %s отмечено как посещённое", when), true

	case model.EventBookingNoShow:
		return fmt.Sprintf("⚠️ Занятие %s отмечено как пропущенное", when), true

	case model.EventAssessmentFinalized:
		if overall, ok := ev.Payload["overall"]; ok {
			return fmt.Sprintf("📊 Оценка за занятие %s готова: %s", when, overall), true
		}
		return fmt.Sprintf("📊 Оценка за занятие %s готова", when), true
	}

	return "", false
}
