package apperr

import "net/http"

// Code машиночитаемый стабильный код ошибки; UI локализует по нему
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Ошибки ёмкости
	CodeCapacityExceeded     Code = "CAPACITY_EXCEEDED"
	CodeDuplicateReservation Code = "DUPLICATE_RESERVATION"
	CodeSlotNotFound         Code = "SLOT_NOT_FOUND"
	CodeSlotInPast           Code = "SLOT_IN_PAST"
	CodeSlotInactive         Code = "SLOT_INACTIVE"
	CodeBranchNotFound       Code = "BRANCH_NOT_FOUND"
	CodeBranchInactive       Code = "BRANCH_INACTIVE"

	// Ошибки переходов
	CodeBookingNotFound   Code = "BOOKING_NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeSessionNotEnded   Code = "SESSION_NOT_ENDED"

	// Ошибки политики отмены
	CodeWithinCancellationWindow Code = "WITHIN_CANCELLATION_WINDOW"
	CodeReasonRequired           Code = "REASON_REQUIRED"

	// Ошибки оценивания
	CodeBookingNotCompleted  Code = "BOOKING_NOT_COMPLETED"
	CodeDuplicateAssessment  Code = "DUPLICATE_ASSESSMENT"
	CodeAssessmentNotFound   Code = "ASSESSMENT_NOT_FOUND"
	CodeAssessmentFinalized  Code = "ASSESSMENT_FINALIZED"
	CodeAssessmentNotPending Code = "ASSESSMENT_NOT_PENDING"
	CodeAssessmentIncomplete Code = "ASSESSMENT_INCOMPLETE"

	// Ошибки привязки Telegram
	CodeTelegramAlreadyLinked Code = "TELEGRAM_ALREADY_LINKED"
	CodeLinkTokenInvalid      Code = "LINK_TOKEN_INVALID"

	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"

	// Нарушение инварианта: баг вызывающего, наружу не раскрывается
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
)

// HTTPStatus сопоставляет код с HTTP статусом
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument,
		CodeReasonRequired:
		return http.StatusBadRequest

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	case CodeForbidden:
		return http.StatusForbidden

	case CodeSlotNotFound,
		CodeBranchNotFound,
		CodeBookingNotFound,
		CodeAssessmentNotFound:
		return http.StatusNotFound

	case CodeCapacityExceeded,
		CodeDuplicateReservation,
		CodeDuplicateAssessment,
		CodeInvalidTransition,
		CodeAssessmentFinalized,
		CodeAssessmentNotPending,
		CodeTelegramAlreadyLinked:
		return http.StatusConflict

	case CodeSlotInPast,
		CodeSlotInactive,
		CodeBranchInactive,
		CodeSessionNotEnded,
		CodeWithinCancellationWindow,
		CodeBookingNotCompleted,
		CodeAssessmentIncomplete,
		CodeLinkTokenInvalid:
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

// Internal ошибка не должна показываться пользователю как бизнес-ошибка
func (c Code) Internal() bool {
	return c.HTTPStatus() == http.StatusInternalServerError
}
