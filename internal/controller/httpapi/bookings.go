package httpapi

import (
	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/gofiber/fiber/v2"
)

// Book POST /slots/:slotID/bookings
func (h *Handler) Book(c *fiber.Ctx) error {
	actor := actorFrom(c)

	slotID, err := paramID(c, "slotID")
	if err != nil {
		return err
	}

	var req BookRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	studentID := req.StudentID
	switch {
	case actor.Role == model.RoleStudent && studentID == 0:
		studentID = actor.ID
	case actor.Role == model.RoleStudent && studentID != actor.ID:
		return apperr.New(apperr.CodeForbidden, "students can only book for themselves")
	case studentID == 0:
		return invalid("student_id is required")
	}

	booking, err := h.bookings.Book(c.UserContext(), slotID, studentID, actor)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(booking)
}

// GetBooking GET /bookings/:bookingID
func (h *Handler) GetBooking(c *fiber.Ctx) error {
	booking, err := h.ownedBooking(c)
	if err != nil {
		return err
	}

	return c.JSON(booking)
}

// ListStudentBookings GET /students/:studentID/bookings
func (h *Handler) ListStudentBookings(c *fiber.Ctx) error {
	studentID, err := paramID(c, "studentID")
	if err != nil {
		return err
	}

	actor := actorFrom(c)
	if actor.Role == model.RoleStudent && actor.ID != studentID {
		return apperr.New(apperr.CodeForbidden, "students can only list their own bookings")
	}

	bookings, err := h.bookings.ListStudentBookings(c.UserContext(), studentID)
	if err != nil {
		return err
	}

	if bookings == nil {
		bookings = []*model.Booking{}
	}

	return c.JSON(fiber.Map{"bookings": bookings})
}

// Cancel POST /bookings/:bookingID/cancel
func (h *Handler) Cancel(c *fiber.Ctx) error {
	actor := actorFrom(c)

	booking, err := h.ownedBooking(c)
	if err != nil {
		return err
	}

	var req CancelRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	// Обход окна отмены - право сотрудников
	if req.BypassWindow && actor.Role == model.RoleStudent {
		return apperr.New(apperr.CodeForbidden, "only staff can bypass the cancellation window")
	}

	cancelled, err := h.bookings.Cancel(c.UserContext(), booking.ID, actor, req.Reason, req.BypassWindow)
	if err != nil {
		return err
	}

	return c.JSON(cancelled)
}

// Reschedule POST /bookings/:bookingID/reschedule
func (h *Handler) Reschedule(c *fiber.Ctx) error {
	booking, err := h.ownedBooking(c)
	if err != nil {
		return err
	}

	var req RescheduleRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	moved, err := h.bookings.Reschedule(c.UserContext(), booking.ID, req.SlotID, actorFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(moved)
}

// MarkAttendance POST /bookings/:bookingID/attendance
func (h *Handler) MarkAttendance(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}

	bookingID, err := paramID(c, "bookingID")
	if err != nil {
		return err
	}

	var req AttendanceRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	booking, err := h.bookings.MarkAttendance(c.UserContext(), bookingID, *req.Attended, actor)
	if err != nil {
		return err
	}

	return c.JSON(booking)
}

// ownedBooking загружает бронирование; студент видит только свои
func (h *Handler) ownedBooking(c *fiber.Ctx) (*model.Booking, error) {
	bookingID, err := paramID(c, "bookingID")
	if err != nil {
		return nil, err
	}

	booking, err := h.bookings.GetBooking(c.UserContext(), bookingID)
	if err != nil {
		return nil, err
	}

	actor := actorFrom(c)
	if actor.Role == model.RoleStudent && booking.StudentID != actor.ID {
		// Чужое бронирование для студента не существует
		return nil, apperr.New(apperr.CodeBookingNotFound, "booking not found")
	}

	return booking, nil
}
