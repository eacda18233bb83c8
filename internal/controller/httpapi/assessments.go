package httpapi

import (
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/gofiber/fiber/v2"
)

// CreateAssessment POST /bookings/:bookingID/assessment
func (h *Handler) CreateAssessment(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}

	bookingID, err := paramID(c, "bookingID")
	if err != nil {
		return err
	}

	// Сотрудник офиса оформляет оценку за преподавателя слота
	var teacherID int64
	if actor.Role == model.RoleTeacher {
		teacherID = actor.ID
	}

	assessment, err := h.assessments.CreateDraft(c.UserContext(), bookingID, teacherID, actor)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(assessment)
}

// GetAssessment GET /assessments/:assessmentID
func (h *Handler) GetAssessment(c *fiber.Ctx) error {
	if _, err := requireStaff(c); err != nil {
		return err
	}

	assessmentID, err := paramID(c, "assessmentID")
	if err != nil {
		return err
	}

	assessment, err := h.assessments.GetAssessment(c.UserContext(), assessmentID)
	if err != nil {
		return err
	}

	return c.JSON(assessment)
}

// UpdateScores PUT /assessments/:assessmentID/scores
func (h *Handler) UpdateScores(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}

	assessmentID, err := paramID(c, "assessmentID")
	if err != nil {
		return err
	}

	var req ScoresRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	assessment, err := h.assessments.UpdateScores(c.UserContext(), assessmentID, req.Components(), req.Remarks, actor)
	if err != nil {
		return err
	}

	return c.JSON(assessment)
}

// SubmitAssessment POST /assessments/:assessmentID/submit
func (h *Handler) SubmitAssessment(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}

	assessmentID, err := paramID(c, "assessmentID")
	if err != nil {
		return err
	}

	assessment, err := h.assessments.Submit(c.UserContext(), assessmentID, actor)
	if err != nil {
		return err
	}

	return c.JSON(assessment)
}

// FinalizeAssessment POST /assessments/:assessmentID/finalize
func (h *Handler) FinalizeAssessment(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}

	assessmentID, err := paramID(c, "assessmentID")
	if err != nil {
		return err
	}

	assessment, err := h.assessments.Finalize(c.UserContext(), assessmentID, actor)
	if err != nil {
		return err
	}

	return c.JSON(assessment)
}
