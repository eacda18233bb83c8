package httpapi

import (
	"time"

	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/gofiber/fiber/v2"
)

// Availability GET /branches/:branchID/slots?from=&to=
func (h *Handler) Availability(c *fiber.Ctx) error {
	branchID, err := paramID(c, "branchID")
	if err != nil {
		return err
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return invalid("from must be an RFC3339 timestamp")
	}

	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return invalid("to must be an RFC3339 timestamp")
	}

	slots, err := h.slots.Availability(c.UserContext(), branchID, from, to)
	if err != nil {
		return err
	}

	return c.JSON(AvailabilityResponse{BranchID: branchID, From: from, To: to, Slots: slots})
}

// CreateSlot POST /slots
func (h *Handler) CreateSlot(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}

	var req CreateSlotRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	slot, err := h.slots.CreateSlot(c.UserContext(), service.CreateSlotInput{
		BranchID:      req.BranchID,
		TeacherID:     req.TeacherID,
		ServiceTypeID: req.ServiceTypeID,
		RoomID:        req.RoomID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Capacity:      req.Capacity,
	}, actor)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(slot)
}

// GetSlot GET /slots/:slotID
func (h *Handler) GetSlot(c *fiber.Ctx) error {
	slotID, err := paramID(c, "slotID")
	if err != nil {
		return err
	}

	slot, err := h.slots.GetSlot(c.UserContext(), slotID)
	if err != nil {
		return err
	}

	return c.JSON(slot)
}

// SetSlotActive POST /slots/:slotID/active
func (h *Handler) SetSlotActive(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}

	slotID, err := paramID(c, "slotID")
	if err != nil {
		return err
	}

	var req SetSlotActiveRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	slot, err := h.slots.SetSlotActive(c.UserContext(), slotID, *req.Active, actor)
	if err != nil {
		return err
	}

	return c.JSON(slot)
}
