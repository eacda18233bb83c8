// Package httpapi HTTP API движка бронирований поверх fiber.
package httpapi

import (
	"time"

	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

type Handler struct {
	slots       *service.SlotService
	bookings    *service.BookingService
	assessments *service.AssessmentService
	users       *service.UserService
	botUsername string
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewHandler(
	slots *service.SlotService,
	bookings *service.BookingService,
	assessments *service.AssessmentService,
	users *service.UserService,
	botUsername string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		slots:       slots,
		bookings:    bookings,
		assessments: assessments,
		users:       users,
		botUsername: botUsername,
		validate:    validator.New(),
		logger:      logger,
	}
}

// NewApp собирает fiber приложение со всеми маршрутами
func NewApp(h *Handler, requestTimeout time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(h.logger),
		ReadTimeout:           requestTimeout,
		WriteTimeout:          requestTimeout,
	})

	app.Use(requestid.New())
	app.Use(requestLogger(h.logger, requestTimeout))
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("", actorMiddleware())

	api.Get("/branches/:branchID/slots", h.Availability)
	api.Post("/slots", h.CreateSlot)
	api.Get("/slots/:slotID", h.GetSlot)
	api.Post("/slots/:slotID/active", h.SetSlotActive)
	api.Post("/slots/:slotID/bookings", h.Book)

	api.Get("/bookings/:bookingID", h.GetBooking)
	api.Get("/students/:studentID/bookings", h.ListStudentBookings)
	api.Post("/bookings/:bookingID/cancel", h.Cancel)
	api.Post("/bookings/:bookingID/reschedule", h.Reschedule)
	api.Post("/bookings/:bookingID/attendance", h.MarkAttendance)
	api.Post("/bookings/:bookingID/assessment", h.CreateAssessment)

	api.Get("/assessments/:assessmentID", h.GetAssessment)
	api.Put("/assessments/:assessmentID/scores", h.UpdateScores)
	api.Post("/assessments/:assessmentID/submit", h.SubmitAssessment)
	api.Post("/assessments/:assessmentID/finalize", h.FinalizeAssessment)

	api.Post("/users/:userID/telegram-link", h.IssueTelegramLink)

	return app
}

// bind разбирает JSON тело и проверяет его validator-ом
func (h *Handler) bind(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return invalid("request body is not valid JSON")
		}
	}
	return h.validate.Struct(dst)
}
