package httpapi

import (
	"errors"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse тело ответа для любой ошибки
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// errorHandler переводит ошибки в стабильные коды; внутренние ошибки наружу не раскрываются
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorResponse{Code: fiberCode(fe.Code), Message: fe.Message})
		}

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			details := make(map[string]string, len(ve))
			for _, fieldErr := range ve {
				details[fieldErr.Field()] = fieldErr.Tag()
			}
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Code:    string(apperr.CodeInvalidArgument),
				Message: "validation failed",
				Details: details,
			})
		}

		code := apperr.CodeOf(err)
		if code.Internal() {
			logger.Error("Request failed",
				zap.String("request_id", requestID(c)),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("code", string(code)),
				zap.Int64("actor_id", actorOrZero(c).ID),
				zap.String("actor_role", string(actorOrZero(c).Role)),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL"})
		}

		var ae *apperr.Error
		errors.As(err, &ae)

		return c.Status(code.HTTPStatus()).JSON(ErrorResponse{
			Code:    string(code),
			Message: ae.Message,
			Details: ae.Metadata,
		})
	}
}

func fiberCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "ROUTE_NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestTimeout:
		return "TIMEOUT"
	}
	if status >= fiber.StatusInternalServerError {
		return "INTERNAL"
	}
	return string(apperr.CodeInvalidArgument)
}

func invalid(message string) error {
	return apperr.New(apperr.CodeInvalidArgument, message)
}
