package httpapi

import (
	"context"
	"strconv"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	actorKey = "actor"
)

// requestLogger ограничивает время запроса и пишет строку лога на каждый запрос
func requestLogger(logger *zap.Logger, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		if err != nil {
			// Статус выставляет ErrorHandler, вызываем его до логирования
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				return herr
			}
		}

		logger.Info("HTTP request",
			zap.String("request_id", requestID(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.OriginalURL()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}

// actorMiddleware доверяет заголовкам внешнего слоя авторизации, проверяет только формат
func actorMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := model.Role(c.Get(HeaderActorRole))
		if !role.Valid() {
			return apperr.New(apperr.CodeUnauthenticated, "actor role header is missing or unknown")
		}

		id, err := strconv.ParseInt(c.Get(HeaderActorID), 10, 64)
		if err != nil || id < 0 || (id == 0 && role != model.RoleSystem) {
			return apperr.New(apperr.CodeUnauthenticated, "actor id header is missing or invalid")
		}

		c.Locals(actorKey, model.Actor{ID: id, Role: role})
		return c.Next()
	}
}

func actorOrZero(c *fiber.Ctx) model.Actor {
	actor, _ := c.Locals(actorKey).(model.Actor)
	return actor
}

func actorFrom(c *fiber.Ctx) model.Actor {
	return actorOrZero(c)
}

// requireStaff операция доступна учителю, администратору или системе
func requireStaff(c *fiber.Ctx) (model.Actor, error) {
	actor := actorFrom(c)
	if actor.Role == model.RoleStudent {
		return actor, apperr.New(apperr.CodeForbidden, "operation requires staff role")
	}
	return actor, nil
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid(name + " must be a positive integer")
	}
	return id, nil
}
