package httpapi

import (
	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/gofiber/fiber/v2"
)

// IssueTelegramLink POST /users/:userID/telegram-link
// Ссылку на бота получает только сам владелец учётной записи
func (h *Handler) IssueTelegramLink(c *fiber.Ctx) error {
	userID, err := paramID(c, "userID")
	if err != nil {
		return err
	}

	if actorFrom(c).ID != userID {
		return apperr.New(apperr.CodeForbidden, "telegram link can only be issued to the account owner")
	}

	token, err := h.users.IssueLinkToken(c.UserContext(), userID)
	if err != nil {
		return err
	}

	resp := TelegramLinkResponse{
		Token:     token.Token.String(),
		ExpiresAt: token.ExpiresAt,
	}
	if h.botUsername != "" {
		resp.Link = "https://t.me/" + h.botUsername + "?start=" + resp.Token
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}
