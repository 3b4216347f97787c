package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type WebhookHandler struct {
	userService *services.UserService
}

func NewWebhookHandler(userService *services.UserService) *WebhookHandler {
	return &WebhookHandler{userService: userService}
}

// IdentityUserDeleted removes the local account of a user deleted at the
// identity provider. An unknown subject is acknowledged, not an error.
func (h *WebhookHandler) IdentityUserDeleted(c *fiber.Ctx) error {
	var payload dto.IdentityUserDeleted
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid webhook payload")
	}

	user, err := h.userService.DeleteByExternalSubject(c.UserContext(), payload.Subject)
	if errors.Is(err, services.ErrUserNotFound) {
		slog.Warn("identity webhook for unknown user", "subject", payload.Subject)
		return c.JSON(dto.IdentityUserDeletedResponse{Deleted: false})
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.IdentityUserDeletedResponse{Deleted: true, UserID: user.ID.String()})
}
