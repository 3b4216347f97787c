package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userKey    = "account"
	webhookKey = "webhook"
)

// CurrentUser returns the account stored by Authenticate.
func CurrentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(userKey).(*models.User)
	return user, ok && user != nil
}

// WebhookClaims returns the verified claims stored by WebhookAuth.
func WebhookClaims(c *fiber.Ctx) (jwt.MapClaims, bool) {
	token, ok := c.Locals(webhookKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	return claims, ok
}

// RequestID is the id assigned by the requestid middleware.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

// Actor describes the caller for audit entries. The comment comes from the
// "comment" query parameter.
func Actor(c *fiber.Ctx) dto.Actor {
	actor := dto.Actor{
		IP:      c.IP(),
		Comment: strings.TrimSpace(c.Query("comment")),
	}
	if user, ok := CurrentUser(c); ok {
		actor.Email = user.Email
	}
	return actor
}
