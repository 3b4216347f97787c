package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

type Resolver interface {
	Resolve(ctx context.Context, credential string) (*services.Identity, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, id *services.Identity) (*models.User, error)
}

// Authenticate resolves the bearer credential to a local account and stores
// it in the request locals.
func Authenticate(resolver Resolver, accounts Reconciler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		credential, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c)
		}

		ctx := c.UserContext()
		identity, err := resolver.Resolve(ctx, credential)
		if err != nil {
			return unauthorized(c)
		}

		user, err := accounts.Reconcile(ctx, identity)
		if err != nil {
			slog.Error("account reconciliation failed", "error", err, "request_id", RequestID(c))
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// RequireRoles allows the request when the account holds any of roles.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return unauthorized(c)
		}
		if !services.Authorize(user, roles...) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Insufficient permissions",
			})
		}
		return c.Next()
	}
}

// WebhookAuth verifies HS256 tokens signed with the shared webhook secret.
func WebhookAuth(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.WebhookSecret)},
		ContextKey: webhookKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid webhook signature",
			})
		},
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: services.ErrUnauthenticated.Error(),
	})
}
