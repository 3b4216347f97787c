package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Health  *handlers.HealthHandler
	User    *handlers.UserHandler
	Event   *handlers.EventHandler
	Webhook *handlers.WebhookHandler
}

// Setup mounts the API under /api/v1. authenticate resolves the caller;
// limiterStore may be nil for in-memory rate limiting.
func Setup(app *fiber.App, cfg *config.Config, h Handlers, authenticate fiber.Handler, limiterStore fiber.Storage) {
	api := app.Group("/api/v1")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return "api:" + c.IP() },
		Storage:           limiterStore,
	}))

	api.Get("/health", h.Health.Check)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return "auth:" + c.IP() },
		Storage:           limiterStore,
	}))
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/logout", authenticate, h.Auth.Logout)

	staff := middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	users := api.Group("/users", authenticate)
	users.Get("/me", h.User.Me)
	users.Get("/", adminOnly, h.User.List)
	users.Post("/", adminOnly, h.User.Create)
	users.Post("/:id/promote", adminOnly, h.User.Promote)
	users.Post("/:id/revoke-organizer", adminOnly, h.User.RevokeOrganizer)
	users.Delete("/:id", adminOnly, h.User.Delete)

	api.Get("/audit_logs", authenticate, adminOnly, h.User.AuditLogs)

	// Static segments are registered before /:id.
	events := api.Group("/events", authenticate)
	events.Post("/", staff, h.Event.Create)
	events.Get("/", adminOnly, h.Event.ListAll)
	events.Get("/mine/upcoming", staff, h.Event.MineUpcoming)
	events.Get("/mine/past", staff, h.Event.MinePast)
	events.Get("/dashboard", staff, h.Event.Dashboard)
	events.Get("/my-events", h.Event.MyEvents)
	events.Get("/my-events/:id", h.Event.MyEvent)
	events.Get("/my-checkins", h.Event.MyCheckins)
	events.Post("/checkin", h.Event.CheckIn)
	events.Get("/by-token/:token", h.Event.ByToken)
	events.Get("/:id", staff, h.Event.Get)
	events.Get("/:id/attendees", staff, h.Event.Attendees)
	events.Get("/:id/family", staff, h.Event.Family)
	events.Get("/:id/attendance.csv", staff, h.Event.ExportCSV)
	events.Delete("/:id", staff, h.Event.Delete)

	// Webhooks: shared-secret HS256 token, no account resolution
	if cfg.WebhookSecret != "" {
		webhooks := api.Group("/webhooks", middleware.WebhookAuth(cfg))
		webhooks.Post("/identity/user-deleted", h.Webhook.IdentityUserDeleted)
	}
}
