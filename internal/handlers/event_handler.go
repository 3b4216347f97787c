package handlers

import (
	"fmt"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type EventHandler struct {
	eventService *services.EventService
}

func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// caller is set by middleware.Authenticate on every route of this handler.
func caller(c *fiber.Ctx) *models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}

func (h *EventHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.eventService.Create(c.UserContext(), caller(c), middleware.Actor(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *EventHandler) ListAll(c *fiber.Ctx) error {
	events, err := h.eventService.ListAll(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(events)
}

func (h *EventHandler) MineUpcoming(c *fiber.Ctx) error {
	return h.listMine(c, true)
}

func (h *EventHandler) MinePast(c *fiber.Ctx) error {
	return h.listMine(c, false)
}

func (h *EventHandler) listMine(c *fiber.Ctx, upcoming bool) error {
	events, err := h.eventService.ListMine(c.UserContext(), caller(c), upcoming)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(events)
}

func (h *EventHandler) Dashboard(c *fiber.Ctx) error {
	resp, err := h.eventService.Dashboard(c.UserContext(), caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *EventHandler) MyEvents(c *fiber.Ctx) error {
	resp, err := h.eventService.MyEvents(c.UserContext(), caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *EventHandler) MyEvent(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, "Invalid event ID")
	}
	resp, err := h.eventService.MyEvent(c.UserContext(), caller(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *EventHandler) MyCheckins(c *fiber.Ctx) error {
	resp, err := h.eventService.MyCheckins(c.UserContext(), caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *EventHandler) CheckIn(c *fiber.Ctx) error {
	var req dto.CheckinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Token == "" {
		return badRequest(c, "Token is required")
	}

	src := dto.CheckinSource{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
	record, err := h.eventService.CheckIn(c.UserContext(), caller(c), req.Token, src)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

func (h *EventHandler) ByToken(c *fiber.Ctx) error {
	resp, err := h.eventService.GetByToken(c.UserContext(), c.Params("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *EventHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, "Invalid event ID")
	}
	event, err := h.eventService.Managed(c.UserContext(), caller(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(event)
}

func (h *EventHandler) Attendees(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, "Invalid event ID")
	}
	resp, err := h.eventService.Attendees(c.UserContext(), caller(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *EventHandler) Family(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, "Invalid event ID")
	}
	resp, err := h.eventService.Family(c.UserContext(), caller(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *EventHandler) ExportCSV(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, "Invalid event ID")
	}
	body, filename, err := h.eventService.ExportAttendance(c.UserContext(), caller(c), id)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(body)
}

func (h *EventHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, "Invalid event ID")
	}
	if err := h.eventService.Delete(c.UserContext(), caller(c), middleware.Actor(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
