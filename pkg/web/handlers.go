package web

import (
	_ "embed"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-pathfinder/pkg/input"
)

//go:embed index.html
var indexHTML []byte

// EventRequest is the optional body of POST /api/events/:name.
type EventRequest struct {
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}

// handleStatus returns the last snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleListEvents returns the accepted event names
func (s *Server) handleListEvents(c *fiber.Ctx) error {
	return c.JSON(input.Names)
}

// handleTriggerEvent publishes a manual event to the loop
func (s *Server) handleTriggerEvent(c *fiber.Ctx) error {
	if s.bus == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "event bus not configured",
		})
	}

	var req EventRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	value := req.Value
	if req.Message != "" {
		value = req.Message
	}
	if q := c.Query("value"); q != "" {
		value = q
	}

	e, err := input.Parse(c.Params("name"), value)
	switch {
	case errors.Is(err, input.ErrUnknownEvent):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	e.Source = "dashboard"
	s.bus.Publish(e)
	s.logger.Info("manual event", "event", e.String())

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"event": e.String()})
}

// handleGetLog returns recent control events
func (s *Server) handleGetLog(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}
