package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sehatbridge/sehatauth/metrics/export/prometheus"
)

func (s *Server) ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "pong"})
}

func (s *Server) health(c *fiber.Ctx) error {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) renderMetrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, prometheus.ContentType)
	return c.SendString(s.metrics.Render())
}
