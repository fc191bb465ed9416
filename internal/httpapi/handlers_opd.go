package httpapi

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/sehatbridge/sehatauth"
)

func (s *Server) submitIntake(c *fiber.Ctx) error {
	var req sehatauth.IntakeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	rec, err := s.engine.SubmitIntake(ctx, req)
	if err != nil {
		return s.failure(c, "opd_register", err, "")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"message":        "OPD registration received successfully!",
		"registrationId": rec.RegistrationID,
		"data":           rec,
	})
}

func (s *Server) latestIntake(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		return badBody(c)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	rec, err := s.engine.LatestIntake(ctx, email)
	if err != nil {
		return s.failure(c, "opd_profile", err, "No registration found for this user.")
	}
	return c.JSON(fiber.Map{"success": true, "data": rec})
}
