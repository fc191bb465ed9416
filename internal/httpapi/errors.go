package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sehatbridge/sehatauth"
)

// failure writes the response for an Engine error. notFound is the
// route-specific message for sehatauth.ErrNotFound.
func (s *Server) failure(c *fiber.Ctx, op string, err error, notFound string) error {
	var verr *sehatauth.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  verr.Fields,
		})
	case errors.Is(err, sehatauth.ErrValidationFailed):
		return message(c, fiber.StatusBadRequest, "Validation error")
	case errors.Is(err, sehatauth.ErrInvalidAccountKind):
		return message(c, fiber.StatusBadRequest, "Invalid type")
	case errors.Is(err, sehatauth.ErrDuplicateEmail):
		return message(c, fiber.StatusBadRequest, "Email already registered")
	case errors.Is(err, sehatauth.ErrInvalidCredentials):
		return message(c, fiber.StatusBadRequest, "Invalid email or password")
	case errors.Is(err, sehatauth.ErrInvalidOrExpiredOTP):
		return message(c, fiber.StatusBadRequest, "Invalid or expired OTP")
	case errors.Is(err, sehatauth.ErrProviderEmailMissing):
		return message(c, fiber.StatusBadRequest, "No email found in provider profile.")
	case errors.Is(err, sehatauth.ErrLoginRateLimited), errors.Is(err, sehatauth.ErrOTPRateLimited):
		return message(c, fiber.StatusTooManyRequests, "Too many attempts. Please try again later.")
	case errors.Is(err, sehatauth.ErrInvalidToken), errors.Is(err, sehatauth.ErrExpiredToken):
		return message(c, fiber.StatusUnauthorized, "Token is not valid")
	case errors.Is(err, sehatauth.ErrConcurrentUpdate):
		return message(c, fiber.StatusConflict, "Account was modified, please retry")
	case errors.Is(err, sehatauth.ErrNotFound):
		if notFound == "" {
			notFound = "Not found"
		}
		return message(c, fiber.StatusNotFound, notFound)
	}

	status, msg := fiber.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, sehatauth.ErrNotificationFailed):
		msg = "Error sending OTP email"
	case errors.Is(err, sehatauth.ErrStoreUnavailable), errors.Is(err, sehatauth.ErrEngineNotReady):
		status, msg = fiber.StatusServiceUnavailable, "Service temporarily unavailable"
	}

	s.logger.Error().Err(err).Str("op", op).Str("request_id", requestID(c)).Msg("request failed")
	s.reporter.Report(op, err, map[string]string{"request_id": requestID(c)})
	return message(c, status, msg)
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

// badBody answers a request whose JSON could not be decoded.
func badBody(c *fiber.Ctx) error {
	return message(c, fiber.StatusBadRequest, "Invalid request body")
}
