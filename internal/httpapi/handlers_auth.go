package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sehatbridge/sehatauth"
	"github.com/sehatbridge/sehatauth/middleware"
)

type loginRequest struct {
	Kind     sehatauth.AccountKind `json:"type"`
	Email    string                `json:"email"`
	Password string                `json:"password"`
}

type forgotPasswordRequest struct {
	Kind  sehatauth.AccountKind `json:"type"`
	Email string                `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	Kind        sehatauth.AccountKind `json:"type"`
	Email       string                `json:"email"`
	NewPassword string                `json:"newPassword"`
	// OTP is optional unless the engine requires it for resets.
	OTP string `json:"otp,omitempty"`
}

func (s *Server) register(c *fiber.Ctx) error {
	var req sehatauth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.engine.Register(ctx, req)
	if err != nil {
		return s.failure(c, "register", err, "")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": acct.Kind.Title() + " registered successfully",
		"account": acct,
	})
}

func (s *Server) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.engine.Login(ctx, req.Kind, req.Email, req.Password)
	if err != nil {
		return s.failure(c, "login", err, "")
	}
	return c.JSON(res)
}

func (s *Server) forgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if _, err := s.engine.ForgotPassword(ctx, req.Kind, req.Email); err != nil {
		return s.failure(c, "forgot_password", err, "Email not found")
	}
	return message(c, fiber.StatusOK, "OTP sent to email successfully")
}

func (s *Server) verifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.engine.VerifyOTP(ctx, req.Email, req.OTP); err != nil {
		return s.failure(c, "verify_otp", err, "User or hospital not found")
	}
	return message(c, fiber.StatusOK, "OTP verified successfully")
}

func (s *Server) resetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var err error
	if req.OTP != "" {
		err = s.engine.ResetPasswordWithOTP(ctx, req.Kind, req.Email, req.OTP, req.NewPassword)
	} else {
		err = s.engine.ResetPassword(ctx, req.Kind, req.Email, req.NewPassword)
	}
	if err != nil {
		return s.failure(c, "reset_password", err, "User or hospital not found")
	}
	return message(c, fiber.StatusOK, "Password updated successfully")
}

func (s *Server) externalSignIn(c *fiber.Ctx) error {
	var req sehatauth.ProviderProfile
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.engine.SignInWithExternalIdentity(ctx, req)
	if err != nil {
		return s.failure(c, "external_sign_in", err, "")
	}
	return c.JSON(res)
}

func (s *Server) profile(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return message(c, fiber.StatusUnauthorized, "Token is not valid")
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.engine.Profile(ctx, claims.AccountID)
	if err != nil {
		return s.failure(c, "profile", err, "User not found")
	}
	return c.JSON(acct)
}
