// Package httpapi serves the identity engine over HTTP with fiber. Handlers
// decode the request, call one Engine method and translate its error into a
// status code; no identity logic lives here.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	"github.com/sehatbridge/sehatauth"
	"github.com/sehatbridge/sehatauth/internal/telemetry"
	"github.com/sehatbridge/sehatauth/metrics/export/prometheus"
	"github.com/sehatbridge/sehatauth/middleware"
)

// Options wires a Server.
type Options struct {
	Engine   *sehatauth.Engine
	Logger   zerolog.Logger
	Reporter telemetry.Reporter
	// GatewaySecret registers POST /auth/external/signin guarded by it.
	GatewaySecret string
	// AllowOrigins is the CORS origin list; empty allows none.
	AllowOrigins string
	// Ready reports backing store health for /health. Nil means always ready.
	Ready func(ctx context.Context) error
	// RequestTimeout bounds the context handed to the Engine.
	RequestTimeout time.Duration
}

// Server holds handler dependencies.
type Server struct {
	engine   *sehatauth.Engine
	logger   zerolog.Logger
	reporter telemetry.Reporter
	metrics  *prometheus.Exporter
	ready    func(ctx context.Context) error
	timeout  time.Duration
}

// New builds the fiber application with every route registered.
func New(opts Options) *fiber.App {
	s := &Server{
		engine:   opts.Engine,
		logger:   opts.Logger,
		reporter: opts.Reporter,
		metrics:  prometheus.New(opts.Engine),
		ready:    opts.Ready,
		timeout:  opts.RequestTimeout,
	}
	if s.reporter == nil {
		s.reporter = telemetry.NopReporter{}
	}
	if s.timeout <= 0 {
		s.timeout = 15 * time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:               "sehatauth",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleFiberError,
	})

	app.Use(requestid.New())
	app.Use(requestLogger(s.logger))
	app.Use(recover.New())
	if opts.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: opts.AllowOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.HeaderAuthToken,
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	app.Get("/ping", s.ping)
	app.Get("/health", s.health)
	app.Get("/metrics", s.renderMetrics)

	requireToken := middleware.RequireToken(s.engine)

	auth := app.Group("/auth")
	auth.Post("/register", s.register)
	auth.Post("/login", s.login)
	auth.Post("/forgot-password", s.forgotPassword)
	auth.Post("/verify-otp", s.verifyOTP)
	auth.Post("/reset-password", s.resetPassword)
	auth.Get("/profile", requireToken, s.profile)
	if opts.GatewaySecret != "" {
		auth.Post("/external/signin", middleware.RequireGatewaySecret(opts.GatewaySecret), s.externalSignIn)
	}

	opd := app.Group("/opd")
	opd.Post("/register", s.submitIntake)
	opd.Get("/profile/:email", requireToken, s.latestIntake)

	return app
}

// requestContext carries the caller's address and agent into the Engine and
// bounds the call.
func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := sehatauth.WithClientIP(c.UserContext(), c.IP())
	ctx = sehatauth.WithUserAgent(ctx, c.Get(fiber.HeaderUserAgent))
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		s.reporter.Report(c.Path(), err, map[string]string{"request_id": requestID(c)})
		return c.Status(code).JSON(fiber.Map{"message": "Internal server error"})
	}
	return c.Status(code).JSON(fiber.Map{"message": err.Error()})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
	return id
}
