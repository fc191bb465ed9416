package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sehatbridge/sehatauth"
	"github.com/sehatbridge/sehatauth/internal/config"
	"github.com/sehatbridge/sehatauth/internal/httpapi"
	"github.com/sehatbridge/sehatauth/internal/telemetry"
	"github.com/sehatbridge/sehatauth/notify"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the identity API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.load()
			if err != nil {
				return err
			}
			return runServer(settings)
		},
	}
}

func runServer(s *config.Settings) error {
	logger := telemetry.NewLogger(os.Stdout, s.LogLevel, s.IsDev())

	reporter := telemetry.NewSentryReporter(s.Sentry, logger)
	defer reporter.Flush(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	b, err := openBackends(ctx, s, logger)
	cancel()
	if err != nil {
		return err
	}
	defer b.Close()

	engine, err := buildEngine(s, b, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()
	logPosture(logger, engine.SecurityReport())

	app := httpapi.New(httpapi.Options{
		Engine:        engine,
		Logger:        logger,
		Reporter:      reporter,
		GatewaySecret: s.GatewaySecret,
		AllowOrigins:  s.FrontendURL,
		Ready:         b.ready,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + s.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	if err := app.ShutdownWithTimeout(s.ShutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func logPosture(logger zerolog.Logger, r sehatauth.SecurityReport) {
	ev := logger.Info().
		Str("signing", r.SigningAlgorithm).
		Dur("token_ttl", r.TokenTTL).
		Uint32("argon2_memory_kib", r.Argon2.Memory).
		Uint32("argon2_time", r.Argon2.Time).
		Bool("reset_requires_otp", r.ResetRequiresOTP).
		Bool("login_rate_limiting", r.LoginRateLimiting).
		Bool("otp_rate_limiting", r.OTPRateLimiting).
		Bool("audit", r.AuditEnabled).
		Bool("otp_delivery", r.OTPDeliveryConfigured)
	ev.Msg("security posture")
	if !r.LoginRateLimiting {
		logger.Warn().Msg("login rate limiting inactive")
	}
}

func buildEngine(s *config.Settings, b *backends, logger zerolog.Logger) (*sehatauth.Engine, error) {
	builder := sehatauth.New().
		WithConfig(s.Engine).
		WithAccountStore(b.accounts).
		WithSequence(b.seq).
		WithIntakeRepository(b.intake).
		WithNotifier(buildNotifier(s, logger)).
		WithLogger(logger)
	if b.redis != nil {
		builder = builder.WithRedis(b.redis)
	}
	if s.Engine.Audit.Enabled {
		builder = builder.WithAuditSink(sehatauth.LoggerAuditSink{Logger: logger.With().Str("component", "audit").Logger()})
	}
	return builder.Build()
}

// buildNotifier prefers email, falls back to SMS, and only logs issued codes
// when neither channel is configured.
func buildNotifier(s *config.Settings, logger zerolog.Logger) notify.Sender {
	var senders notify.Fallback

	if s.Mailtrap.APIKey != "" {
		mail, err := notify.NewMailtrapSender(notify.MailtrapConfig{
			APIKey:    s.Mailtrap.APIKey,
			FromEmail: s.Mailtrap.FromEmail,
			FromName:  s.Mailtrap.FromName,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("mailtrap disabled")
		} else {
			senders = append(senders, mail)
		}
	}

	if s.Twilio.AccountSID != "" {
		sms, err := notify.NewTwilioSender(notify.TwilioConfig{
			AccountSID: s.Twilio.AccountSID,
			AuthToken:  s.Twilio.AuthToken,
			From:       s.Twilio.From,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("twilio disabled")
		} else {
			senders = append(senders, sms)
		}
	}

	if len(senders) == 0 {
		logger.Warn().Msg("no delivery channel configured, reset codes are only logged")
		return notify.LogSender{Logger: logger, RevealCodes: s.RevealOTPs && s.IsDev()}
	}
	return senders
}
