package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// Reporter receives unexpected server-side failures.
type Reporter interface {
	Report(op string, err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Report(string, error, map[string]string) {}

func (NopReporter) Flush(time.Duration) bool { return true }

// SentryConfig selects the Sentry project. An empty DSN disables reporting.
type SentryConfig struct {
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	Release     string  `yaml:"release"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// SentryReporter sends failures to Sentry through its own hub, so several
// reporters can coexist in one process.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter returns a NopReporter when cfg.DSN is empty or the client
// cannot be created; the reason is logged either way.
func NewSentryReporter(cfg SentryConfig, logger zerolog.Logger) Reporter {
	if cfg.DSN == "" {
		logger.Info().Msg("sentry dsn not set, error reporting disabled")
		return NopReporter{}
	}

	env := cfg.Environment
	if env == "" {
		env = "development"
	}
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: env,
		Release:     cfg.Release,
		SampleRate:  rate,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("sentry initialization failed, error reporting disabled")
		return NopReporter{}
	}

	logger.Info().Str("environment", env).Msg("sentry initialized")
	return newSentryReporter(client)
}

func newSentryReporter(client *sentry.Client) *SentryReporter {
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}
}

// Report captures err tagged with the failing operation.
func (r *SentryReporter) Report(op string, err error, tags map[string]string) {
	if r == nil || err == nil {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", op)
		scope.SetLevel(sentry.LevelError)
		for k, v := range tags {
			if v != "" {
				scope.SetTag(k, v)
			}
		}
		r.hub.CaptureException(err)
	})
}

// Flush waits up to timeout for queued events to be sent.
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	if r == nil {
		return true
	}
	return r.hub.Flush(timeout)
}
