package sehatauth

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sehatbridge/sehatauth/account"
	"github.com/sehatbridge/sehatauth/intake"
	"github.com/sehatbridge/sehatauth/internal"
	internalaudit "github.com/sehatbridge/sehatauth/internal/audit"
	"github.com/sehatbridge/sehatauth/internal/rate"
	"github.com/sehatbridge/sehatauth/internal/validate"
	"github.com/sehatbridge/sehatauth/jwt"
	"github.com/sehatbridge/sehatauth/notify"
	"github.com/sehatbridge/sehatauth/otp"
	"github.com/sehatbridge/sehatauth/password"
	"github.com/sehatbridge/sehatauth/sequence"
)

// Engine orchestrates registration, login, password recovery, external
// sign-in and OPD intake. Methods are safe for concurrent use once
// [Builder.Build] returns.
type Engine struct {
	config      Config
	logger      zerolog.Logger
	now         func() time.Time
	codec       *password.Codec
	dummyDigest string
	accounts    *account.Registry
	otp         *otp.Manager
	tokens      *jwt.Manager
	notifier    notify.Sender
	sequence    sequence.Generator
	intake      *intake.Service
	rateLimiter *rate.Limiter
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
}

// Close flushes queued audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Sequence exposes the generator backing registration numbers, for
// administrative tooling.
func (e *Engine) Sequence() sequence.Generator {
	if e == nil {
		return nil
	}
	return e.sequence
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.accounts == nil || e.codec == nil || e.tokens == nil || e.otp == nil {
		return ErrEngineNotReady
	}
	return nil
}

func parseKind(kind AccountKind) (AccountKind, error) {
	k, err := account.ParseKind(string(kind))
	if err != nil {
		return "", ErrInvalidAccountKind
	}
	return k, nil
}

// storeFailure logs an infrastructure fault and returns the mapped error.
func (e *Engine) storeFailure(op string, kind AccountKind, email string, err error) error {
	mapped := mapError(err)
	if errors.Is(mapped, ErrStoreUnavailable) {
		e.metricInc(MetricStoreUnavailable)
		e.logger.Error().
			Err(err).
			Str("op", op).
			Str("kind", string(kind)).
			Str("email", internal.RedactEmail(email)).
			Msg("store failure")
	}
	return mapped
}

func normalizeEmail(email string) string {
	return validate.NormalizeEmail(email)
}
