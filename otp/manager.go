// Package otp issues, checks and clears the short-lived numeric codes used to
// authorise a password reset.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/sehatbridge/sehatauth/account"
	"github.com/sehatbridge/sehatauth/internal"
)

const (
	DefaultDigits = 6
	DefaultTTL    = 10 * time.Minute
)

// ErrInvalidConfig is returned by NewManager.
var ErrInvalidConfig = errors.New("otp: invalid config")

// Saver persists an account after its challenge fields change.
type Saver interface {
	Save(ctx context.Context, acct *account.Account) error
}

// Config controls code length and lifetime.
type Config struct {
	Digits int           `yaml:"digits"`
	TTL    time.Duration `yaml:"ttl"`
}

// Manager owns the OTP fields of an account. Only one code is live per
// account; issuing again replaces it.
type Manager struct {
	saver    Saver
	config   Config
	now      func() time.Time
	generate func(digits int) (string, error)
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithGenerator overrides code generation. Tests use it to get predictable codes.
func WithGenerator(fn func(digits int) (string, error)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.generate = fn
		}
	}
}

// NewManager validates cfg. Zero values take the defaults.
func NewManager(saver Saver, cfg Config, opts ...Option) (*Manager, error) {
	if cfg.Digits == 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Digits < 6 || cfg.Digits > 10 {
		return nil, fmt.Errorf("%w: digits must be within [6, 10]", ErrInvalidConfig)
	}
	if cfg.TTL < time.Minute || cfg.TTL > 24*time.Hour {
		return nil, fmt.Errorf("%w: ttl must be within [1m, 24h]", ErrInvalidConfig)
	}
	if saver == nil {
		return nil, fmt.Errorf("%w: saver is required", ErrInvalidConfig)
	}

	m := &Manager{
		saver:    saver,
		config:   cfg,
		now:      time.Now,
		generate: internal.NewOTP,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the configured code lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue generates a code, stamps the expiry and persists both before
// returning, so delivery time never extends validity.
func (m *Manager) Issue(ctx context.Context, acct *account.Account) (string, error) {
	code, err := m.generate(m.config.Digits)
	if err != nil {
		return "", fmt.Errorf("otp: generate: %w", err)
	}

	acct.SetChallenge(code, m.now().Add(m.config.TTL).UTC())
	if err := m.saver.Save(ctx, acct); err != nil {
		return "", err
	}
	return code, nil
}

// Verify reports whether code matches the pending challenge and the challenge
// has not expired. It does not modify acct.
func (m *Manager) Verify(acct *account.Account, code string) bool {
	if acct == nil || !acct.HasChallenge() || code == "" {
		return false
	}
	if !m.now().Before(*acct.OTPExpiry) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(acct.OTP), []byte(code)) == 1
}

// Clear removes any pending challenge. Clearing an account without one is a
// no-op.
func (m *Manager) Clear(ctx context.Context, acct *account.Account) error {
	if acct.OTP == "" && acct.OTPExpiry == nil {
		return nil
	}
	acct.ClearChallenge()
	return m.saver.Save(ctx, acct)
}
