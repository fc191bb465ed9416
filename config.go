package sehatauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/sehatbridge/sehatauth/intake"
	"github.com/sehatbridge/sehatauth/otp"
	"github.com/sehatbridge/sehatauth/password"
	"github.com/sehatbridge/sehatauth/sequence"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override what differs; [Builder.Build] validates the result.
type Config struct {
	JWT           JWTConfig           `yaml:"jwt"`
	Password      PasswordConfig      `yaml:"password"`
	OTP           OTPConfig           `yaml:"otp"`
	PasswordReset PasswordResetConfig `yaml:"password_reset"`
	Intake        IntakeConfig        `yaml:"intake"`
	Security      SecurityConfig      `yaml:"security"`
	Audit         AuditConfig         `yaml:"audit"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Redis         RedisConfig         `yaml:"redis"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls session tokens. Keys are never read from YAML; the
// process loads them from its secret source and sets them here.
type JWTConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SigningMethod string        `yaml:"signing_method"` // "hs256" (default) or "ed25519"
	PrivateKey    []byte        `yaml:"-"`
	PublicKey     []byte        `yaml:"-"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	Leeway        time.Duration `yaml:"leeway"`
}

/*
====================================
CREDENTIALS
====================================
*/

// PasswordConfig holds the argon2id parameters for new digests.
type PasswordConfig struct {
	Argon2 password.Config `yaml:"argon2"`
	// UpgradeOnLogin rehashes bcrypt or weaker argon2id digests after a
	// successful login.
	UpgradeOnLogin bool `yaml:"upgrade_on_login"`
}

// OTPConfig controls reset codes.
type OTPConfig struct {
	Digits int           `yaml:"digits"`
	TTL    time.Duration `yaml:"ttl"`
}

// PasswordResetConfig controls the reset flow.
type PasswordResetConfig struct {
	// RequireOTP refuses [Engine.ResetPassword]; callers must use
	// [Engine.ResetPasswordWithOTP].
	RequireOTP bool `yaml:"require_otp"`
}

/*
====================================
INTAKE
====================================
*/

// IntakeConfig names the counter and prefix of OPD registration numbers.
type IntakeConfig struct {
	SequenceName string `yaml:"sequence_name"`
	Prefix       string `yaml:"prefix"`
}

/*
====================================
SECURITY
====================================
*/

// SecurityConfig holds the Redis-backed attempt limits. A zero maximum
// disables that limit; all limits are inert without Redis.
type SecurityConfig struct {
	EnableIPThrottle bool `yaml:"enable_ip_throttle"`

	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LoginCooldown    time.Duration `yaml:"login_cooldown"`

	MaxOTPVerifyAttempts int           `yaml:"max_otp_verify_attempts"`
	OTPVerifyCooldown    time.Duration `yaml:"otp_verify_cooldown"`

	MaxOTPRequests   int           `yaml:"max_otp_requests"`
	OTPRequestWindow time.Duration `yaml:"otp_request_window"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// RedisConfig holds key prefixes for the Redis-backed stores.
type RedisConfig struct {
	AccountPrefix  string `yaml:"account_prefix"`
	SequencePrefix string `yaml:"sequence_prefix"`
}

// DefaultConfig returns the reference configuration. The signing key is
// left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           72 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "sehatbridge",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Argon2:         password.DefaultConfig(),
			UpgradeOnLogin: true,
		},
		OTP: OTPConfig{
			Digits: otp.DefaultDigits,
			TTL:    otp.DefaultTTL,
		},
		Intake: IntakeConfig{
			SequenceName: intake.DefaultSequenceName,
			Prefix:       intake.DefaultPrefix,
		},
		Security: SecurityConfig{
			EnableIPThrottle:     false,
			MaxLoginAttempts:     10,
			LoginCooldown:        15 * time.Minute,
			MaxOTPVerifyAttempts: 5,
			OTPVerifyCooldown:    15 * time.Minute,
			MaxOTPRequests:       5,
			OTPRequestWindow:     time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Redis: RedisConfig{
			AccountPrefix:  "acct",
			SequencePrefix: "seq",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Password
	if err := c.Password.Argon2.Validate(); err != nil {
		return fmt.Errorf("Password: %w", err)
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 6 and 10")
	}
	if c.OTP.TTL < time.Minute || c.OTP.TTL > 24*time.Hour {
		return errors.New("OTP TTL must be within [1m, 24h]")
	}

	// Intake
	if err := sequence.ValidateName(c.Intake.SequenceName); err != nil {
		return fmt.Errorf("Intake SequenceName: %w", err)
	}
	if c.Intake.Prefix == "" {
		return errors.New("Intake Prefix must not be empty")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxOTPVerifyAttempts < 0 || c.Security.MaxOTPRequests < 0 {
		return errors.New("Security limits must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldown <= 0 {
		return errors.New("Security LoginCooldown must be > 0 when MaxLoginAttempts is set")
	}
	if c.Security.MaxOTPVerifyAttempts > 0 && c.Security.OTPVerifyCooldown <= 0 {
		return errors.New("Security OTPVerifyCooldown must be > 0 when MaxOTPVerifyAttempts is set")
	}
	if c.Security.MaxOTPRequests > 0 && c.Security.OTPRequestWindow <= 0 {
		return errors.New("Security OTPRequestWindow must be > 0 when MaxOTPRequests is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Redis
	if c.Redis.AccountPrefix == "" || c.Redis.SequencePrefix == "" {
		return errors.New("Redis prefixes must not be empty")
	}
	if c.Redis.AccountPrefix == c.Redis.SequencePrefix {
		return errors.New("Redis AccountPrefix and SequencePrefix must differ")
	}
	return nil
}
