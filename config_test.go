package sehatauth

import (
	"testing"
	"time"
)

func TestDefaultConfigNeedsOnlyAKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without a key to be rejected")
	}

	cfg.JWT.PrivateKey = []byte(testSecret)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config with key to be valid: %v", err)
	}
	if cfg.JWT.TTL != 72*time.Hour || cfg.OTP.TTL != 10*time.Minute || cfg.OTP.Digits != 6 {
		t.Fatalf("unexpected reference values: %+v %+v", cfg.JWT, cfg.OTP)
	}
	if cfg.Intake.SequenceName != "registrationId" || cfg.Intake.Prefix != "REG-" {
		t.Fatalf("unexpected intake defaults: %+v", cfg.Intake)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test config valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "short hs256 secret",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "zero token ttl",
			mutate: func(c *Config) {
				c.JWT.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "leeway too large",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "weak argon2 memory",
			mutate: func(c *Config) {
				c.Password.Argon2.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "otp digits too few",
			mutate: func(c *Config) {
				c.OTP.Digits = 4
			},
			wantValid: false,
		},
		{
			name: "otp ttl too short",
			mutate: func(c *Config) {
				c.OTP.TTL = 30 * time.Second
			},
			wantValid: false,
		},
		{
			name: "bad sequence name",
			mutate: func(c *Config) {
				c.Intake.SequenceName = "reg id"
			},
			wantValid: false,
		},
		{
			name: "empty prefix",
			mutate: func(c *Config) {
				c.Intake.Prefix = ""
			},
			wantValid: false,
		},
		{
			name: "login limit without cooldown",
			mutate: func(c *Config) {
				c.Security.LoginCooldown = 0
			},
			wantValid: false,
		},
		{
			name: "limits disabled",
			mutate: func(c *Config) {
				c.Security = SecurityConfig{}
			},
			wantValid: true,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "shared redis prefixes",
			mutate: func(c *Config) {
				c.Redis.SequencePrefix = c.Redis.AccountPrefix
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWithConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	if b.config.JWT.PrivateKey[0] == 'X' {
		t.Fatal("builder config shares key bytes with caller")
	}
}
