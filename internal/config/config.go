// Package config assembles server settings from a .env file, an optional
// YAML file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sehatbridge/sehatauth"
	"github.com/sehatbridge/sehatauth/internal/telemetry"
)

// Backend names a persistence system.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// Stores selects a backend per kind of data. Accounts live in redis, mongo or
// memory; sequences in any of the four; intake records in postgres, mongo or
// memory.
type Stores struct {
	Accounts  Backend `yaml:"accounts"`
	Sequences Backend `yaml:"sequences"`
	Intake    Backend `yaml:"intake"`
}

// Uses reports whether any store is on b.
func (s Stores) Uses(b Backend) bool {
	return s.Accounts == b || s.Sequences == b || s.Intake == b
}

// Settings is everything cmd/sehatauth needs to start a server.
type Settings struct {
	Env             string        `yaml:"env"`
	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	FrontendURL     string        `yaml:"frontend_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// GatewaySecret enables POST /auth/external/signin for callers that
	// present it. Empty leaves the route unregistered.
	GatewaySecret string `yaml:"-"`
	// RevealOTPs logs issued codes when no delivery channel is configured.
	RevealOTPs bool `yaml:"reveal_otps"`

	Stores   Stores                 `yaml:"stores"`
	Redis    RedisSettings          `yaml:"redis"`
	Postgres DBSettings             `yaml:"postgres"`
	Mongo    MongoSettings          `yaml:"mongo"`
	Mailtrap MailSettings           `yaml:"mailtrap"`
	Twilio   SMSSettings            `yaml:"twilio"`
	Sentry   telemetry.SentryConfig `yaml:"sentry"`

	Engine sehatauth.Config `yaml:"engine"`
}

type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
}

type DBSettings struct {
	DSN string `yaml:"-"`
}

type MongoSettings struct {
	URI      string `yaml:"-"`
	Database string `yaml:"database"`
}

type MailSettings struct {
	APIKey    string `yaml:"-"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type SMSSettings struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"-"`
	From       string `yaml:"from"`
}

// Options names the files Load reads. Missing files are skipped; a file that
// exists but cannot be parsed is an error.
type Options struct {
	EnvFiles []string
	YAMLFile string
}

// Default returns settings for a local development server.
func Default() Settings {
	return Settings{
		Env:             "development",
		Port:            "8081",
		LogLevel:        "info",
		FrontendURL:     "http://localhost:3000",
		ShutdownTimeout: 10 * time.Second,
		Stores: Stores{
			Accounts:  BackendRedis,
			Sequences: BackendRedis,
			Intake:    BackendPostgres,
		},
		Redis:  RedisSettings{Addr: "localhost:6379"},
		Mongo:  MongoSettings{Database: "sehatbridge"},
		Engine: sehatauth.DefaultConfig(),
	}
}

// Load builds Settings and validates them.
func Load(opts Options) (*Settings, error) {
	for _, path := range opts.EnvFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	s := Default()
	if opts.YAMLFile != "" {
		raw, err := os.ReadFile(opts.YAMLFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", opts.YAMLFile, err)
		default:
			if err := yaml.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", opts.YAMLFile, err)
			}
		}
	}

	if err := s.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}

	str(&s.Env, "SEHATAUTH_ENV", "ENV")
	str(&s.Port, "PORT")
	str(&s.LogLevel, "LOG_LEVEL")
	str(&s.FrontendURL, "FRONTEND_URL")
	str(&s.GatewaySecret, "GATEWAY_SECRET")

	backend := func(dst *Backend, key string) {
		v := string(*dst)
		str(&v, key)
		*dst = Backend(strings.ToLower(v))
	}
	backend(&s.Stores.Accounts, "ACCOUNT_STORE")
	backend(&s.Stores.Sequences, "SEQUENCE_STORE")
	backend(&s.Stores.Intake, "INTAKE_STORE")

	str(&s.Redis.Addr, "REDIS_ADDR")
	str(&s.Redis.Password, "REDIS_PASSWORD")
	str(&s.Postgres.DSN, "POSTGRES_DSN", "DATABASE_URL")
	str(&s.Mongo.URI, "MONGO_URI")
	str(&s.Mongo.Database, "MONGO_DB")
	str(&s.Mailtrap.APIKey, "MAILTRAP_API_KEY")
	str(&s.Mailtrap.FromEmail, "MAILTRAP_FROM_EMAIL")
	str(&s.Mailtrap.FromName, "MAILTRAP_FROM_NAME")
	str(&s.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	str(&s.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	str(&s.Twilio.From, "TWILIO_PHONE_NUMBER")
	str(&s.Sentry.DSN, "SENTRY_DSN")
	str(&s.Sentry.Environment, "SENTRY_ENVIRONMENT")

	var redisDB string
	str(&redisDB, "REDIS_DB")
	if redisDB != "" {
		n, err := strconv.Atoi(redisDB)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB: %w", err)
		}
		s.Redis.DB = n
	}

	var shutdown string
	str(&shutdown, "SHUTDOWN_TIMEOUT")
	if shutdown != "" {
		d, err := time.ParseDuration(shutdown)
		if err != nil {
			return fmt.Errorf("config: SHUTDOWN_TIMEOUT: %w", err)
		}
		s.ShutdownTimeout = d
	}

	var reveal string
	str(&reveal, "REVEAL_OTPS")
	if reveal != "" {
		b, err := strconv.ParseBool(reveal)
		if err != nil {
			return fmt.Errorf("config: REVEAL_OTPS: %w", err)
		}
		s.RevealOTPs = b
	}

	var secret string
	str(&secret, "JWT_SECRET")
	if secret != "" {
		s.Engine.JWT.PrivateKey = []byte(secret)
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (s *Settings) IsDev() bool {
	return s.Env == "" || s.Env == "development"
}

// Validate checks backend selection and then the engine configuration.
func (s *Settings) Validate() error {
	if s.Port == "" {
		return errors.New("config: port is required")
	}
	if s.ShutdownTimeout <= 0 {
		return errors.New("config: shutdown timeout must be > 0")
	}

	checks := []struct {
		name    string
		backend Backend
		allowed []Backend
	}{
		{"accounts", s.Stores.Accounts, []Backend{BackendRedis, BackendMongo, BackendMemory}},
		{"sequences", s.Stores.Sequences, []Backend{BackendRedis, BackendPostgres, BackendMongo, BackendMemory}},
		{"intake", s.Stores.Intake, []Backend{BackendPostgres, BackendMongo, BackendMemory}},
	}
	for _, c := range checks {
		if !slices.Contains(c.allowed, c.backend) {
			return fmt.Errorf("config: %s store cannot use backend %q", c.name, c.backend)
		}
	}

	if s.Stores.Uses(BackendRedis) && s.Redis.Addr == "" {
		return errors.New("config: redis store requires REDIS_ADDR")
	}
	if s.Stores.Uses(BackendPostgres) && s.Postgres.DSN == "" {
		return errors.New("config: postgres store requires POSTGRES_DSN")
	}
	if s.Stores.Uses(BackendMongo) && (s.Mongo.URI == "" || s.Mongo.Database == "") {
		return errors.New("config: mongo store requires MONGO_URI and a database")
	}

	if err := s.Engine.Validate(); err != nil {
		return fmt.Errorf("config: engine: %w", err)
	}
	return nil
}
