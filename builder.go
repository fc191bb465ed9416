package sehatauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sehatbridge/sehatauth/account"
	"github.com/sehatbridge/sehatauth/intake"
	internalaudit "github.com/sehatbridge/sehatauth/internal/audit"
	"github.com/sehatbridge/sehatauth/internal/rate"
	"github.com/sehatbridge/sehatauth/jwt"
	"github.com/sehatbridge/sehatauth/notify"
	"github.com/sehatbridge/sehatauth/otp"
	"github.com/sehatbridge/sehatauth/password"
	"github.com/sehatbridge/sehatauth/sequence"
)

// Builder assembles an [Engine]. A Builder can be used for one Build call.
//
// When a Redis client is supplied it backs the account store, the sequence
// generator and the attempt limiter, unless an explicit store or generator is
// also supplied. Without Redis the attempt limits are inert.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store      account.Store
	sequence   sequence.Generator
	intakeRepo intake.Repository
	notifier   notify.Sender
	auditSink  AuditSink
	logger     *zerolog.Logger

	now           func() time.Time
	otpGenerator  func(digits int) (string, error)
	accountIDFunc func() string

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore overrides the Redis account store, e.g. with
// [account.MongoStore].
func (b *Builder) WithAccountStore(store account.Store) *Builder {
	b.store = store
	return b
}

// WithSequence overrides the Redis sequence generator, e.g. with the
// Postgres or MongoDB implementation.
func (b *Builder) WithSequence(gen sequence.Generator) *Builder {
	b.sequence = gen
	return b
}

func (b *Builder) WithIntakeRepository(repo intake.Repository) *Builder {
	b.intakeRepo = repo
	return b
}

// WithNotifier sets the reset-code delivery channel. The default only logs
// that a code was issued.
func (b *Builder) WithNotifier(sender notify.Sender) *Builder {
	b.notifier = sender
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithClock overrides the engine time source. Token validation, reset-code
// expiry and account timestamps all follow it.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithOTPGenerator overrides reset-code generation, e.g. to get predictable
// codes in tests. The function receives the configured digit count.
func (b *Builder) WithOTPGenerator(fn func(digits int) (string, error)) *Builder {
	b.otpGenerator = fn
	return b
}

// WithAccountIDFunc overrides the uuid account IDs.
func (b *Builder) WithAccountIDFunc(fn func() string) *Builder {
	b.accountIDFunc = fn
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- STORES --------
	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("account store or redis client required")
		}
		store = account.NewRedisStore(b.redis, cfg.Redis.AccountPrefix)
	}

	seq := b.sequence
	if seq == nil {
		if b.redis == nil {
			return nil, errors.New("sequence generator or redis client required")
		}
		seq = sequence.NewRedisGenerator(b.redis, cfg.Redis.SequencePrefix)
	}

	if b.intakeRepo == nil {
		return nil, errors.New("intake repository required")
	}

	// -------- CREDENTIALS --------
	codec, err := password.NewCodec(cfg.Password.Argon2)
	if err != nil {
		return nil, err
	}
	// Login runs a verification against this digest when the account is
	// missing so both outcomes cost one hash.
	dummyDigest, err := codec.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("build dummy digest: %w", err)
	}

	registryOpts := []account.Option{account.WithClock(now)}
	if b.accountIDFunc != nil {
		registryOpts = append(registryOpts, account.WithIDGenerator(b.accountIDFunc))
	}
	registry := account.NewRegistry(store, codec, registryOpts...)

	otpOpts := []otp.Option{otp.WithClock(now)}
	if b.otpGenerator != nil {
		otpOpts = append(otpOpts, otp.WithGenerator(b.otpGenerator))
	}
	otpManager, err := otp.NewManager(registry, otp.Config{
		Digits: cfg.OTP.Digits,
		TTL:    cfg.OTP.TTL,
	}, otpOpts...)
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- COLLABORATORS --------
	notifier := b.notifier
	if notifier == nil {
		logger.Warn().Msg("no notifier configured; reset codes will only be logged as issued")
		notifier = notify.LogSender{Logger: logger}
	}

	var limiter *rate.Limiter
	if b.redis != nil {
		limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:     cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:     cfg.Security.MaxLoginAttempts,
			LoginCooldown:        cfg.Security.LoginCooldown,
			MaxOTPVerifyAttempts: cfg.Security.MaxOTPVerifyAttempts,
			OTPVerifyCooldown:    cfg.Security.OTPVerifyCooldown,
			MaxOTPRequests:       cfg.Security.MaxOTPRequests,
			OTPRequestWindow:     cfg.Security.OTPRequestWindow,
		})
	}

	intakeService := intake.NewService(seq, b.intakeRepo, intake.Config{
		SequenceName: cfg.Intake.SequenceName,
		Prefix:       cfg.Intake.Prefix,
	}, logger.With().Str("component", "intake").Logger())

	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return &Engine{
		config:      cfg,
		logger:      logger,
		now:         now,
		codec:       codec,
		dummyDigest: dummyDigest,
		accounts:    registry,
		otp:         otpManager,
		tokens:      tokens,
		notifier:    notifier,
		sequence:    seq,
		intake:      intakeService,
		rateLimiter: limiter,
		audit:       dispatcher,
		metrics:     NewMetrics(cfg.Metrics),
	}, nil
}
