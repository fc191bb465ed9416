package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters. A zero maximum disables that
// limit.
type Config struct {
	EnableIPThrottle bool

	MaxLoginAttempts int
	LoginCooldown    time.Duration

	MaxOTPVerifyAttempts int
	OTPVerifyCooldown    time.Duration

	MaxOTPRequests   int
	OTPRequestWindow time.Duration
}

// Limiter enforces fixed-window limits on failed logins, failed reset-code
// checks and reset-code requests using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin fails with ErrRateLimited once the email (and, when enabled,
// the IP) has used up its failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, kind, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, loginKey(kind, email), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginAttempts)
	}
	return nil
}

// IncrementLogin records a failed login.
func (l *Limiter) IncrementLogin(ctx context.Context, kind, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if _, err := l.incrementWithTTL(ctx, loginKey(kind, email), l.config.LoginCooldown); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldown); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the per-email counter after a successful login or a
// password reset. The IP counter is left to expire so one good credential
// cannot unlock spraying from the same address.
func (l *Limiter) ResetLogin(ctx context.Context, kind, email string) error {
	if err := l.redis.Del(ctx, loginKey(kind, email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckOTPVerify fails with ErrRateLimited once too many wrong codes were
// submitted for email.
func (l *Limiter) CheckOTPVerify(ctx context.Context, email string) error {
	if l.config.MaxOTPVerifyAttempts <= 0 {
		return nil
	}
	return l.checkCounter(ctx, otpVerifyKey(email), l.config.MaxOTPVerifyAttempts)
}

// IncrementOTPVerify records a wrong or expired code.
func (l *Limiter) IncrementOTPVerify(ctx context.Context, email string) error {
	if l.config.MaxOTPVerifyAttempts <= 0 {
		return nil
	}
	_, err := l.incrementWithTTL(ctx, otpVerifyKey(email), l.config.OTPVerifyCooldown)
	return err
}

// ResetOTPVerify clears the wrong-code counter, typically when a new code is issued.
func (l *Limiter) ResetOTPVerify(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, otpVerifyKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// AllowOTPRequest counts a reset-code request and fails with ErrRateLimited
// when the window budget is exceeded.
func (l *Limiter) AllowOTPRequest(ctx context.Context, email string) error {
	if l.config.MaxOTPRequests <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, otpRequestKey(email), l.config.OTPRequestWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxOTPRequests) {
		return ErrRateLimited
	}
	return nil
}

// LoginAttempts returns the failed-login count for email. Missing keys read
// as zero.
func (l *Limiter) LoginAttempts(ctx context.Context, kind, email string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(kind, email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// incrementWithTTL bumps the counter and arms its expiry in one MULTI.
// EXPIRE NX only sets a TTL on a key without one, so the window stays fixed
// and a counter can never be left without an expiry.
func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}

func loginKey(kind, email string) string { return "rl:login:" + kind + ":" + email }
func loginIPKey(ip string) string        { return "rl:login-ip:" + ip }
func otpVerifyKey(email string) string   { return "rl:otp-verify:" + email }
func otpRequestKey(email string) string  { return "rl:otp-request:" + email }
