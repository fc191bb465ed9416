package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, New(rdb, cfg)
}

func TestLoginLimitAndReset(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "user", "a@example.org", ""); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "user", "a@example.org", ""); err != nil {
			t.Fatalf("IncrementLogin error: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "user", "a@example.org", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "hospital", "a@example.org", ""); err != nil {
		t.Fatalf("other kind should not be limited: %v", err)
	}

	if ttl := mr.TTL("rl:login:user:a@example.org"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	if err := l.ResetLogin(ctx, "user", "a@example.org"); err != nil {
		t.Fatalf("ResetLogin error: %v", err)
	}
	if n, _ := l.LoginAttempts(ctx, "user", "a@example.org"); n != 0 {
		t.Fatalf("expected reset counter, got %d", n)
	}
}

func TestLoginWindowExpires(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldown: time.Minute})
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "user", "a@example.org", ""); err != nil {
		t.Fatalf("IncrementLogin error: %v", err)
	}
	if err := l.CheckLogin(ctx, "user", "a@example.org", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "user", "a@example.org", ""); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestIncrementKeepsFixedWindowAndRepairsMissingTTL(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 5, LoginCooldown: time.Minute})
	ctx := context.Background()
	key := "rl:login:user:a@example.org"

	if err := l.IncrementLogin(ctx, "user", "a@example.org", ""); err != nil {
		t.Fatalf("IncrementLogin error: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if err := l.IncrementLogin(ctx, "user", "a@example.org", ""); err != nil {
		t.Fatalf("IncrementLogin error: %v", err)
	}
	if ttl := mr.TTL(key); ttl != 30*time.Second {
		t.Fatalf("later hits must not extend the window, ttl=%v", ttl)
	}

	// A counter left behind without an expiry gets one on the next hit.
	if err := l.redis.Persist(ctx, key).Err(); err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	if err := l.IncrementLogin(ctx, "user", "a@example.org", ""); err != nil {
		t.Fatalf("IncrementLogin error: %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("expected expiry restored, ttl=%v", ttl)
	}
	if n, _ := l.LoginAttempts(ctx, "user", "a@example.org"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestIPThrottle(t *testing.T) {
	_, l := newTestLimiter(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginCooldown: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "user", "a@example.org", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "user", "b@example.org", "10.0.0.1")

	if err := l.CheckLogin(ctx, "user", "c@example.org", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP limit, got %v", err)
	}
	if err := l.CheckLogin(ctx, "user", "c@example.org", "10.0.0.2"); err != nil {
		t.Fatalf("other IP should pass: %v", err)
	}
}

func TestOTPVerifyAndRequestLimits(t *testing.T) {
	_, l := newTestLimiter(t, Config{
		MaxOTPVerifyAttempts: 2,
		OTPVerifyCooldown:    time.Minute,
		MaxOTPRequests:       2,
		OTPRequestWindow:     time.Hour,
	})
	ctx := context.Background()

	_ = l.IncrementOTPVerify(ctx, "a@example.org")
	_ = l.IncrementOTPVerify(ctx, "a@example.org")
	if err := l.CheckOTPVerify(ctx, "a@example.org"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected verify limit, got %v", err)
	}
	if err := l.ResetOTPVerify(ctx, "a@example.org"); err != nil {
		t.Fatalf("ResetOTPVerify error: %v", err)
	}
	if err := l.CheckOTPVerify(ctx, "a@example.org"); err != nil {
		t.Fatalf("expected reset, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := l.AllowOTPRequest(ctx, "a@example.org"); err != nil {
			t.Fatalf("request %d: unexpected %v", i, err)
		}
	}
	if err := l.AllowOTPRequest(ctx, "a@example.org"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected request limit, got %v", err)
	}
}

func TestDisabledLimitsAreNoOps(t *testing.T) {
	mr, l := newTestLimiter(t, Config{})
	ctx := context.Background()
	mr.Close()

	if err := l.CheckLogin(ctx, "user", "a@example.org", ""); err != nil {
		t.Fatalf("disabled limit should not touch redis: %v", err)
	}
	if err := l.AllowOTPRequest(ctx, "a@example.org"); err != nil {
		t.Fatalf("disabled limit should not touch redis: %v", err)
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldown: time.Minute})
	mr.Close()

	if err := l.IncrementLogin(context.Background(), "user", "a@example.org", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
