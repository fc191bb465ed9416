package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sehatbridge/sehatauth/account"
)

type recordingSaver struct {
	saves int
	err   error
	last  account.Account
}

func (s *recordingSaver) Save(_ context.Context, acct *account.Account) error {
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.last = *acct
	return nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func fixedCode(code string) func(int) (string, error) {
	return func(int) (string, error) { return code, nil }
}

func newTestManager(t *testing.T, saver Saver, c *clock, code string) *Manager {
	t.Helper()
	m, err := NewManager(saver, Config{}, WithClock(c.Now), WithGenerator(fixedCode(code)))
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func TestIssueSetsExpiryAndPersists(t *testing.T) {
	saver := &recordingSaver{}
	c := &clock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	m := newTestManager(t, saver, c, "123456")
	acct := &account.Account{ID: "a1"}

	code, err := m.Issue(context.Background(), acct)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if code != "123456" || acct.OTP != "123456" {
		t.Fatalf("unexpected code %q / %q", code, acct.OTP)
	}
	if !acct.OTPExpiry.Equal(c.now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", acct.OTPExpiry)
	}
	if saver.saves != 1 || saver.last.OTP != "123456" {
		t.Fatalf("expected challenge to be persisted, saves=%d", saver.saves)
	}
}

func TestVerifyBoundaries(t *testing.T) {
	c := &clock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	m := newTestManager(t, &recordingSaver{}, c, "123456")
	acct := &account.Account{ID: "a1"}

	if _, err := m.Issue(context.Background(), acct); err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	expiry := *acct.OTPExpiry

	c.now = expiry.Add(-time.Second)
	if !m.Verify(acct, "123456") {
		t.Fatal("expected code to verify one second before expiry")
	}
	if m.Verify(acct, "654321") {
		t.Fatal("wrong code must not verify")
	}
	if m.Verify(acct, "") {
		t.Fatal("empty code must not verify")
	}

	c.now = expiry
	if m.Verify(acct, "123456") {
		t.Fatal("code must not verify at expiry")
	}
	c.now = expiry.Add(time.Second)
	if m.Verify(acct, "123456") {
		t.Fatal("code must not verify after expiry")
	}
}

func TestVerifyDoesNotMutate(t *testing.T) {
	c := &clock{now: time.Now()}
	saver := &recordingSaver{}
	m := newTestManager(t, saver, c, "111111")
	acct := &account.Account{ID: "a1"}
	if _, err := m.Issue(context.Background(), acct); err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !m.Verify(acct, "111111") {
			t.Fatal("verify should remain true until cleared")
		}
	}
	if saver.saves != 1 {
		t.Fatalf("verify must not persist, saves=%d", saver.saves)
	}
}

func TestReissueReplacesCode(t *testing.T) {
	c := &clock{now: time.Now()}
	saver := &recordingSaver{}
	codes := []string{"111111", "222222"}
	m, err := NewManager(saver, Config{}, WithClock(c.Now), WithGenerator(func(int) (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}))
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	acct := &account.Account{ID: "a1"}
	if _, err := m.Issue(context.Background(), acct); err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := m.Issue(context.Background(), acct); err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if m.Verify(acct, "111111") {
		t.Fatal("first code should be replaced")
	}
	if !m.Verify(acct, "222222") {
		t.Fatal("second code should verify")
	}
}

func TestClearIdempotent(t *testing.T) {
	c := &clock{now: time.Now()}
	saver := &recordingSaver{}
	m := newTestManager(t, saver, c, "123456")
	acct := &account.Account{ID: "a1"}

	if _, err := m.Issue(context.Background(), acct); err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if err := m.Clear(context.Background(), acct); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if acct.HasChallenge() || acct.OTPExpiry != nil {
		t.Fatal("expected challenge cleared")
	}
	if m.Verify(acct, "123456") {
		t.Fatal("cleared code must not verify")
	}
	if err := m.Clear(context.Background(), acct); err != nil {
		t.Fatalf("second Clear error: %v", err)
	}
	if saver.saves != 2 {
		t.Fatalf("expected issue + one clear to persist, got %d", saver.saves)
	}
}

func TestIssuePropagatesSaveError(t *testing.T) {
	boom := errors.New("store down")
	m := newTestManager(t, &recordingSaver{err: boom}, &clock{now: time.Now()}, "123456")

	if _, err := m.Issue(context.Background(), &account.Account{ID: "a1"}); !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(&recordingSaver{}, Config{Digits: 4}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewManager(&recordingSaver{}, Config{TTL: time.Second}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for ttl, got %v", err)
	}
	if _, err := NewManager(nil, Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil saver, got %v", err)
	}
}
