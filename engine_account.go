package sehatauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sehatbridge/sehatauth/account"
	"github.com/sehatbridge/sehatauth/internal"
	"github.com/sehatbridge/sehatauth/internal/rate"
)

// Register validates req and creates the account. Validation problems come
// back as a *ValidationError listing every offending field; an address
// already registered under either kind fails with ErrDuplicateEmail.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	acct, err := e.accounts.Create(ctx, account.CreateRequest{
		Kind:     req.Kind,
		Email:    req.Email,
		Password: req.Password,
		User:     req.User,
		Hospital: req.Hospital,
	})
	if err != nil {
		mapped := e.storeFailure("register", req.Kind, req.Email, err)
		switch {
		case errors.Is(mapped, ErrDuplicateEmail):
			e.metricInc(MetricRegisterDuplicate)
		case errors.Is(mapped, ErrValidationFailed):
			e.metricInc(MetricRegisterInvalid)
		}
		e.emitAudit(ctx, auditEventRegister, false, "", req.Kind, req.Email, mapped, nil)
		return nil, mapped
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, acct.ID, acct.Kind, acct.Email, nil, nil)
	e.logger.Info().
		Str("account_id", acct.ID).
		Str("kind", string(acct.Kind)).
		Msg("account registered")
	return acct, nil
}

// Login checks the password of the kind's account registered under email and
// issues a session token. An unknown address and a wrong password both fail
// with ErrInvalidCredentials after the same amount of hashing work.
func (e *Engine) Login(ctx context.Context, kind AccountKind, email, plaintext string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricLoginLatency, time.Since(start))
		}
	}()

	kind, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, string(kind), email, ip); err != nil {
			return nil, e.loginLimited(ctx, kind, email, err)
		}
	}

	acct, err := e.accounts.FindByEmail(ctx, kind, email)
	switch {
	case errors.Is(err, account.ErrNotFound):
		e.codec.Verify(plaintext, e.dummyDigest)
		return nil, e.loginFailed(ctx, kind, email, "")
	case err != nil:
		return nil, e.storeFailure("login", kind, email, err)
	}

	if !e.codec.Verify(plaintext, acct.PasswordHash) {
		return nil, e.loginFailed(ctx, kind, email, acct.ID)
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, string(kind), email); err != nil {
			e.logger.Warn().Err(err).Str("kind", string(kind)).Msg("reset login counter")
		}
	}
	e.upgradeDigest(ctx, acct, plaintext)

	result, err := e.issueLoginResult(acct, fmt.Sprintf("%s logged in successfully", kind.Title()))
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, acct.ID, kind, email, nil, nil)
	return result, nil
}

// Profile returns the account with accountID, typically the subject of a
// validated token.
func (e *Engine) Profile(ctx context.Context, accountID string) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	acct, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, e.storeFailure("profile", "", "", err)
	}
	return acct, nil
}

func (e *Engine) loginFailed(ctx context.Context, kind AccountKind, email, accountID string) error {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, string(kind), email, clientIPFromContext(ctx)); err != nil {
			e.logger.Warn().Err(err).Str("kind", string(kind)).Msg("increment login counter")
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLogin, false, accountID, kind, email, ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

func (e *Engine) loginLimited(ctx context.Context, kind AccountKind, email string, err error) error {
	if !errors.Is(err, rate.ErrRateLimited) {
		return e.storeFailure("login", kind, email, err)
	}
	e.metricInc(MetricLoginRateLimited)
	e.emitAudit(ctx, auditEventLoginRateLimited, false, "", kind, email, ErrLoginRateLimited, nil)
	return ErrLoginRateLimited
}

// upgradeDigest replaces bcrypt or weaker argon2id digests after a good
// login. Failures are logged; the login itself still succeeds. A conflict
// means the account changed since it was read, possibly by a password reset,
// so the rehash of the old password is dropped.
func (e *Engine) upgradeDigest(ctx context.Context, acct *Account, plaintext string) {
	if !e.config.Password.UpgradeOnLogin || !e.codec.NeedsRehash(acct.PasswordHash) {
		return
	}
	digest, err := e.codec.Hash(plaintext)
	if err != nil {
		e.logger.Warn().Err(err).Str("account_id", acct.ID).Msg("rehash password")
		return
	}
	if err := e.accounts.UpdatePassword(ctx, acct, digest); err != nil {
		if errors.Is(err, account.ErrConflict) {
			e.logger.Debug().Str("account_id", acct.ID).Msg("skip rehash of concurrently updated account")
			return
		}
		e.logger.Warn().
			Err(err).
			Str("account_id", acct.ID).
			Str("email", internal.RedactEmail(acct.Email)).
			Msg("store upgraded password digest")
		return
	}
	e.metricInc(MetricPasswordRehashed)
}

func (e *Engine) issueLoginResult(acct *Account, message string) (*LoginResult, error) {
	token, expiresAt, err := e.tokens.Issue(acct.ID, string(acct.Kind), 0)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{
		Token:     token,
		Message:   message,
		AccountID: acct.ID,
		Kind:      acct.Kind,
		ExpiresAt: expiresAt,
	}, nil
}
