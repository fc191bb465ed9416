package sehatauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sehatbridge/sehatauth/account"
	"github.com/sehatbridge/sehatauth/internal"
	"github.com/sehatbridge/sehatauth/internal/rate"
	"github.com/sehatbridge/sehatauth/internal/validate"
	"github.com/sehatbridge/sehatauth/notify"
)

// maxUpdateAttempts bounds the reload-and-retry loops run when an account
// write loses a revision race.
const maxUpdateAttempts = 3

// ForgotPassword issues a reset code for the kind's account registered under
// email and hands it to the notifier. The code is stored with its expiry
// before delivery starts. When delivery fails the error wraps
// ErrNotificationFailed and the stored code stays valid.
func (e *Engine) ForgotPassword(ctx context.Context, kind AccountKind, email string) (*Challenge, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	kind, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.AllowOTPRequest(ctx, email); err != nil {
			if !errors.Is(err, rate.ErrRateLimited) {
				return nil, e.storeFailure("forgot_password", kind, email, err)
			}
			e.metricInc(MetricOTPRequestRateLimited)
			e.emitAudit(ctx, auditEventOTPRequestLimited, false, "", kind, email, ErrOTPRateLimited, nil)
			return nil, ErrOTPRateLimited
		}
	}

	var (
		acct *Account
		code string
	)
	for attempt := 1; ; attempt++ {
		acct, err = e.accounts.FindByEmail(ctx, kind, email)
		if err != nil {
			mapped := e.storeFailure("forgot_password", kind, email, err)
			e.emitAudit(ctx, auditEventOTPIssued, false, "", kind, email, mapped, nil)
			return nil, mapped
		}
		code, err = e.otp.Issue(ctx, acct)
		if err == nil {
			break
		}
		if !errors.Is(err, account.ErrConflict) || attempt == maxUpdateAttempts {
			return nil, e.storeFailure("forgot_password", kind, email, err)
		}
	}
	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventOTPIssued, true, acct.ID, kind, email, nil, nil)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetOTPVerify(ctx, email); err != nil {
			e.logger.Warn().Err(err).Msg("reset otp verify counter")
		}
	}

	challenge := &Challenge{
		Email:     acct.Email,
		Kind:      acct.Kind,
		ExpiresAt: *acct.OTPExpiry,
	}

	err = e.notifier.SendOTP(ctx, notify.OTPMessage{
		Email:     acct.Email,
		Phone:     acct.Phone(),
		Name:      acct.Name(),
		Kind:      string(acct.Kind),
		Code:      code,
		ExpiresAt: challenge.ExpiresAt,
		TTL:       e.otp.TTL(),
	})
	if err != nil {
		e.metricInc(MetricOTPDeliveryFailed)
		e.emitAudit(ctx, auditEventOTPDeliveryFailed, false, acct.ID, kind, email, ErrNotificationFailed, nil)
		e.logger.Error().
			Err(err).
			Str("account_id", acct.ID).
			Str("email", internal.RedactEmail(acct.Email)).
			Msg("deliver reset code")
		return nil, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return challenge, nil
}

// VerifyOTP checks code against the pending challenge of the account
// registered under email, whatever its kind. It does not consume the code;
// the reset that follows does.
func (e *Engine) VerifyOTP(ctx context.Context, email, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)

	if err := e.checkOTPBudget(ctx, "", email); err != nil {
		return err
	}

	acct, err := e.accounts.FindByEmailAnyKind(ctx, email)
	if err != nil {
		mapped := e.storeFailure("verify_otp", "", email, err)
		e.emitAudit(ctx, auditEventOTPVerify, false, "", "", email, mapped, nil)
		return mapped
	}

	if !e.otp.Verify(acct, code) {
		return e.otpRejected(ctx, acct, email)
	}

	e.metricInc(MetricOTPVerifySuccess)
	e.emitAudit(ctx, auditEventOTPVerify, true, acct.ID, acct.Kind, email, nil, nil)
	return nil
}

// ResetPassword replaces the password of the kind's account registered under
// email and clears any pending reset code. It trusts that the caller already
// ran [Engine.VerifyOTP]; with PasswordReset.RequireOTP set it is refused
// with ErrInvalidOrExpiredOTP and [Engine.ResetPasswordWithOTP] must be used.
func (e *Engine) ResetPassword(ctx context.Context, kind AccountKind, email, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.config.PasswordReset.RequireOTP {
		return ErrInvalidOrExpiredOTP
	}
	return e.resetPassword(ctx, kind, email, newPassword, nil)
}

// ResetPasswordWithOTP is ResetPassword with the code checked inside the same
// call, so a reset cannot happen without a live code.
func (e *Engine) ResetPasswordWithOTP(ctx context.Context, kind AccountKind, email, code, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.resetPassword(ctx, kind, email, newPassword, &code)
}

func (e *Engine) resetPassword(ctx context.Context, kind AccountKind, email, newPassword string, code *string) error {
	kind, err := parseKind(kind)
	if err != nil {
		return err
	}
	email = normalizeEmail(email)

	if err := validateNewPassword(newPassword); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return err
	}

	if code != nil {
		if err := e.checkOTPBudget(ctx, kind, email); err != nil {
			return err
		}
	}

	var (
		acct   *Account
		digest string
	)
	// The save is conditional on the revision that was read, so of two
	// resets presenting the same code only one can clear it; the other
	// reloads, finds the code gone and is rejected.
	for attempt := 1; ; attempt++ {
		acct, err = e.accounts.FindByEmail(ctx, kind, email)
		if err != nil {
			mapped := e.storeFailure("reset_password", kind, email, err)
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditEventPasswordReset, false, "", kind, email, mapped, nil)
			return mapped
		}

		if code != nil && !e.otp.Verify(acct, *code) {
			e.metricInc(MetricPasswordResetFailure)
			return e.otpRejected(ctx, acct, email)
		}

		if digest == "" {
			digest, err = e.codec.Hash(newPassword)
			if err != nil {
				return mapError(err)
			}
		}
		// New digest and cleared challenge land in one write.
		acct.PasswordHash = digest
		acct.ClearChallenge()
		err = e.accounts.Save(ctx, acct)
		if err == nil {
			break
		}
		if errors.Is(err, account.ErrConflict) && attempt < maxUpdateAttempts {
			continue
		}
		mapped := e.storeFailure("reset_password", kind, email, err)
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordReset, false, acct.ID, kind, email, mapped, nil)
		return mapped
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, string(kind), email); err != nil {
			e.logger.Warn().Err(err).Msg("reset login counter")
		}
		if err := e.rateLimiter.ResetOTPVerify(ctx, email); err != nil {
			e.logger.Warn().Err(err).Msg("reset otp verify counter")
		}
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordReset, true, acct.ID, kind, email, nil, func() map[string]string {
		return map[string]string{"otp_checked": fmt.Sprint(code != nil)}
	})
	return nil
}

func (e *Engine) checkOTPBudget(ctx context.Context, kind AccountKind, email string) error {
	if e.rateLimiter == nil {
		return nil
	}
	err := e.rateLimiter.CheckOTPVerify(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, rate.ErrRateLimited) {
		return e.storeFailure("verify_otp", kind, email, err)
	}
	e.metricInc(MetricOTPVerifyRateLimited)
	e.emitAudit(ctx, auditEventOTPVerify, false, "", kind, email, ErrOTPRateLimited, nil)
	return ErrOTPRateLimited
}

func (e *Engine) otpRejected(ctx context.Context, acct *Account, email string) error {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementOTPVerify(ctx, email); err != nil {
			e.logger.Warn().Err(err).Msg("increment otp verify counter")
		}
	}
	e.metricInc(MetricOTPVerifyFailure)
	e.emitAudit(ctx, auditEventOTPVerify, false, acct.ID, acct.Kind, email, ErrInvalidOrExpiredOTP, nil)
	return ErrInvalidOrExpiredOTP
}

func validateNewPassword(plaintext string) error {
	var v validate.Errors
	switch {
	case plaintext == "":
		v.Add("password", "is required")
	case len(plaintext) > account.MaxPasswordLength:
		v.Add("password", fmt.Sprintf("must be at most %d bytes", account.MaxPasswordLength))
	case len([]rune(plaintext)) < account.MinPasswordLength:
		v.Add("password", fmt.Sprintf("must be at least %d characters", account.MinPasswordLength))
	}
	return v.Err()
}
