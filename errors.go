package sehatauth

import (
	"errors"
	"fmt"

	"github.com/sehatbridge/sehatauth/account"
	"github.com/sehatbridge/sehatauth/intake"
	"github.com/sehatbridge/sehatauth/internal/rate"
	"github.com/sehatbridge/sehatauth/internal/validate"
	"github.com/sehatbridge/sehatauth/jwt"
	"github.com/sehatbridge/sehatauth/notify"
	"github.com/sehatbridge/sehatauth/password"
	"github.com/sehatbridge/sehatauth/sequence"
)

var (
	// ErrValidationFailed is matched by every *ValidationError.
	ErrValidationFailed = validate.ErrInvalid
	// ErrDuplicateEmail is returned when the address is registered under any kind.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotFound is returned when the addressed account or record is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpiredOTP is returned for a missing, mismatched or expired code.
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired otp")
	// ErrInvalidToken is returned for a malformed or badly signed token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrStoreUnavailable wraps persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotificationFailed is returned when a reset code could not be
	// delivered. The issued code stays valid.
	ErrNotificationFailed = errors.New("notification failed")
	// ErrProviderEmailMissing is returned when an external identity carries no email.
	ErrProviderEmailMissing = errors.New("provider profile has no email")
	// ErrLoginRateLimited is returned once the failed-login budget is used up.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrOTPRateLimited is returned once reset-code requests or checks exceed their budget.
	ErrOTPRateLimited = errors.New("otp rate limited")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrConcurrentUpdate is returned when an account kept changing under a
	// write after every retry.
	ErrConcurrentUpdate = errors.New("account changed concurrently")
	// ErrInvalidAccountKind is returned for anything other than user or hospital.
	ErrInvalidAccountKind = errors.New("invalid account kind")
	// ErrIntakePersistFailed is returned when a registration number was
	// allocated but the record was not stored.
	ErrIntakePersistFailed = errors.New("registration not stored")
)

// ValidationError lists every offending field of a rejected request.
type ValidationError = validate.Errors

// FieldError names one offending field.
type FieldError = validate.FieldError

// mapError translates subpackage failures into the root taxonomy. Errors that
// are already part of it, and validation errors, pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var verr *validate.Errors
	if errors.As(err, &verr) {
		return verr
	}

	switch {
	case errors.Is(err, account.ErrDuplicateEmail):
		return ErrDuplicateEmail
	case errors.Is(err, account.ErrNotFound), errors.Is(err, intake.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, account.ErrInvalidKind):
		return ErrInvalidAccountKind
	case errors.Is(err, account.ErrConflict):
		return ErrConcurrentUpdate
	case errors.Is(err, intake.ErrPersistFailed):
		return fmt.Errorf("%w: %v", ErrIntakePersistFailed, err)
	case errors.Is(err, account.ErrStoreUnavailable),
		errors.Is(err, sequence.ErrStoreUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case errors.Is(err, sequence.ErrInvalidName):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	case errors.Is(err, jwt.ErrExpiredToken):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrInvalidToken):
		return ErrInvalidToken
	case errors.Is(err, notify.ErrNoRecipient), errors.Is(err, notify.ErrDeliveryFailed):
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	case errors.Is(err, password.ErrEmptyPassword), errors.Is(err, password.ErrPasswordTooLong):
		return passwordFieldError(err)
	}
	return err
}

func passwordFieldError(err error) error {
	var v validate.Errors
	switch {
	case errors.Is(err, password.ErrEmptyPassword):
		v.Add("password", "is required")
	default:
		v.Add("password", fmt.Sprintf("must be at most %d bytes", password.MaxPasswordBytes))
	}
	return v.Err()
}
