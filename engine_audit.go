package sehatauth

import (
	"context"
	"errors"

	"github.com/sehatbridge/sehatauth/internal"
)

const (
	auditEventRegister            = "register"
	auditEventLogin               = "login"
	auditEventLoginRateLimited    = "login_rate_limited"
	auditEventOTPIssued           = "otp_issued"
	auditEventOTPDeliveryFailed   = "otp_delivery_failed"
	auditEventOTPRequestLimited   = "otp_request_rate_limited"
	auditEventOTPVerify           = "otp_verify"
	auditEventPasswordReset       = "password_reset"
	auditEventExternalSignIn      = "external_sign_in"
	auditEventExternalProvisioned = "external_account_provisioned"
	auditEventIntakeSubmitted     = "opd_registration"
)

// AuditErrorCode is the stable, non-sensitive error label carried by audit
// events.
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation_failed"
	auditErrDuplicate          AuditErrorCode = "duplicate_email"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidOTP         AuditErrorCode = "invalid_or_expired_otp"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrNotification       AuditErrorCode = "notification_failed"
	auditErrProviderEmail      AuditErrorCode = "provider_email_missing"
	auditErrInvalidKind        AuditErrorCode = "invalid_kind"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	kind AccountKind,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		AccountID: accountID,
		Kind:      string(kind),
		Email:     internal.RedactEmail(email),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidationFailed):
		return auditErrValidation
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidOrExpiredOTP):
		return auditErrInvalidOTP
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrOTPRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrNotificationFailed):
		return auditErrNotification
	case errors.Is(err, ErrProviderEmailMissing):
		return auditErrProviderEmail
	case errors.Is(err, ErrInvalidAccountKind):
		return auditErrInvalidKind
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrIntakePersistFailed):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
