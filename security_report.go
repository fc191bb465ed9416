package sehatauth

import (
	"time"

	"github.com/sehatbridge/sehatauth/notify"
)

// SecurityReport summarizes the effective security posture of a built Engine,
// for startup logs and operator dashboards. It never includes key material.
type SecurityReport struct {
	SigningAlgorithm      string
	TokenTTL              time.Duration
	TokenLeeway           time.Duration
	Argon2                PasswordConfigReport
	UpgradeOnLogin        bool
	OTPDigits             int
	OTPTTL                time.Duration
	ResetRequiresOTP      bool
	LoginRateLimiting     bool
	OTPRateLimiting       bool
	IPThrottleActive      bool
	AuditEnabled          bool
	OTPDeliveryConfigured bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	limiter := e.rateLimiter != nil
	sec := e.config.Security
	_, logOnly := e.notifier.(notify.LogSender)

	return SecurityReport{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		TokenTTL:         e.config.JWT.TTL,
		TokenLeeway:      e.config.JWT.Leeway,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Argon2.Memory,
			Time:        e.config.Password.Argon2.Time,
			Parallelism: e.config.Password.Argon2.Parallelism,
			SaltLength:  e.config.Password.Argon2.SaltLength,
			KeyLength:   e.config.Password.Argon2.KeyLength,
		},
		UpgradeOnLogin:        e.config.Password.UpgradeOnLogin,
		OTPDigits:             e.config.OTP.Digits,
		OTPTTL:                e.config.OTP.TTL,
		ResetRequiresOTP:      e.config.PasswordReset.RequireOTP,
		LoginRateLimiting:     limiter && sec.MaxLoginAttempts > 0,
		OTPRateLimiting:       limiter && (sec.MaxOTPVerifyAttempts > 0 || sec.MaxOTPRequests > 0),
		IPThrottleActive:      limiter && sec.EnableIPThrottle && sec.MaxLoginAttempts > 0,
		AuditEnabled:          e.audit != nil,
		OTPDeliveryConfigured: e.notifier != nil && !logOnly,
	}
}
