package sehatauth

import (
	"time"

	"github.com/sehatbridge/sehatauth/account"
	"github.com/sehatbridge/sehatauth/intake"
	internalaudit "github.com/sehatbridge/sehatauth/internal/audit"
)

// Account and its parts are re-exported so callers need only this package
// for the common flows.
type (
	Account         = account.Account
	AccountKind     = account.Kind
	Address         = account.Address
	UserProfile     = account.UserProfile
	HospitalProfile = account.HospitalProfile

	IntakeRequest = intake.Request
	IntakeRecord  = intake.Record
)

const (
	KindUser     = account.KindUser
	KindHospital = account.KindHospital
)

// RegisterRequest is the input to [Engine.Register]. Exactly one of User and
// Hospital must be set, matching Kind.
type RegisterRequest struct {
	Kind     AccountKind      `json:"type"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	User     *UserProfile     `json:"user,omitempty"`
	Hospital *HospitalProfile `json:"hospital,omitempty"`
}

// LoginResult is returned by [Engine.Login] and
// [Engine.SignInWithExternalIdentity].
type LoginResult struct {
	Token     string      `json:"token"`
	Message   string      `json:"message"`
	AccountID string      `json:"accountId"`
	Kind      AccountKind `json:"type"`
	ExpiresAt time.Time   `json:"expiresAt"`
	// Created is set when an external sign-in provisioned a new account.
	Created bool `json:"created,omitempty"`
}

// ProviderProfile is the identity asserted by an external provider after its
// own authentication ceremony. Emails are in provider order; the first
// non-empty one is used.
type ProviderProfile struct {
	Provider    string   `json:"provider"`
	Subject     string   `json:"subject"`
	DisplayName string   `json:"displayName"`
	Emails      []string `json:"emails"`
}

// Challenge describes an issued reset code without revealing it.
type Challenge struct {
	Email     string      `json:"email"`
	Kind      AccountKind `json:"type"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// TokenClaims is the validated content of a session token.
type TokenClaims struct {
	AccountID string
	Kind      AccountKind
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuditEvent is one emitted audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpAuditSink drops every event.
type NoOpAuditSink = internalaudit.NoOpSink

// ChannelAuditSink buffers events in a channel.
type ChannelAuditSink = internalaudit.ChannelSink

// JSONWriterAuditSink writes events as JSON lines.
type JSONWriterAuditSink = internalaudit.JSONWriterSink

// LoggerAuditSink writes events through a zerolog logger.
type LoggerAuditSink = internalaudit.LoggerSink

// NewChannelAuditSink returns a sink with the given buffer size.
func NewChannelAuditSink(buffer int) *ChannelAuditSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterAuditSink returns a sink writing to w.
var NewJSONWriterAuditSink = internalaudit.NewJSONWriterSink
