package sehatauth

import (
	"context"
	"errors"
	"strings"

	"github.com/sehatbridge/sehatauth/account"
	"github.com/sehatbridge/sehatauth/internal/validate"
)

// Placeholder profile values for accounts created from an external identity.
// Providers assert only a name and an email.
const (
	placeholderPhone      = "0000000000"
	placeholderText       = "Unknown"
	placeholderPostalCode = "000000"
	placeholderGender     = "Unspecified"
	defaultProviderName   = "External"
)

// SignInWithExternalIdentity signs in the account registered under the
// profile's first email, of either kind. When none exists a User account is
// created with placeholder contact details and a credential derived from the
// provider subject, which the account holder never learns.
//
// The profile must come from a completed provider ceremony; this method does
// not authenticate it.
func (e *Engine) SignInWithExternalIdentity(ctx context.Context, profile ProviderProfile) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email := firstEmail(profile.Emails)
	if email == "" {
		e.emitAudit(ctx, auditEventExternalSignIn, false, "", "", "", ErrProviderEmailMissing, providerMetadata(profile))
		return nil, ErrProviderEmailMissing
	}
	if strings.TrimSpace(profile.Subject) == "" {
		var v validate.Errors
		v.Add("subject", "is required")
		return nil, v.Err()
	}

	acct, err := e.accounts.FindByEmailAnyKind(ctx, email)
	created := false
	switch {
	case errors.Is(err, account.ErrNotFound):
		acct, err = e.provisionExternal(ctx, email, profile)
		if errors.Is(err, account.ErrDuplicateEmail) {
			// A concurrent sign-in created it first.
			acct, err = e.accounts.FindByEmailAnyKind(ctx, email)
		} else {
			created = err == nil
		}
	}
	if err != nil {
		mapped := e.storeFailure("external_sign_in", "", email, err)
		e.emitAudit(ctx, auditEventExternalSignIn, false, "", "", email, mapped, providerMetadata(profile))
		return nil, mapped
	}

	result, err := e.issueLoginResult(acct, "Logged in successfully")
	if err != nil {
		return nil, err
	}
	result.Created = created

	if created {
		e.metricInc(MetricExternalProvisioned)
		e.emitAudit(ctx, auditEventExternalProvisioned, true, acct.ID, acct.Kind, email, nil, providerMetadata(profile))
	}
	e.metricInc(MetricExternalSignIn)
	e.emitAudit(ctx, auditEventExternalSignIn, true, acct.ID, acct.Kind, email, nil, providerMetadata(profile))
	return result, nil
}

func (e *Engine) provisionExternal(ctx context.Context, email string, profile ProviderProfile) (*Account, error) {
	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		name = providerName(profile) + " User"
	}

	return e.accounts.Provision(ctx, account.CreateRequest{
		Kind:     account.KindUser,
		Email:    email,
		Password: profile.Subject,
		User: &account.UserProfile{
			Name:        name,
			Phone:       placeholderPhone,
			DateOfBirth: e.now().UTC(),
			Gender:      placeholderGender,
			Address: account.Address{
				Street:     placeholderText,
				City:       placeholderText,
				State:      placeholderText,
				PostalCode: placeholderPostalCode,
			},
			MedicalHistory: []string{},
		},
	})
}

func firstEmail(emails []string) string {
	for _, email := range emails {
		if email = normalizeEmail(email); email != "" {
			return email
		}
	}
	return ""
}

func providerName(profile ProviderProfile) string {
	if p := strings.TrimSpace(profile.Provider); p != "" {
		return p
	}
	return defaultProviderName
}

func providerMetadata(profile ProviderProfile) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"provider": providerName(profile)}
	}
}
