package sehatauth

import (
	"context"
	"errors"
	"time"
)

// ValidateToken checks a session token's signature and expiry and returns
// its claims. It does not consult the account store.
func (e *Engine) ValidateToken(_ context.Context, token string) (*TokenClaims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		mapped := mapError(err)
		if !errors.Is(mapped, ErrExpiredToken) {
			mapped = ErrInvalidToken
		}
		return nil, mapped
	}

	out := &TokenClaims{
		AccountID: claims.AccountID,
		Kind:      AccountKind(claims.Kind),
		TokenID:   claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// TokenTTL returns the lifetime of issued session tokens.
func (e *Engine) TokenTTL() time.Duration {
	if e == nil || e.tokens == nil {
		return 0
	}
	return e.tokens.TTL()
}
