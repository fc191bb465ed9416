package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sehatbridge/sehatauth/internal"
)

// LogSender records that a code was issued instead of delivering it. With
// RevealCodes set the code itself is logged, which is only acceptable on a
// developer machine.
type LogSender struct {
	Logger      zerolog.Logger
	RevealCodes bool
}

func (l LogSender) SendOTP(_ context.Context, msg OTPMessage) error {
	ev := l.Logger.Info().
		Str("email", internal.RedactEmail(msg.Email)).
		Str("kind", msg.Kind).
		Time("expires_at", msg.ExpiresAt)
	if l.RevealCodes {
		ev = ev.Str("otp", msg.Code)
	}
	ev.Msg("password reset code issued")
	return nil
}
