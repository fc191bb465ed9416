// Package notify delivers password-reset codes to account holders over
// email or SMS.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoRecipient is returned when the message lacks an address the sender
	// can use.
	ErrNoRecipient = errors.New("notify: no usable recipient")
	// ErrDeliveryFailed wraps transport failures.
	ErrDeliveryFailed = errors.New("notify: delivery failed")
)

// OTPMessage is everything a sender needs to deliver one reset code.
type OTPMessage struct {
	Email     string
	Phone     string
	Name      string
	Kind      string
	Code      string
	ExpiresAt time.Time
	TTL       time.Duration
}

// Sender delivers a reset code.
type Sender interface {
	SendOTP(ctx context.Context, msg OTPMessage) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg OTPMessage) error

func (f SenderFunc) SendOTP(ctx context.Context, msg OTPMessage) error {
	return f(ctx, msg)
}

// Fallback tries each sender in order and stops at the first success.
type Fallback []Sender

func (f Fallback) SendOTP(ctx context.Context, msg OTPMessage) error {
	if len(f) == 0 {
		return fmt.Errorf("%w: no senders configured", ErrDeliveryFailed)
	}

	var errs []error
	for _, s := range f {
		err := s.SendOTP(ctx, msg)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func otpText(msg OTPMessage) string {
	minutes := int(msg.TTL.Round(time.Minute) / time.Minute)
	if minutes <= 0 {
		minutes = 10
	}
	return fmt.Sprintf("Your OTP for password reset is: %s. It will expire in %d minutes.", msg.Code, minutes)
}
