package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// ErrInvalidDigits is returned by NewOTP for lengths outside [6, 10].
var ErrInvalidDigits = errors.New("invalid otp digits")

var ten = big.NewInt(10)

// NewOTP returns a uniformly random decimal code of the given length. Leading
// zeros are kept, so "004213" is a valid six-digit code.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", ErrInvalidDigits
	}

	var b strings.Builder
	b.Grow(digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// RedactEmail keeps the first character of the local part and the domain,
// for log lines: "asha@example.org" becomes "a***@example.org".
func RedactEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
