package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// placeholderPhone is stored for accounts created from an external identity.
const placeholderPhone = "0000000000"

// TwilioConfig configures SMS delivery.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	From        string
	CountryCode string
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender texts reset codes to the account phone number.
type TwilioSender struct {
	api         messageCreator
	from        string
	countryCode string
}

// NewTwilioSender builds a REST client from cfg. CountryCode defaults to +91
// and is prefixed to numbers without one.
func NewTwilioSender(cfg TwilioConfig) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("notify: missing twilio credentials")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioSender(client.Api, cfg), nil
}

func newTwilioSender(api messageCreator, cfg TwilioConfig) *TwilioSender {
	if cfg.CountryCode == "" {
		cfg.CountryCode = "+91"
	}
	return &TwilioSender{api: api, from: cfg.From, countryCode: cfg.CountryCode}
}

// SendOTP ignores ctx cancellation once the request is in flight; the Twilio
// client has no context-aware call.
func (t *TwilioSender) SendOTP(ctx context.Context, msg OTPMessage) error {
	to, ok := t.e164(msg.Phone)
	if !ok {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(otpText(msg))

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("%w: twilio: %v", ErrDeliveryFailed, err)
	}
	if resp != nil && resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		detail := ""
		if resp.ErrorMessage != nil {
			detail = *resp.ErrorMessage
		}
		return fmt.Errorf("%w: twilio error %d: %s", ErrDeliveryFailed, *resp.ErrorCode, detail)
	}
	return nil
}

func (t *TwilioSender) e164(phone string) (string, bool) {
	phone = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
	if phone == "" || phone == placeholderPhone {
		return "", false
	}
	if strings.HasPrefix(phone, "+") {
		return phone, true
	}
	return t.countryCode + strings.TrimLeft(phone, "0"), true
}
