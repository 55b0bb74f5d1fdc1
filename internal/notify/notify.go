// Package notify delivers verification codes to users over WhatsApp, with
// a log-only fallback for local development.
package notify

import (
	"context"
	"fmt"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/config"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

// codeMessage is the exact WhatsApp body sent to the user.
const codeMessage = "SPR TAC: %s\nValid for 5 minutes.\nDo not share this code."

// TwilioNotifier sends verification codes over the Twilio WhatsApp channel.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioNotifier builds a notifier from Twilio credentials. All three
// credentials must be configured.
func NewTwilioNotifier(cfg *config.TwilioConfig) (*TwilioNotifier, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, fmt.Errorf("missing Twilio credentials: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	util.Info("Twilio notifier initialized", zap.String("from", cfg.FromNumber))
	return &TwilioNotifier{
		client: client,
		from:   cfg.FromNumber,
	}, nil
}

// SendCode delivers the code to phone (digits only, country code first)
// as a WhatsApp message.
func (n *TwilioNotifier) SendCode(ctx context.Context, phone, code string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(whatsappAddress(phone))
	params.SetFrom(whatsappAddress(n.from))
	params.SetBody(fmt.Sprintf(codeMessage, code))

	resp, err := n.client.Api.CreateMessage(params)
	if err != nil {
		util.Warn("Failed to send WhatsApp message",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Error(err))
		return fmt.Errorf("twilio send failed: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	util.Info("WhatsApp message sent",
		zap.String("phone", util.MaskPhone(phone)),
		zap.String("sid", sid))
	return nil
}

// whatsappAddress prefixes the E.164 form with the WhatsApp channel scheme.
func whatsappAddress(number string) string {
	if len(number) > 0 && number[0] == '+' {
		return "whatsapp:" + number
	}
	return "whatsapp:+" + number
}

// LogNotifier writes the code to the application log instead of sending it.
// Development only; plaintext codes must never reach production logs.
type LogNotifier struct{}

// NewLogNotifier creates the development notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SendCode(ctx context.Context, phone, code string) error {
	util.Info("OTP code (development delivery)",
		zap.String("phone", util.MaskPhone(phone)),
		zap.String("code", code))
	return nil
}
