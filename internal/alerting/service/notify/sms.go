package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vigilops/vigil/internal/alerting/model"
)

// SMSTransport is a placeholder gateway: it renders the short message and
// logs it. Wiring a real provider (e.g. Twilio) means replacing Send only.
// Config keys: to_numbers (comma separated).
type SMSTransport struct{}

func (SMSTransport) Type() model.ChannelType { return model.ChannelSMS }

func (SMSTransport) Send(_ context.Context, p *Payload, config map[string]string) error {
	message := fmt.Sprintf("[%s] %s (%s)", strings.ToUpper(string(p.Severity)), p.RuleName, p.Status)
	log.Info().
		Str("to", config["to_numbers"]).
		Str("message", message).
		Msg("sms notification")
	return nil
}
