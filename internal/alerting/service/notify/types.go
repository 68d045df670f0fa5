package notify

import (
	"context"
	"time"

	"github.com/vigilops/vigil/internal/alerting/model"
)

// Payload is the channel-agnostic notification content. Transports render it
// into their provider-specific wire format; every field here is guaranteed
// present and accurate by the dispatcher.
type Payload struct {
	AlertID     string             `json:"alert_id"`
	RuleID      string             `json:"rule_id"`
	RuleName    string             `json:"rule_name"`
	Severity    model.Severity     `json:"severity"`
	Status      model.AlertStatus  `json:"status"`
	Labels      map[string]string  `json:"labels"`
	Annotations map[string]string  `json:"annotations"`
	Values      map[string]float64 `json:"values"`
	Timestamp   time.Time          `json:"timestamp"`
	Fingerprint string             `json:"fingerprint"`
}

// PayloadFromAlert builds a notification payload from an alert copy.
func PayloadFromAlert(a *model.Alert) *Payload {
	return &Payload{
		AlertID:     a.ID,
		RuleID:      a.RuleID,
		RuleName:    a.RuleName,
		Severity:    a.Severity,
		Status:      a.Status,
		Labels:      a.Labels,
		Annotations: a.Annotations,
		Values:      a.Values,
		Timestamp:   a.Timestamp,
		Fingerprint: a.Fingerprint,
	}
}

// Transport delivers a payload to one provider. Implementations must be safe
// for concurrent use; the dispatcher serializes calls per channel, not per
// transport.
type Transport interface {
	Type() model.ChannelType
	Send(ctx context.Context, p *Payload, config map[string]string) error
}

// Delivery outcomes. Rate limiting is a deliberate skip, not an error.
const (
	OutcomeSent        = "sent"
	OutcomeFailed      = "failed"
	OutcomeRateLimited = "rate_limited"
)

// DeliveryRecord is one notification attempt's result, kept in the bounded
// history for operator inspection.
type DeliveryRecord struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AlertID   string    `json:"alert_id"`
	RuleID    string    `json:"rule_id"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
