package model

import "time"

// Severity classifies alert urgency. The three values are ordered
// critical > warning > info for display purposes only; escalation is
// driven by policies, not by this ordering.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// AlertStatus is the lifecycle state of an alert instance.
type AlertStatus string

const (
	StatusFiring   AlertStatus = "firing"
	StatusResolved AlertStatus = "resolved"
)

// Comparison operators accepted by AlertRule.Operator.
const (
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpEqual        = "=="
	OpNotEqual     = "!="
)

// Aggregation functions accepted by AlertRule.Aggregation. AggValue means
// the instantaneous reading is compared as-is.
const (
	AggValue = "value"
	AggAvg   = "avg"
	AggMin   = "min"
	AggMax   = "max"
	AggSum   = "sum"
	AggCount = "count"
)

// AlertRule is a declarative threshold condition over a named metric.
// Rules are read-only during evaluation; editing happens through the
// coordinator which swaps the stored copy atomically.
type AlertRule struct {
	ID                   string            `json:"id" yaml:"id"`
	Name                 string            `json:"name" yaml:"name"`
	Description          string            `json:"description,omitempty" yaml:"description"`
	Enabled              bool              `json:"enabled" yaml:"enabled"`
	Severity             Severity          `json:"severity" yaml:"severity"`
	MetricName           string            `json:"metric_name" yaml:"metric_name"`
	Operator             string            `json:"operator" yaml:"operator"`
	Threshold            float64           `json:"threshold" yaml:"threshold"`
	Duration             int               `json:"duration" yaml:"duration"` // seconds the condition must hold
	Aggregation          string            `json:"aggregation" yaml:"aggregation"`
	Labels               map[string]string `json:"labels,omitempty" yaml:"labels"`
	Annotations          map[string]string `json:"annotations,omitempty" yaml:"annotations"`
	NotificationChannels []string          `json:"notification_channels,omitempty" yaml:"notification_channels"`
}

// HoldDuration returns Duration as a time.Duration. Zero means the rule
// fires on the first true evaluation.
func (r *AlertRule) HoldDuration() time.Duration {
	return time.Duration(r.Duration) * time.Second
}

// Alert is one instance of a rule in (or recently out of) the firing state.
// At most one firing Alert exists per rule id at any time.
type Alert struct {
	ID          string             `json:"id"`
	RuleID      string             `json:"rule_id"`
	RuleName    string             `json:"rule_name"`
	Timestamp   time.Time          `json:"timestamp"` // when it started firing
	Severity    Severity           `json:"severity"`
	Status      AlertStatus        `json:"status"`
	Labels      map[string]string  `json:"labels"`
	Annotations map[string]string  `json:"annotations"`
	Values      map[string]float64 `json:"values"`
	Fingerprint string             `json:"fingerprint"`
	ResolvedAt  *time.Time         `json:"resolved_at,omitempty"`
}

// Clone returns a deep copy so callers can hand alerts to other goroutines
// without racing the evaluator's bookkeeping.
func (a *Alert) Clone() *Alert {
	cp := *a
	cp.Labels = copyMap(a.Labels)
	cp.Annotations = copyMap(a.Annotations)
	cp.Values = make(map[string]float64, len(a.Values))
	for k, v := range a.Values {
		cp.Values[k] = v
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ChannelType selects the transport used to deliver a notification.
type ChannelType string

const (
	ChannelEmail     ChannelType = "email"
	ChannelSlack     ChannelType = "slack"
	ChannelWebhook   ChannelType = "webhook"
	ChannelSMS       ChannelType = "sms"
	ChannelPagerDuty ChannelType = "pagerduty"
)

// RateLimitPolicy caps notification volume for a (channel, severity) pair
// within a trailing window.
type RateLimitPolicy struct {
	MaxPerWindow  int `json:"max_per_window" yaml:"max_per_window"`
	WindowSeconds int `json:"window_seconds" yaml:"window_seconds"`
}

// Window returns the trailing window as a time.Duration, defaulting to one
// hour when unset.
func (p *RateLimitPolicy) Window() time.Duration {
	if p.WindowSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(p.WindowSeconds) * time.Second
}

// Limit returns the admission cap, defaulting to 100 when unset.
func (p *RateLimitPolicy) Limit() int {
	if p.MaxPerWindow <= 0 {
		return 100
	}
	return p.MaxPerWindow
}

// NotificationChannel is a configured delivery target. Config holds
// provider-specific settings interpreted by the matching transport.
type NotificationChannel struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Type      ChannelType       `json:"type" yaml:"type"`
	Config    map[string]string `json:"config" yaml:"config"`
	Enabled   bool              `json:"enabled" yaml:"enabled"`
	RateLimit *RateLimitPolicy  `json:"rate_limit,omitempty" yaml:"rate_limit"`
}

// EscalationStep is one level of an escalation policy.
type EscalationStep struct {
	Level       int      `json:"level" yaml:"level"`
	WaitSeconds int      `json:"wait_seconds" yaml:"wait_seconds"`
	Channels    []string `json:"channels" yaml:"channels"`
	Message     string   `json:"message" yaml:"message"`
}

// Wait returns the elapsed-since-firing threshold for a time-based step.
func (s *EscalationStep) Wait() time.Duration {
	return time.Duration(s.WaitSeconds) * time.Second
}

// TimeEscalation escalates by alert age. Levels must be sorted ascending
// by Level; only the first newly-reached level triggers per scan.
type TimeEscalation struct {
	Levels []EscalationStep `json:"levels" yaml:"levels"`
}

// SeverityEscalation escalates by alert severity, once per alert.
type SeverityEscalation struct {
	Levels map[Severity]EscalationStep `json:"levels" yaml:"levels"`
}

// EscalationPolicy intensifies notification for unresolved alerts. A policy
// is either time-based or severity-based (or both).
type EscalationPolicy struct {
	ID            string              `json:"id" yaml:"id"`
	Enabled       bool                `json:"enabled" yaml:"enabled"`
	TimeBased     *TimeEscalation     `json:"time_based,omitempty" yaml:"time_based"`
	SeverityBased *SeverityEscalation `json:"severity_based,omitempty" yaml:"severity_based"`
}

// Statistics is the operational counter snapshot surfaced by the
// coordinator.
type Statistics struct {
	RulesCount              int   `json:"rules_count"`
	ActiveAlertsCount       int   `json:"active_alerts_count"`
	PendingAlertsCount      int   `json:"pending_alerts_count"`
	TotalAlerts             int64 `json:"total_alerts"`
	ResolvedAlerts          int64 `json:"resolved_alerts"`
	NotificationsSent       int64 `json:"notifications_sent"`
	NotificationsFailed     int64 `json:"notifications_failed"`
	NotificationsCount      int   `json:"notifications_count"`
	EscalationPoliciesCount int   `json:"escalation_policies_count"`
}
