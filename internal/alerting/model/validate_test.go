package model

import (
	"errors"
	"testing"
)

func validRule() AlertRule {
	return AlertRule{
		ID:         "high_cpu",
		Name:       "High CPU Usage",
		Enabled:    true,
		Severity:   SeverityWarning,
		MetricName: "cpu_usage",
		Operator:   OpGreater,
		Threshold:  80,
		Duration:   300,
	}
}

func TestValidateRule(t *testing.T) {
	r := validRule()
	if err := r.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	cases := map[string]func(*AlertRule){
		"missing id":       func(r *AlertRule) { r.ID = "" },
		"missing metric":   func(r *AlertRule) { r.MetricName = "" },
		"bad metric seg":   func(r *AlertRule) { r.MetricName = "disk.used%" },
		"unknown operator": func(r *AlertRule) { r.Operator = "~=" },
		"unknown agg":      func(r *AlertRule) { r.Aggregation = "median" },
		"unknown severity": func(r *AlertRule) { r.Severity = "fatal" },
		"negative dur":     func(r *AlertRule) { r.Duration = -1 },
		"bad label":        func(r *AlertRule) { r.Labels = map[string]string{"bad-key": "x"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validRule()
			mutate(&r)
			err := r.Validate()
			if !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}
