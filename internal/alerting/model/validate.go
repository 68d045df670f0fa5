package model

import (
	"errors"
	"fmt"
	"strings"

	promModel "github.com/prometheus/common/model"
)

// ErrInvalidRule marks configuration errors. Rules failing validation are
// skipped by the evaluator until corrected; they never crash the engine.
var ErrInvalidRule = errors.New("invalid alert rule")

var validOperators = map[string]struct{}{
	OpGreater: {}, OpGreaterEqual: {}, OpLess: {}, OpLessEqual: {}, OpEqual: {}, OpNotEqual: {},
}

var validAggregations = map[string]struct{}{
	AggValue: {}, AggAvg: {}, AggMin: {}, AggMax: {}, AggSum: {}, AggCount: {},
}

var validSeverities = map[Severity]struct{}{
	SeverityCritical: {}, SeverityWarning: {}, SeverityInfo: {},
}

// Validate reports the first configuration error in the rule. Each dot-path
// segment of the metric name and every label key must satisfy Prometheus
// label-name syntax.
func (r *AlertRule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w %s: missing name", ErrInvalidRule, r.ID)
	}
	if r.MetricName == "" {
		return fmt.Errorf("%w %s: missing metric_name", ErrInvalidRule, r.ID)
	}
	for _, seg := range strings.Split(r.MetricName, ".") {
		if !promModel.LabelName(seg).IsValid() {
			return fmt.Errorf("%w %s: bad metric_name segment %q", ErrInvalidRule, r.ID, seg)
		}
	}
	if _, ok := validOperators[r.Operator]; !ok {
		return fmt.Errorf("%w %s: unknown operator %q", ErrInvalidRule, r.ID, r.Operator)
	}
	if r.Aggregation != "" {
		if _, ok := validAggregations[r.Aggregation]; !ok {
			return fmt.Errorf("%w %s: unknown aggregation %q", ErrInvalidRule, r.ID, r.Aggregation)
		}
	}
	if _, ok := validSeverities[r.Severity]; !ok {
		return fmt.Errorf("%w %s: unknown severity %q", ErrInvalidRule, r.ID, r.Severity)
	}
	if r.Duration < 0 {
		return fmt.Errorf("%w %s: negative duration", ErrInvalidRule, r.ID)
	}
	for k := range r.Labels {
		if !promModel.LabelName(k).IsValid() {
			return fmt.Errorf("%w %s: bad label name %q", ErrInvalidRule, r.ID, k)
		}
	}
	return nil
}
