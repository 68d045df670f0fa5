package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vigilops/vigil/internal/alerting/model"
)

// Outcome classifies the result of evaluating one rule against one snapshot.
type Outcome int

const (
	OutcomeNoop Outcome = iota
	OutcomeFiring
	OutcomeResolved
)

// Result carries the alert transition produced by Evaluate. Alert is a deep
// copy for firing/resolved outcomes and nil otherwise.
type Result struct {
	Outcome Outcome
	Alert   *model.Alert
}

var noop = Result{Outcome: OutcomeNoop}

type pendingState struct {
	firstSeen time.Time
	value     float64
}

// Evaluator runs the per-rule pending -> firing -> resolved state machine.
// All state is instance-owned so multiple evaluators (e.g. per tenant) can
// coexist in one process. The Evaluator is not internally synchronized: the
// coordinator holds an exclusive lock across a whole evaluation pass so
// escalation scans never observe a half-updated alert set.
type Evaluator struct {
	pending map[string]*pendingState
	active  map[string]*model.Alert // rule id -> firing or recently resolved alert
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		pending: make(map[string]*pendingState),
		active:  make(map[string]*model.Alert),
	}
}

// Evaluate runs one rule against one snapshot at the given instant.
// A missing metric is a no-op for the rule this cycle: it neither clears
// pending state nor resolves a firing alert.
func (e *Evaluator) Evaluate(rule *model.AlertRule, snap model.Snapshot, now time.Time) Result {
	if rule == nil || !rule.Enabled {
		return noop
	}

	value, ok := e.metricValue(rule, snap)
	if !ok {
		return noop
	}

	met, err := compare(value, rule.Operator, rule.Threshold)
	if err != nil {
		log.Error().Err(err).Str("rule", rule.ID).Msg("rule evaluation skipped")
		return noop
	}

	if met {
		ps, exists := e.pending[rule.ID]
		if !exists {
			ps = &pendingState{firstSeen: now, value: value}
			e.pending[rule.ID] = ps
		} else {
			ps.value = value
		}
		if now.Sub(ps.firstSeen) >= rule.HoldDuration() {
			return e.promote(rule, now, value)
		}
		return noop
	}

	delete(e.pending, rule.ID)
	if a := e.active[rule.ID]; a != nil && a.Status == model.StatusFiring {
		resolved := now
		a.Status = model.StatusResolved
		a.ResolvedAt = &resolved
		a.Annotations["resolved_at"] = now.UTC().Format(time.RFC3339Nano)
		log.Info().Str("rule", rule.ID).Str("alert", a.ID).Msg("alert resolved")
		return Result{Outcome: OutcomeResolved, Alert: a.Clone()}
	}
	return noop
}

// promote turns a duration-satisfied pending condition into a firing alert.
// A rule cannot double-fire: while an alert is firing the promotion is a
// no-op.
func (e *Evaluator) promote(rule *model.AlertRule, now time.Time, value float64) Result {
	if a := e.active[rule.ID]; a != nil && a.Status == model.StatusFiring {
		return noop
	}

	alert := &model.Alert{
		ID:          fmt.Sprintf("%s-%d", rule.ID, now.Unix()),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Timestamp:   now,
		Severity:    rule.Severity,
		Status:      model.StatusFiring,
		Labels:      cloneLabels(rule.Labels),
		Annotations: cloneLabels(rule.Annotations),
		Values:      map[string]float64{"value": value},
	}
	alert.Fingerprint = model.Fingerprint(rule.ID, alert.Labels, rule.Severity)

	e.active[rule.ID] = alert
	delete(e.pending, rule.ID)

	log.Info().
		Str("rule", rule.ID).
		Str("alert", alert.ID).
		Str("severity", string(rule.Severity)).
		Float64("value", value).
		Msg("alert firing")
	return Result{Outcome: OutcomeFiring, Alert: alert.Clone()}
}

// metricValue extracts the rule's metric from the snapshot. When the rule
// declares a non-trivial aggregation and the path resolves to a series, the
// aggregate of the series is used; a scalar reading is used as-is regardless
// of the declared aggregation (window aggregation is the collector's job).
func (e *Evaluator) metricValue(rule *model.AlertRule, snap model.Snapshot) (float64, bool) {
	if rule.Aggregation != "" && rule.Aggregation != model.AggValue {
		if series, ok := snap.Series(rule.MetricName); ok {
			return aggregate(rule.Aggregation, series), true
		}
	}
	return snap.Lookup(rule.MetricName)
}

func aggregate(agg string, vals []float64) float64 {
	switch agg {
	case model.AggCount:
		return float64(len(vals))
	case model.AggSum, model.AggAvg:
		var sum float64
		for _, v := range vals {
			sum += v
		}
		if agg == model.AggSum {
			return sum
		}
		return sum / float64(len(vals))
	case model.AggMin:
		min := vals[0]
		for _, v := range vals[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case model.AggMax:
		max := vals[0]
		for _, v := range vals[1:] {
			if v > max {
				max = v
			}
		}
		return max
	default:
		return vals[len(vals)-1]
	}
}

func compare(value float64, operator string, threshold float64) (bool, error) {
	switch operator {
	case model.OpGreater:
		return value > threshold, nil
	case model.OpGreaterEqual:
		return value >= threshold, nil
	case model.OpLess:
		return value < threshold, nil
	case model.OpLessEqual:
		return value <= threshold, nil
	case model.OpEqual:
		return value == threshold, nil
	case model.OpNotEqual:
		return value != threshold, nil
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

func cloneLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
