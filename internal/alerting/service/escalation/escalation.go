package escalation

import (
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vigilops/vigil/internal/alerting/model"
)

// State tracks how far one firing alert has progressed through escalation.
// Level is monotonically non-decreasing and gates every emission; it resets
// only by the state being dropped when the alert resolves.
type State struct {
	Level          int
	LastEscalation time.Time
}

// Dispatch is a fan-out request produced by an escalation check. The alert
// is a synthetic copy carrying escalation annotations; it is forwarded to
// the step's channels only and never stored as an independent alert.
type Dispatch struct {
	Alert    *model.Alert
	Channels []string
	PolicyID string
	Level    int
}

// Engine evaluates escalation policies against firing alerts. Like the rule
// evaluator it is not internally synchronized; the coordinator serializes
// access under its evaluation lock.
type Engine struct {
	policies map[string]*model.EscalationPolicy
	state    map[string]*State // alert id -> state
}

func NewEngine() *Engine {
	return &Engine{
		policies: make(map[string]*model.EscalationPolicy),
		state:    make(map[string]*State),
	}
}

func (e *Engine) AddPolicy(p *model.EscalationPolicy) {
	e.policies[p.ID] = p
	log.Info().Str("policy", p.ID).Msg("escalation policy added")
}

func (e *Engine) RemovePolicy(id string) {
	delete(e.policies, id)
}

func (e *Engine) PolicyCount() int { return len(e.policies) }

// Drop discards the escalation state for a resolved alert, so a later
// re-fire of the same rule starts from level 0 again.
func (e *Engine) Drop(alertID string) {
	delete(e.state, alertID)
}

// Check inspects one firing alert against every enabled policy and returns
// the dispatches newly due at now. Per policy at most one time-based level
// triggers per check; levels never cascade within a single scan.
func (e *Engine) Check(alert *model.Alert, now time.Time) []Dispatch {
	if alert == nil || alert.Status != model.StatusFiring {
		return nil
	}

	st, ok := e.state[alert.ID]
	if !ok {
		st = &State{Level: 0, LastEscalation: alert.Timestamp}
		e.state[alert.ID] = st
	}

	var out []Dispatch
	for _, id := range e.sortedPolicyIDs() {
		policy := e.policies[id]
		if !policy.Enabled {
			continue
		}

		if policy.TimeBased != nil {
			for i := range policy.TimeBased.Levels {
				step := &policy.TimeBased.Levels[i]
				if now.Sub(alert.Timestamp) >= step.Wait() && step.Level > st.Level {
					out = append(out, e.escalate(alert, policy, step, "time_based", now, st))
					break
				}
			}
		}

		if policy.SeverityBased != nil {
			if step, ok := policy.SeverityBased.Levels[alert.Severity]; ok && step.Level > st.Level {
				out = append(out, e.escalate(alert, policy, &step, "severity_based", now, st))
			}
		}
	}
	return out
}

func (e *Engine) escalate(alert *model.Alert, policy *model.EscalationPolicy, step *model.EscalationStep, reason string, now time.Time, st *State) Dispatch {
	message := step.Message
	if message == "" {
		message = "Alert escalated: " + alert.RuleName
	}

	syn := alert.Clone()
	syn.ID = alert.ID + "-escalation"
	syn.Annotations["escalation_message"] = message
	syn.Annotations["escalation_level"] = strconv.Itoa(step.Level)
	syn.Annotations["escalation_reason"] = reason

	st.Level = step.Level
	st.LastEscalation = now

	log.Info().
		Str("alert", alert.ID).
		Str("policy", policy.ID).
		Int("level", step.Level).
		Str("reason", reason).
		Msg("alert escalated")

	return Dispatch{Alert: syn, Channels: step.Channels, PolicyID: policy.ID, Level: step.Level}
}

func (e *Engine) sortedPolicyIDs() []string {
	ids := make([]string, 0, len(e.policies))
	for id := range e.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
