package engine

import (
	"time"

	"github.com/vigilops/vigil/internal/alerting/model"
)

// FiringAlerts returns deep copies of all currently firing alerts.
func (e *Evaluator) FiringAlerts() []*model.Alert {
	out := make([]*model.Alert, 0, len(e.active))
	for _, a := range e.active {
		if a.Status == model.StatusFiring {
			out = append(out, a.Clone())
		}
	}
	return out
}

// AllAlerts returns deep copies of firing plus retained resolved alerts.
func (e *Evaluator) AllAlerts() []*model.Alert {
	out := make([]*model.Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, a.Clone())
	}
	return out
}

// FiringCount reports how many rules currently have a firing alert.
func (e *Evaluator) FiringCount() int {
	n := 0
	for _, a := range e.active {
		if a.Status == model.StatusFiring {
			n++
		}
	}
	return n
}

// PendingCount reports rules whose condition is true but not yet
// duration-satisfied.
func (e *Evaluator) PendingCount() int { return len(e.pending) }

// Restore re-registers a firing alert loaded from the store after restart.
// Resolved alerts are not restored; the sweep would discard them anyway.
func (e *Evaluator) Restore(a *model.Alert) {
	if a == nil || a.Status != model.StatusFiring {
		return
	}
	e.active[a.RuleID] = a.Clone()
}

// ResolveByID marks the alert with the given id resolved, for manual
// resolution by an operator. Returns the updated copy, or nil when no
// firing alert matches.
func (e *Evaluator) ResolveByID(alertID string, now time.Time) *model.Alert {
	for _, a := range e.active {
		if a.ID == alertID && a.Status == model.StatusFiring {
			resolved := now
			a.Status = model.StatusResolved
			a.ResolvedAt = &resolved
			a.Annotations["resolved_at"] = now.UTC().Format(time.RFC3339Nano)
			return a.Clone()
		}
	}
	return nil
}

// AcknowledgeByID stamps acknowledgement annotations on a firing alert.
// Returns the updated copy, or nil when no firing alert matches.
func (e *Evaluator) AcknowledgeByID(alertID, by string, now time.Time) *model.Alert {
	for _, a := range e.active {
		if a.ID == alertID && a.Status == model.StatusFiring {
			a.Annotations["acknowledged_by"] = by
			a.Annotations["acknowledged_at"] = now.UTC().Format(time.RFC3339Nano)
			return a.Clone()
		}
	}
	return nil
}

// SweepResolved drops resolved alerts whose resolution is older than cutoff
// and returns the removed alert ids. Firing alerts are never touched.
func (e *Evaluator) SweepResolved(cutoff time.Time) []string {
	var removed []string
	for ruleID, a := range e.active {
		if a.Status == model.StatusResolved && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			removed = append(removed, a.ID)
			delete(e.active, ruleID)
		}
	}
	return removed
}
