package coordinator

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/vigilops/vigil/internal/alerting/model"
	"github.com/vigilops/vigil/internal/alerting/service/engine"
	"github.com/vigilops/vigil/internal/alerting/service/escalation"
	"github.com/vigilops/vigil/internal/alerting/service/notify"
)

const (
	defaultEscalationInterval = 60 * time.Second
	defaultRetentionInterval  = time.Hour
	defaultRetentionGrace     = 5 * time.Minute
)

// Store persists alert instances across restarts. A nil Store disables
// persistence without changing any in-memory behavior.
type Store interface {
	UpsertAlert(ctx context.Context, a *model.Alert) error
	LoadFiringAlerts(ctx context.Context) ([]*model.Alert, error)
	PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cache mirrors alert state to an external read path. Best-effort only.
type Cache interface {
	WriteAlert(ctx context.Context, a *model.Alert) error
	RemoveAlert(ctx context.Context, id string) error
}

type Config struct {
	EscalationInterval time.Duration
	RetentionInterval  time.Duration
	RetentionGrace     time.Duration
}

func (c Config) withDefaults() Config {
	if c.EscalationInterval <= 0 {
		c.EscalationInterval = defaultEscalationInterval
	}
	if c.RetentionInterval <= 0 {
		c.RetentionInterval = defaultRetentionInterval
	}
	if c.RetentionGrace <= 0 {
		c.RetentionGrace = defaultRetentionGrace
	}
	return c
}

// Coordinator owns the rule set, the evaluator, and the escalation engine,
// serializing every state transition under one lock. Persistence and
// notification fan-out happen outside the lock on deep copies, so a slow
// store or transport never stalls evaluation.
type Coordinator struct {
	cfg        Config
	dispatcher *notify.Dispatcher
	store      Store
	cache      Cache
	metrics    *Metrics

	mu    sync.Mutex
	rules map[string]*model.AlertRule
	eval  *engine.Evaluator
	esc   *escalation.Engine

	totalFired    atomic.Int64
	totalResolved atomic.Int64
}

func New(cfg Config, dispatcher *notify.Dispatcher, store Store, cache Cache, reg prometheus.Registerer) *Coordinator {
	return &Coordinator{
		cfg:        cfg.withDefaults(),
		dispatcher: dispatcher,
		store:      store,
		cache:      cache,
		metrics:    NewMetrics(reg, dispatcher),
		rules:      make(map[string]*model.AlertRule),
		eval:       engine.NewEvaluator(),
		esc:        escalation.NewEngine(),
	}
}

// UpsertRule validates and installs a rule, replacing any existing rule
// with the same id. Disabling a rule never resolves its firing alert; the
// alert stays up until the rule is re-enabled or resolved manually.
func (c *Coordinator) UpsertRule(rule *model.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[rule.ID] = rule
	if !rule.Enabled && c.firingAlertForLocked(rule.ID) != nil {
		log.Warn().Str("rule", rule.ID).Msg("rule disabled while its alert is firing; alert stays active until resolved manually")
	}
	c.updateGaugesLocked()
	log.Info().Str("rule", rule.ID).Bool("enabled", rule.Enabled).Msg("alert rule installed")
	return nil
}

// RemoveRule drops a rule. Pending state goes with it; a firing alert is
// left in place, same as disabling.
func (c *Coordinator) RemoveRule(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rules[id]; !ok {
		return false
	}
	delete(c.rules, id)
	c.updateGaugesLocked()
	log.Info().Str("rule", id).Msg("alert rule removed")
	return true
}

func (c *Coordinator) Rule(id string) (*model.AlertRule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rules[id]
	return r, ok
}

// Rules lists all rules sorted by id.
func (c *Coordinator) Rules() []*model.AlertRule {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.AlertRule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Coordinator) AddChannel(ch *model.NotificationChannel) { c.dispatcher.AddChannel(ch) }
func (c *Coordinator) RemoveChannel(id string)                  { c.dispatcher.RemoveChannel(id) }

func (c *Coordinator) AddPolicy(p *model.EscalationPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.esc.AddPolicy(p)
}

func (c *Coordinator) RemovePolicy(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.esc.RemovePolicy(id)
}

// firedAlert pairs a state transition with the channels it notifies.
type firedAlert struct {
	alert    *model.Alert
	channels []string
}

// EvaluateSnapshot runs one evaluation pass over every rule.
func (c *Coordinator) EvaluateSnapshot(ctx context.Context, snap model.Snapshot) {
	c.EvaluateSnapshotAt(ctx, snap, time.Now())
}

// EvaluateSnapshotAt is EvaluateSnapshot with an explicit clock, used by
// the scheduler and by tests. Rules are evaluated in id order; a failure
// in one rule never aborts the pass.
func (c *Coordinator) EvaluateSnapshotAt(ctx context.Context, snap model.Snapshot, now time.Time) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.rules))
	for id := range c.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var fired, resolved []firedAlert
	for _, id := range ids {
		rule := c.rules[id]
		res := c.evaluateRule(rule, snap, now)
		switch res.Outcome {
		case engine.OutcomeFiring:
			fired = append(fired, firedAlert{alert: res.Alert, channels: rule.NotificationChannels})
		case engine.OutcomeResolved:
			resolved = append(resolved, firedAlert{alert: res.Alert, channels: rule.NotificationChannels})
			c.esc.Drop(res.Alert.ID)
		}
	}
	c.updateGaugesLocked()
	c.mu.Unlock()

	for _, f := range fired {
		c.totalFired.Add(1)
		c.metrics.AlertsFired.Inc()
		c.persistAlert(ctx, f.alert)
		c.dispatcher.Send(ctx, notify.PayloadFromAlert(f.alert), f.channels)
	}
	for _, r := range resolved {
		c.totalResolved.Add(1)
		c.metrics.AlertsResolved.Inc()
		c.persistAlert(ctx, r.alert)
		c.dispatcher.Send(ctx, notify.PayloadFromAlert(r.alert), r.channels)
	}
}

func (c *Coordinator) evaluateRule(rule *model.AlertRule, snap model.Snapshot, now time.Time) (res engine.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("rule", rule.ID).Msg("rule evaluation panicked")
			res = engine.Result{Outcome: engine.OutcomeNoop}
		}
	}()
	return c.eval.Evaluate(rule, snap, now)
}

// EscalationScan checks every firing alert against the escalation policies
// and fans out whatever came due.
func (c *Coordinator) EscalationScan(ctx context.Context, now time.Time) {
	c.mu.Lock()
	var dispatches []escalation.Dispatch
	for _, a := range c.eval.FiringAlerts() {
		dispatches = append(dispatches, c.esc.Check(a, now)...)
	}
	c.mu.Unlock()

	for _, disp := range dispatches {
		c.metrics.Escalations.Inc()
		c.dispatcher.Send(ctx, notify.PayloadFromAlert(disp.Alert), disp.Channels)
	}
}

// RetentionSweep drops resolved alerts older than the grace period from
// memory, cache, and store.
func (c *Coordinator) RetentionSweep(ctx context.Context, now time.Time) {
	cutoff := now.Add(-c.cfg.RetentionGrace)

	c.mu.Lock()
	removed := c.eval.SweepResolved(cutoff)
	c.mu.Unlock()

	if len(removed) > 0 {
		c.metrics.PurgedAlerts.Add(float64(len(removed)))
		log.Info().Int("count", len(removed)).Msg("resolved alerts swept")
	}
	if c.cache != nil {
		for _, id := range removed {
			if err := c.cache.RemoveAlert(ctx, id); err != nil {
				log.Error().Err(err).Str("alert", id).Msg("failed to remove alert from cache")
			}
		}
	}
	if c.store != nil {
		n, err := c.store.PurgeResolvedBefore(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("failed to purge resolved alerts from store")
		} else if n > 0 {
			log.Debug().Int64("rows", n).Msg("resolved alerts purged from store")
		}
	}
}

// Run drives the periodic escalation and retention scans until ctx is
// canceled. Evaluation itself is push-driven through EvaluateSnapshot.
func (c *Coordinator) Run(ctx context.Context) {
	log.Info().
		Dur("escalation_interval", c.cfg.EscalationInterval).
		Dur("retention_interval", c.cfg.RetentionInterval).
		Msg("alert coordinator started")

	escTicker := time.NewTicker(c.cfg.EscalationInterval)
	defer escTicker.Stop()
	retTicker := time.NewTicker(c.cfg.RetentionInterval)
	defer retTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("alert coordinator stopped")
			return
		case <-escTicker.C:
			c.EscalationScan(ctx, time.Now())
		case <-retTicker.C:
			c.RetentionSweep(ctx, time.Now())
		}
	}
}

// Restore reloads firing alerts from the store after a restart so they
// keep blocking re-fires and keep escalating.
func (c *Coordinator) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	alerts, err := c.store.LoadFiringAlerts(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	for _, a := range alerts {
		c.eval.Restore(a)
	}
	c.updateGaugesLocked()
	c.mu.Unlock()

	if len(alerts) > 0 {
		log.Info().Int("count", len(alerts)).Msg("firing alerts restored from store")
	}
	return nil
}

// ResolveAlert resolves a firing alert by id on behalf of an operator.
func (c *Coordinator) ResolveAlert(ctx context.Context, alertID string) (*model.Alert, bool) {
	now := time.Now()

	c.mu.Lock()
	a := c.eval.ResolveByID(alertID, now)
	var channels []string
	if a != nil {
		c.esc.Drop(a.ID)
		if rule, ok := c.rules[a.RuleID]; ok {
			channels = rule.NotificationChannels
		}
		c.updateGaugesLocked()
	}
	c.mu.Unlock()

	if a == nil {
		return nil, false
	}
	c.totalResolved.Add(1)
	c.metrics.AlertsResolved.Inc()
	c.persistAlert(ctx, a)
	c.dispatcher.Send(ctx, notify.PayloadFromAlert(a), channels)
	log.Info().Str("alert", alertID).Msg("alert resolved manually")
	return a, true
}

// AcknowledgeAlert marks a firing alert acknowledged without resolving it.
func (c *Coordinator) AcknowledgeAlert(ctx context.Context, alertID, by string) (*model.Alert, bool) {
	c.mu.Lock()
	a := c.eval.AcknowledgeByID(alertID, by, time.Now())
	c.mu.Unlock()

	if a == nil {
		return nil, false
	}
	c.persistAlert(ctx, a)
	log.Info().Str("alert", alertID).Str("by", by).Msg("alert acknowledged")
	return a, true
}

// Alerts returns alerts filtered by status and severity (empty matches
// all), newest first, capped at limit when limit > 0.
func (c *Coordinator) Alerts(status, severity string, limit int) []*model.Alert {
	c.mu.Lock()
	all := c.eval.AllAlerts()
	c.mu.Unlock()

	out := all[:0]
	for _, a := range all {
		if status != "" && string(a.Status) != status {
			continue
		}
		if severity != "" && string(a.Severity) != severity {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats snapshots the counters exposed on the stats endpoint.
func (c *Coordinator) Stats() model.Statistics {
	c.mu.Lock()
	s := model.Statistics{
		RulesCount:              len(c.rules),
		ActiveAlertsCount:       c.eval.FiringCount(),
		PendingAlertsCount:      c.eval.PendingCount(),
		EscalationPoliciesCount: c.esc.PolicyCount(),
	}
	c.mu.Unlock()

	s.TotalAlerts = c.totalFired.Load()
	s.ResolvedAlerts = c.totalResolved.Load()
	s.NotificationsSent = c.dispatcher.Sent()
	s.NotificationsFailed = c.dispatcher.Failed()
	s.NotificationsCount = c.dispatcher.ChannelCount()
	return s
}

// History proxies the dispatcher's delivery log.
func (c *Coordinator) History(limit int) []notify.DeliveryRecord {
	return c.dispatcher.History(limit)
}

func (c *Coordinator) persistAlert(ctx context.Context, a *model.Alert) {
	if c.store != nil {
		if err := c.store.UpsertAlert(ctx, a); err != nil {
			log.Error().Err(err).Str("alert", a.ID).Msg("failed to persist alert")
		}
	}
	if c.cache != nil {
		if err := c.cache.WriteAlert(ctx, a); err != nil {
			log.Error().Err(err).Str("alert", a.ID).Msg("failed to cache alert")
		}
	}
}

func (c *Coordinator) firingAlertForLocked(ruleID string) *model.Alert {
	for _, a := range c.eval.FiringAlerts() {
		if a.RuleID == ruleID {
			return a
		}
	}
	return nil
}

func (c *Coordinator) updateGaugesLocked() {
	c.metrics.RulesTotal.Set(float64(len(c.rules)))
	c.metrics.FiringAlerts.Set(float64(c.eval.FiringCount()))
	c.metrics.PendingAlerts.Set(float64(c.eval.PendingCount()))
}
