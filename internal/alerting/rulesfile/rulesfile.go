// Package rulesfile loads alert rules, notification channels, and
// escalation policies from a YAML definition file and keeps a running
// coordinator in sync with it.
package rulesfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/vigilops/vigil/internal/alerting/model"
	"github.com/vigilops/vigil/internal/alerting/service/coordinator"
)

// Definitions is the on-disk shape of the rules file.
type Definitions struct {
	Rules    []*model.AlertRule           `yaml:"rules"`
	Channels []*model.NotificationChannel `yaml:"channels"`
	Policies []*model.EscalationPolicy    `yaml:"escalation_policies"`
}

// Load parses the file at path. Invalid rules are skipped with a warning
// so one bad entry never blocks the rest of the file.
func Load(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	valid := defs.Rules[:0]
	for _, r := range defs.Rules {
		// an empty YAML list item unmarshals to nil
		if r == nil {
			log.Warn().Msg("skipping empty rule definition")
			continue
		}
		if err := r.Validate(); err != nil {
			log.Warn().Err(err).Str("rule", r.ID).Msg("skipping invalid rule definition")
			continue
		}
		valid = append(valid, r)
	}
	defs.Rules = valid
	return &defs, nil
}

// Applier applies successive Definitions to a coordinator, removing
// entries that disappeared from the file between applications.
type Applier struct {
	coord *coordinator.Coordinator

	mu         sync.Mutex
	ruleIDs    map[string]struct{}
	channelIDs map[string]struct{}
	policyIDs  map[string]struct{}
}

func NewApplier(c *coordinator.Coordinator) *Applier {
	return &Applier{
		coord:      c,
		ruleIDs:    make(map[string]struct{}),
		channelIDs: make(map[string]struct{}),
		policyIDs:  make(map[string]struct{}),
	}
}

// Apply installs defs and removes whatever the previous application added
// that defs no longer contains. Entries created through the API are not
// tracked here and survive reloads untouched.
func (a *Applier) Apply(defs *Definitions) {
	a.mu.Lock()
	defer a.mu.Unlock()

	nextRules := make(map[string]struct{}, len(defs.Rules))
	for _, r := range defs.Rules {
		if r == nil {
			continue
		}
		if err := a.coord.UpsertRule(r); err != nil {
			log.Warn().Err(err).Str("rule", r.ID).Msg("rule rejected by coordinator")
			continue
		}
		nextRules[r.ID] = struct{}{}
	}
	for id := range a.ruleIDs {
		if _, ok := nextRules[id]; !ok {
			a.coord.RemoveRule(id)
		}
	}
	a.ruleIDs = nextRules

	nextChannels := make(map[string]struct{}, len(defs.Channels))
	for _, ch := range defs.Channels {
		if ch == nil {
			log.Warn().Msg("skipping empty channel definition")
			continue
		}
		a.coord.AddChannel(ch)
		nextChannels[ch.ID] = struct{}{}
	}
	for id := range a.channelIDs {
		if _, ok := nextChannels[id]; !ok {
			a.coord.RemoveChannel(id)
		}
	}
	a.channelIDs = nextChannels

	nextPolicies := make(map[string]struct{}, len(defs.Policies))
	for _, p := range defs.Policies {
		if p == nil {
			log.Warn().Msg("skipping empty escalation policy definition")
			continue
		}
		a.coord.AddPolicy(p)
		nextPolicies[p.ID] = struct{}{}
	}
	for id := range a.policyIDs {
		if _, ok := nextPolicies[id]; !ok {
			a.coord.RemovePolicy(id)
		}
	}
	a.policyIDs = nextPolicies

	log.Info().
		Int("rules", len(nextRules)).
		Int("channels", len(nextChannels)).
		Int("policies", len(nextPolicies)).
		Msg("alert definitions applied")
}
