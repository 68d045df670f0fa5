package rulesfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilops/vigil/internal/alerting/service/coordinator"
	"github.com/vigilops/vigil/internal/alerting/service/notify"
)

const sampleDefs = `
rules:
  - id: high_cpu
    name: High CPU Usage
    enabled: true
    severity: warning
    metric_name: cpu_usage
    operator: ">"
    threshold: 80
    duration: 300
    notification_channels: [slack_alerts]
  - id: broken_rule
    name: Broken
    enabled: true
    severity: warning
    metric_name: cpu_usage
    operator: "~"
    threshold: 1
channels:
  - id: slack_alerts
    name: Slack Alerts
    type: slack
    enabled: true
    config:
      webhook_url: https://hooks.slack.com/services/T/B/X
    rate_limit:
      max_per_window: 10
      window_seconds: 60
escalation_policies:
  - id: default
    enabled: true
    time_based:
      levels:
        - level: 1
          wait_seconds: 300
          channels: [slack_alerts]
`

func writeDefs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSkipsInvalidRules(t *testing.T) {
	defs, err := Load(writeDefs(t, sampleDefs))
	require.NoError(t, err)

	require.Len(t, defs.Rules, 1, "rule with unknown operator must be skipped")
	assert.Equal(t, "high_cpu", defs.Rules[0].ID)
	require.Len(t, defs.Channels, 1)
	assert.Equal(t, 10, defs.Channels[0].RateLimit.MaxPerWindow)
	require.Len(t, defs.Policies, 1)
	assert.Equal(t, 300, defs.Policies[0].TimeBased.Levels[0].WaitSeconds)
}

func TestLoadSkipsEmptyListItems(t *testing.T) {
	// an empty YAML list item ("-") unmarshals to a nil entry; loading and
	// applying such a file must not panic
	defs, err := Load(writeDefs(t, "rules:\n  -\nchannels:\n  -\nescalation_policies:\n  -\n"))
	require.NoError(t, err)
	assert.Empty(t, defs.Rules)

	coord := coordinator.New(coordinator.Config{}, notify.NewDispatcher(time.Second), nil, nil, prometheus.NewRegistry())
	NewApplier(coord).Apply(defs)
	assert.Empty(t, coord.Rules())
	assert.Equal(t, 0, coord.Stats().NotificationsCount)
	assert.Equal(t, 0, coord.Stats().EscalationPoliciesCount)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeDefs(t, "rules: [not closed"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplierRemovesDroppedEntries(t *testing.T) {
	coord := coordinator.New(coordinator.Config{}, notify.NewDispatcher(time.Second), nil, nil, prometheus.NewRegistry())
	applier := NewApplier(coord)

	defs, err := Load(writeDefs(t, sampleDefs))
	require.NoError(t, err)
	applier.Apply(defs)

	assert.Len(t, coord.Rules(), 1)
	assert.Equal(t, 1, coord.Stats().NotificationsCount)
	assert.Equal(t, 1, coord.Stats().EscalationPoliciesCount)

	// second application with an empty file clears everything file-managed
	applier.Apply(&Definitions{})
	assert.Empty(t, coord.Rules())
	assert.Equal(t, 0, coord.Stats().NotificationsCount)
	assert.Equal(t, 0, coord.Stats().EscalationPoliciesCount)
}
