package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilops/vigil/internal/alerting/model"
)

func firingAlert(id string, at time.Time) *model.Alert {
	return &model.Alert{
		ID:          id,
		RuleID:      "high_cpu",
		RuleName:    "High CPU Usage",
		Timestamp:   at,
		Severity:    model.SeverityCritical,
		Status:      model.StatusFiring,
		Labels:      map[string]string{"component": "cpu"},
		Annotations: map[string]string{},
		Values:      map[string]float64{"value": 95},
	}
}

func twoLevelPolicy() *model.EscalationPolicy {
	return &model.EscalationPolicy{
		ID:      "oncall",
		Enabled: true,
		TimeBased: &model.TimeEscalation{
			Levels: []model.EscalationStep{
				{Level: 1, WaitSeconds: 0, Channels: []string{"slack"}},
				{Level: 2, WaitSeconds: 300, Channels: []string{"pagerduty"}, Message: "still unresolved"},
			},
		},
	}
}

func TestTimeBasedEscalationLevels(t *testing.T) {
	e := NewEngine()
	e.AddPolicy(twoLevelPolicy())

	fired := time.Unix(1000, 0)
	alert := firingAlert("high_cpu-1000", fired)

	// first scan at t=0: level 1 only
	out := e.Check(alert, fired)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Level)
	assert.Equal(t, []string{"slack"}, out[0].Channels)
	assert.Equal(t, "1", out[0].Alert.Annotations["escalation_level"])
	assert.Equal(t, "time_based", out[0].Alert.Annotations["escalation_reason"])

	// before 300s: nothing new, level 1 never re-triggers
	out = e.Check(alert, fired.Add(60*time.Second))
	assert.Empty(t, out)

	// at 300s: level 2 fires once
	out = e.Check(alert, fired.Add(300*time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Level)
	assert.Equal(t, "still unresolved", out[0].Alert.Annotations["escalation_message"])

	out = e.Check(alert, fired.Add(600*time.Second))
	assert.Empty(t, out, "level never decreases and never repeats")
}

func TestNoCascadeWithinOneScan(t *testing.T) {
	e := NewEngine()
	e.AddPolicy(twoLevelPolicy())

	fired := time.Unix(1000, 0)
	alert := firingAlert("high_cpu-1000", fired)

	// first scan happens long after both waits elapsed: only the first
	// newly-triggered level fires this cycle
	out := e.Check(alert, fired.Add(400*time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Level)

	out = e.Check(alert, fired.Add(460*time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Level)
}

func TestSeverityBasedEscalation(t *testing.T) {
	e := NewEngine()
	e.AddPolicy(&model.EscalationPolicy{
		ID:      "sev",
		Enabled: true,
		SeverityBased: &model.SeverityEscalation{
			Levels: map[model.Severity]model.EscalationStep{
				model.SeverityCritical: {Level: 3, Channels: []string{"pagerduty"}},
			},
		},
	})

	alert := firingAlert("high_cpu-1000", time.Unix(1000, 0))
	out := e.Check(alert, time.Unix(1010, 0))
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].Level)
	assert.Equal(t, "severity_based", out[0].Alert.Annotations["escalation_reason"])

	assert.Empty(t, e.Check(alert, time.Unix(1070, 0)), "severity escalation emits once per alert")
}

func TestDisabledPolicyIgnored(t *testing.T) {
	e := NewEngine()
	p := twoLevelPolicy()
	p.Enabled = false
	e.AddPolicy(p)

	alert := firingAlert("high_cpu-1000", time.Unix(1000, 0))
	assert.Empty(t, e.Check(alert, time.Unix(2000, 0)))
}

func TestResolvedAlertNeverEscalates(t *testing.T) {
	e := NewEngine()
	e.AddPolicy(twoLevelPolicy())

	alert := firingAlert("high_cpu-1000", time.Unix(1000, 0))
	alert.Status = model.StatusResolved
	assert.Empty(t, e.Check(alert, time.Unix(2000, 0)))
}

func TestStateResetsAfterDrop(t *testing.T) {
	e := NewEngine()
	e.AddPolicy(twoLevelPolicy())

	first := firingAlert("high_cpu-1000", time.Unix(1000, 0))
	require.Len(t, e.Check(first, time.Unix(1000, 0)), 1)
	e.Drop(first.ID)

	// a re-fired rule gets a fresh alert id and starts from level 0
	second := firingAlert("high_cpu-5000", time.Unix(5000, 0))
	out := e.Check(second, time.Unix(5000, 0))
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Level)
}
