package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilops/vigil/internal/alerting/model"
)

// fakeTransport records sends and fails on demand, standing in for the
// webhook transport in dispatcher tests.
type fakeTransport struct {
	mu       sync.Mutex
	sends    []string
	failFor  map[string]bool
	chanType model.ChannelType
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failFor: map[string]bool{}, chanType: model.ChannelWebhook}
}

func (f *fakeTransport) Type() model.ChannelType { return f.chanType }

func (f *fakeTransport) Send(_ context.Context, p *Payload, config map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, config["name"])
	if f.failFor[config["name"]] {
		return fmt.Errorf("transport down")
	}
	return nil
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func webhookChannel(id string, limit *model.RateLimitPolicy) *model.NotificationChannel {
	return &model.NotificationChannel{
		ID:        id,
		Name:      id,
		Type:      model.ChannelWebhook,
		Config:    map[string]string{"name": id},
		Enabled:   true,
		RateLimit: limit,
	}
}

func testPayload() *Payload {
	return &Payload{
		AlertID:     "high_cpu-1000",
		RuleID:      "high_cpu",
		RuleName:    "High CPU Usage",
		Severity:    model.SeverityWarning,
		Status:      model.StatusFiring,
		Labels:      map[string]string{"component": "cpu"},
		Annotations: map[string]string{},
		Values:      map[string]float64{"value": 90},
		Timestamp:   time.Unix(1000, 0),
		Fingerprint: "abc",
	}
}

func countOutcome(records []DeliveryRecord, outcome string) int {
	n := 0
	for _, r := range records {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

func TestDispatchRateLimitedChannel(t *testing.T) {
	d := NewDispatcher(time.Second)
	d.RegisterTransport(newFakeTransport())
	d.AddChannel(webhookChannel("burst", &model.RateLimitPolicy{MaxPerWindow: 3, WindowSeconds: 60}))

	sent, limited := 0, 0
	for i := 0; i < 5; i++ {
		records := d.Send(context.Background(), testPayload(), []string{"burst"})
		require.Len(t, records, 1)
		sent += countOutcome(records, OutcomeSent)
		limited += countOutcome(records, OutcomeRateLimited)
	}
	assert.Equal(t, 3, sent)
	assert.Equal(t, 2, limited)
	assert.Equal(t, int64(3), d.Sent())
}

func TestDispatchRateLimitWindowExpiry(t *testing.T) {
	d := NewDispatcher(time.Second)
	d.RegisterTransport(newFakeTransport())
	d.AddChannel(webhookChannel("burst", &model.RateLimitPolicy{MaxPerWindow: 1, WindowSeconds: 60}))

	now := time.Unix(1000, 0)
	d.nowFn = func() time.Time { return now }

	require.Equal(t, OutcomeSent, d.Send(context.Background(), testPayload(), []string{"burst"})[0].Outcome)
	require.Equal(t, OutcomeRateLimited, d.Send(context.Background(), testPayload(), []string{"burst"})[0].Outcome)

	// once the window has passed, the channel admits again
	now = now.Add(61 * time.Second)
	rec := d.Send(context.Background(), testPayload(), []string{"burst"})[0]
	assert.Equal(t, OutcomeSent, rec.Outcome)
	assert.Equal(t, now, rec.Timestamp, "delivery records carry the dispatcher clock")
}

func TestDispatchFailureIsolation(t *testing.T) {
	d := NewDispatcher(time.Second)
	ft := newFakeTransport()
	ft.failFor["bad"] = true
	d.RegisterTransport(ft)
	d.AddChannel(webhookChannel("bad", nil))
	d.AddChannel(webhookChannel("good-1", nil))
	d.AddChannel(webhookChannel("good-2", nil))

	records := d.Send(context.Background(), testPayload(), []string{"bad", "good-1", "good-2"})
	require.Len(t, records, 3)
	assert.Equal(t, 2, countOutcome(records, OutcomeSent))
	assert.Equal(t, 1, countOutcome(records, OutcomeFailed))
	assert.Equal(t, int64(1), d.Failed())
	assert.Equal(t, 3, ft.sendCount(), "failed channel must still have been attempted")
}

func TestDispatchDefaultsToAllEnabled(t *testing.T) {
	d := NewDispatcher(time.Second)
	d.RegisterTransport(newFakeTransport())
	d.AddChannel(webhookChannel("a", nil))
	d.AddChannel(webhookChannel("b", nil))
	disabled := webhookChannel("c", nil)
	disabled.Enabled = false
	d.AddChannel(disabled)

	records := d.Send(context.Background(), testPayload(), nil)
	assert.Len(t, records, 2, "disabled channels are never targeted")
}

func TestDispatchUnknownChannelType(t *testing.T) {
	d := NewDispatcher(time.Second)
	ch := webhookChannel("x", nil)
	ch.Type = model.ChannelType("carrier-pigeon")
	d.AddChannel(ch)

	records := d.Send(context.Background(), testPayload(), []string{"x"})
	require.Len(t, records, 1)
	assert.Equal(t, OutcomeFailed, records[0].Outcome)
}

func TestHistoryBounded(t *testing.T) {
	d := NewDispatcher(time.Second)
	d.RegisterTransport(newFakeTransport())
	d.AddChannel(webhookChannel("a", nil))

	for i := 0; i < 5; i++ {
		d.Send(context.Background(), testPayload(), []string{"a"})
	}
	hist := d.History(3)
	require.Len(t, hist, 3)
	assert.Equal(t, "a", hist[0].ChannelID)
	assert.NotEmpty(t, hist[0].ID)
}
