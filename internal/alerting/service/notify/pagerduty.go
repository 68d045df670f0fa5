package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vigilops/vigil/internal/alerting/model"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutyTransport sends Events API v2 events. The alert fingerprint is
// the dedup key, so re-notifications of the same firing alert collapse on
// the PagerDuty side. Config keys: routing_key, optional api_url override.
type PagerDutyTransport struct {
	client *http.Client
}

func (*PagerDutyTransport) Type() model.ChannelType { return model.ChannelPagerDuty }

type pagerDutyEvent struct {
	RoutingKey  string           `json:"routing_key"`
	EventAction string           `json:"event_action"`
	DedupKey    string           `json:"dedup_key"`
	Payload     pagerDutyPayload `json:"payload"`
}

type pagerDutyPayload struct {
	Summary       string            `json:"summary"`
	Severity      string            `json:"severity"`
	Source        string            `json:"source"`
	Component     string            `json:"component,omitempty"`
	Group         string            `json:"group,omitempty"`
	Class         string            `json:"class,omitempty"`
	CustomDetails map[string]string `json:"custom_details,omitempty"`
}

func (t *PagerDutyTransport) Send(ctx context.Context, p *Payload, config map[string]string) error {
	key := config["routing_key"]
	if key == "" {
		return fmt.Errorf("pagerduty channel missing routing_key")
	}
	url := config["api_url"]
	if url == "" {
		url = pagerDutyEventsURL
	}

	action := "trigger"
	if p.Status == model.StatusResolved {
		action = "resolve"
	}
	source := p.Labels["source"]
	if source == "" {
		source = "vigil"
	}

	event := pagerDutyEvent{
		RoutingKey:  key,
		EventAction: action,
		DedupKey:    p.Fingerprint,
		Payload: pagerDutyPayload{
			Summary:       fmt.Sprintf("%s: %s", p.RuleName, p.Annotations["description"]),
			Severity:      string(p.Severity),
			Source:        source,
			Component:     p.Labels["component"],
			Group:         p.Labels["group"],
			Class:         p.Labels["class"],
			CustomDetails: p.Annotations,
		},
	}
	return postJSON(ctx, t.client, url, event)
}
