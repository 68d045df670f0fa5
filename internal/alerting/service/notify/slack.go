package notify

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/vigilops/vigil/internal/alerting/model"
)

// SlackTransport posts an attachment message to an incoming-webhook URL.
// Config keys: webhook_url.
type SlackTransport struct {
	client *http.Client
}

func (*SlackTransport) Type() model.ChannelType { return model.ChannelSlack }

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func (t *SlackTransport) Send(ctx context.Context, p *Payload, config map[string]string) error {
	url := config["webhook_url"]
	if url == "" {
		return fmt.Errorf("slack channel missing webhook_url")
	}

	fields := []slackField{
		{Title: "Rule", Value: p.RuleName, Short: true},
		{Title: "Severity", Value: strings.ToUpper(string(p.Severity)), Short: true},
		{Title: "Status", Value: string(p.Status), Short: true},
		{Title: "Time", Value: p.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"), Short: false},
	}
	if len(p.Annotations) > 0 {
		keys := make([]string, 0, len(p.Annotations))
		for k := range p.Annotations {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var details strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&details, "%s: %s\n", k, p.Annotations[k])
		}
		fields = append(fields, slackField{Title: "Details", Value: strings.TrimRight(details.String(), "\n")})
	}

	msg := slackMessage{
		Text: fmt.Sprintf("[%s] %s", strings.ToUpper(string(p.Severity)), p.RuleName),
		Attachments: []slackAttachment{{
			Color:  slackColor(p.Severity),
			Fields: fields,
		}},
	}
	return postJSON(ctx, t.client, url, msg)
}

func slackColor(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "danger"
	case model.SeverityWarning:
		return "warning"
	case model.SeverityInfo:
		return "good"
	default:
		return "#36a64f"
	}
}
