package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vigilops/vigil/internal/alerting/model"
)

// WebhookTransport posts the full payload as JSON to an arbitrary endpoint.
// Config keys: url, plus optional auth_header/auth_value.
type WebhookTransport struct {
	client *http.Client
}

func (*WebhookTransport) Type() model.ChannelType { return model.ChannelWebhook }

type webhookBody struct {
	Alert     *Payload `json:"alert"`
	Timestamp int64    `json:"timestamp"`
}

func (t *WebhookTransport) Send(ctx context.Context, p *Payload, config map[string]string) error {
	url := config["url"]
	if url == "" {
		return fmt.Errorf("webhook channel missing url")
	}

	data, err := json.Marshal(webhookBody{Alert: p, Timestamp: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h := config["auth_header"]; h != "" {
		req.Header.Set(h, config["auth_value"])
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
