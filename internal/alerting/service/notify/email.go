package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"github.com/vigilops/vigil/internal/alerting/model"
)

// EmailTransport delivers alerts as HTML mail over SMTP. Config keys:
// smtp_server, smtp_port, from_email, to_emails (comma separated), and
// optional username/password for PLAIN auth.
type EmailTransport struct{}

func (EmailTransport) Type() model.ChannelType { return model.ChannelEmail }

func (EmailTransport) Send(_ context.Context, p *Payload, config map[string]string) error {
	server := config["smtp_server"]
	if server == "" {
		return fmt.Errorf("email channel missing smtp_server")
	}
	port := config["smtp_port"]
	if port == "" {
		port = "587"
	}
	from := config["from_email"]
	recipients := splitAddresses(config["to_emails"])
	if from == "" || len(recipients) == 0 {
		return fmt.Errorf("email channel missing from_email or to_emails")
	}

	var auth smtp.Auth
	if config["username"] != "" {
		auth = smtp.PlainAuth("", config["username"], config["password"], server)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: [%s] %s\r\n", strings.ToUpper(string(p.Severity)), p.RuleName)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(formatEmailBody(p))

	return smtp.SendMail(server+":"+port, auth, from, recipients, []byte(msg.String()))
}

func splitAddresses(s string) []string {
	var out []string
	for _, addr := range strings.Split(s, ",") {
		if a := strings.TrimSpace(addr); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func formatEmailBody(p *Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><h2>[%s] %s</h2><table border="1" cellpadding="6">`,
		strings.ToUpper(string(p.Severity)), p.RuleName)
	fmt.Fprintf(&b, "<tr><td>Rule ID</td><td>%s</td></tr>", p.RuleID)
	fmt.Fprintf(&b, "<tr><td>Alert ID</td><td>%s</td></tr>", p.AlertID)
	fmt.Fprintf(&b, "<tr><td>Status</td><td>%s</td></tr>", p.Status)
	fmt.Fprintf(&b, "<tr><td>Timestamp</td><td>%s</td></tr>", p.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"))
	b.WriteString("</table>")
	writeKVTable(&b, "Labels", p.Labels)
	writeKVTable(&b, "Annotations", p.Annotations)
	b.WriteString("</body></html>")
	return b.String()
}

func writeKVTable(b *strings.Builder, title string, kv map[string]string) {
	if len(kv) == 0 {
		return
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, `<h3>%s</h3><table border="1" cellpadding="6">`, title)
	for _, k := range keys {
		fmt.Fprintf(b, "<tr><td>%s</td><td>%s</td></tr>", k, kv[k])
	}
	b.WriteString("</table>")
}
