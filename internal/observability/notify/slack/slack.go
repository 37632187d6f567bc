// Package slack posts job failure notifications to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/qlora-pipeline/controlplane/internal/observability/notify"
)

const defaultUsername = "qlora-controlplane"

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// JobURLPrefix, when set, links the job id to `<prefix>/<job id>`.
	JobURLPrefix string
}

// Client delivers job failure notifications to a Slack webhook.
type Client struct {
	webhookURL   string
	channel      string
	username     string
	jobURLPrefix string
	poster       *notify.Poster
}

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		webhookURL:   webhookURL,
		channel:      strings.TrimSpace(cfg.Channel),
		username:     notify.Fallback(strings.TrimSpace(cfg.Username), defaultUsername),
		jobURLPrefix: strings.TrimSpace(cfg.JobURLPrefix),
		poster:       &notify.Poster{Service: "slack webhook", Client: hc, RetryLimit: cfg.RetryLimit},
	}, nil
}

// SendJobFailure posts a formatted message to Slack.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return c.poster.PostJSON(ctx, c.webhookURL, body)
}

func (c *Client) formatMessage(payload notify.JobFailurePayload) map[string]any {
	occurred := payload.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	var text strings.Builder
	text.WriteString("*Job failed*")
	if payload.JobID != "" {
		text.WriteString(" ")
		text.WriteString(c.jobRef(payload.JobID))
	}
	if payload.JobKind != "" {
		fmt.Fprintf(&text, " (%s)", payload.JobKind)
	}
	text.WriteByte('\n')

	field(&text, "Summary", escape(payload.Summary))
	field(&text, "Severity", notify.Fallback(payload.Severity, notify.SeverityCritical))
	field(&text, "Error class", payload.ErrorClass)
	field(&text, "Error", escape(payload.Error))
	if payload.Duration > 0 {
		field(&text, "Ran for", payload.Duration.Round(time.Second).String())
	}
	if len(payload.Metadata) > 0 {
		text.WriteString("• Metadata:\n")
		for _, k := range slices.Sorted(maps.Keys(payload.Metadata)) {
			fmt.Fprintf(&text, "    • %s: %s\n", k, escape(payload.Metadata[k]))
		}
	}
	text.WriteString("• Timestamp: ")
	text.WriteString(occurred.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

// jobRef renders the job id, linked when a URL prefix is configured.
func (c *Client) jobRef(jobID string) string {
	id := escape(jobID)
	if c.jobURLPrefix == "" {
		return "`" + id + "`"
	}
	u, err := url.Parse(c.jobURLPrefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "`" + id + "`"
	}
	link, err := url.JoinPath(u.String(), jobID)
	if err != nil {
		return "`" + id + "`"
	}
	return fmt.Sprintf("<%s|%s>", link, id)
}

func field(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(text, "• %s: %s\n", label, value)
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(value string) string {
	return slackEscaper.Replace(value)
}
