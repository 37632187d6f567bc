// Package pagerduty triggers PagerDuty incidents for failed jobs via the Events API v2.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/qlora-pipeline/controlplane/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

const defaultSource = "qlora-controlplane"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint (tests).
	Endpoint string
}

// Client publishes events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	poster     *notify.Poster
}

// NewClient constructs a PagerDuty events client from config. Callers must provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
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
		routingKey: key,
		source:     notify.Fallback(strings.TrimSpace(cfg.Source), defaultSource),
		component:  notify.Fallback(strings.TrimSpace(cfg.Component), "jobs"),
		endpoint:   notify.Fallback(strings.TrimSpace(cfg.Endpoint), APIEndpoint),
		poster:     &notify.Poster{Service: "pagerduty api", Client: hc, RetryLimit: cfg.RetryLimit},
	}, nil
}

// SendJobFailure submits a trigger event to PagerDuty.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return c.poster.PostJSON(ctx, c.endpoint, body)
}

// event is the Events API v2 trigger body.
type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component"`
	Group         string         `json:"group,omitempty"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details"`
}

func (c *Client) buildEvent(payload notify.JobFailurePayload) event {
	occurredAt := payload.OccurredAt.UTC()
	if payload.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	custom := map[string]any{
		"job_id":      payload.JobID,
		"job_kind":    payload.JobKind,
		"error":       payload.Error,
		"error_class": payload.ErrorClass,
	}
	if payload.Summary != "" {
		custom["summary"] = payload.Summary
	}
	if payload.Duration > 0 {
		custom["duration_seconds"] = int64(payload.Duration.Seconds())
	}
	for k, v := range payload.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	summary := fmt.Sprintf("%s job %s failed",
		notify.Fallback(payload.JobKind, "unknown"), notify.Fallback(payload.JobID, "unknown"))
	if payload.Summary != "" {
		summary += ": " + payload.Summary
	}

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    strings.Trim(payload.JobKind+":"+payload.JobID, ":"),
		Payload: eventPayload{
			Summary:       summary,
			Severity:      notify.Fallback(strings.ToLower(payload.Severity), notify.SeverityCritical),
			Source:        c.source,
			Component:     c.component,
			Group:         payload.JobKind,
			Timestamp:     occurredAt.Format(time.RFC3339),
			CustomDetails: custom,
		},
	}
}
