package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	Service string
	Status  string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Service, e.Status, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Poster delivers JSON bodies to webhook endpoints with bounded retries.
type Poster struct {
	Service    string
	Client     *http.Client
	RetryLimit int
	// Backoff is the first retry delay; later delays follow a Fibonacci sequence.
	Backoff time.Duration
}

// PostJSON sends body to url. Transport errors and 429/5xx responses are retried.
func (p *Poster) PostJSON(ctx context.Context, url string, body []byte) error {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	limit := max(p.RetryLimit, 0)
	b := retry.WithMaxRetries(uint64(limit), retry.NewFibonacci(backoff))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := p.post(ctx, url, body)
		var se *StatusError
		if err != nil && (!errors.As(err, &se) || se.Retryable()) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (p *Poster) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.Service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.Service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("drain %s response body: %w", p.Service, err)
		}
		return nil
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read %s error response: %w", p.Service, err)
	}
	return &StatusError{
		Service: p.Service,
		Status:  resp.Status,
		Code:    resp.StatusCode,
		Body:    strings.TrimSpace(string(respBody)),
	}
}
