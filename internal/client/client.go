// Package client is a typed HTTP client for the control plane API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryBase  = 250 * time.Millisecond
	maxErrorBodyBytes = 4096
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client // Optional: defaults to a client with a 30s timeout
	// RetryLimit bounds retries of idempotent reads after transport errors, 429 and 5xx responses.
	RetryLimit uint64
	RetryBase  time.Duration
}

// Client talks to the control plane HTTP API.
type Client struct {
	base       *url.URL
	http       *http.Client
	retryLimit uint64
	retryBase  time.Duration
}

// New constructs a Client for the API at opts.BaseURL.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", raw)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	rb := opts.RetryBase
	if rb <= 0 {
		rb = defaultRetryBase
	}
	return &Client{base: base, http: hc, retryLimit: opts.RetryLimit, retryBase: rb}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code == "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, msg)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// SubmitTrain starts a training run with the given parameter overrides.
func (c *Client) SubmitTrain(ctx context.Context, params map[string]any) (model.SubmitResponse, error) {
	return c.submit(ctx, "/api/train", model.TrainRequest{Parameters: params})
}

// SubmitEvaluate starts an evaluation job.
func (c *Client) SubmitEvaluate(ctx context.Context, req model.EvaluateRequest) (model.SubmitResponse, error) {
	return c.submit(ctx, "/api/evaluate", req)
}

// SubmitMerge starts an adapter merge job.
func (c *Client) SubmitMerge(ctx context.Context, req model.MergeRequest) (model.SubmitResponse, error) {
	return c.submit(ctx, "/api/merge", req)
}

// SubmitPublish starts a publish job.
func (c *Client) SubmitPublish(ctx context.Context, req model.PublishRequest) (model.SubmitResponse, error) {
	return c.submit(ctx, "/api/publish", req)
}

// Submissions are not idempotent and are never retried.
func (c *Client) submit(ctx context.Context, path string, body any) (model.SubmitResponse, error) {
	var resp model.SubmitResponse
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return model.SubmitResponse{}, err
	}
	return resp, nil
}

// ListOptions narrows ListJobs.
type ListOptions struct {
	Kind   model.JobKind
	Status model.JobStatus
	Filter string // JMESPath expression
}

// ListJobs returns jobs ordered by creation time.
func (c *Client) ListJobs(ctx context.Context, opts ListOptions) ([]model.Job, error) {
	q := url.Values{}
	if opts.Kind != "" {
		q.Set("kind", string(opts.Kind))
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}

	var resp struct {
		Jobs []model.Job `json:"jobs"`
	}
	if err := c.get(ctx, "/api/jobs", q, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob returns one job snapshot.
func (c *Client) GetJob(ctx context.Context, id string) (model.Job, error) {
	var j model.Job
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(id), nil, &j); err != nil {
		return model.Job{}, err
	}
	return j, nil
}

// Stats returns job counts per status.
func (c *Client) Stats(ctx context.Context) (model.JobStats, error) {
	var s model.JobStats
	if err := c.get(ctx, "/api/jobs/stats", nil, &s); err != nil {
		return model.JobStats{}, err
	}
	return s, nil
}

// Logs returns one page of the offset protocol.
func (c *Client) Logs(ctx context.Context, id string, since int) (model.LogPage, error) {
	q := url.Values{"since": {strconv.Itoa(since)}}
	var page model.LogPage
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(id)+"/logs", q, &page); err != nil {
		return model.LogPage{}, err
	}
	return page, nil
}

// TrainParameters lists the tunable training parameters with their defaults.
func (c *Client) TrainParameters(ctx context.Context) ([]model.TrainParamSpec, error) {
	var resp struct {
		Parameters []model.TrainParamSpec `json:"parameters"`
	}
	if err := c.get(ctx, "/api/train/parameters", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Parameters, nil
}

// History lists archived jobs, newest first.
func (c *Client) History(ctx context.Context, opts model.HistoryListOptions) ([]*model.HistoryEntry, error) {
	q := url.Values{}
	if opts.Kind != "" {
		q.Set("kind", string(opts.Kind))
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	var resp struct {
		Entries []*model.HistoryEntry `json:"entries"`
	}
	if err := c.get(ctx, "/api/history", q, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// EvaluationResults fetches an evaluation results document; an empty path reads the latest run.
func (c *Client) EvaluationResults(ctx context.Context, path string) (map[string]any, error) {
	q := url.Values{}
	if path != "" {
		q.Set("path", path)
	}
	var doc map[string]any
	if err := c.get(ctx, "/api/evaluation/results", q, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Adapters lists the adapter registry.
func (c *Client) Adapters(ctx context.Context) ([]model.AdapterEntry, error) {
	var resp struct {
		Adapters []model.AdapterEntry `json:"adapters"`
	}
	if err := c.get(ctx, "/api/adapters", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Adapters, nil
}

// DeleteAdapter removes an adapter from the registry. It is not retried.
func (c *Client) DeleteAdapter(ctx context.Context, req model.AdapterDeleteRequest) (model.AdapterDeleteResult, error) {
	var res model.AdapterDeleteResult
	if err := c.do(ctx, http.MethodDelete, "/api/adapters", nil, req, &res); err != nil {
		return model.AdapterDeleteResult{}, err
	}
	return res, nil
}

// StorageCatalog lists selectable job inputs found under the server's project root.
func (c *Client) StorageCatalog(ctx context.Context) (model.StorageCatalog, error) {
	var cat model.StorageCatalog
	if err := c.get(ctx, "/api/storage/catalog", nil, &cat); err != nil {
		return model.StorageCatalog{}, err
	}
	return cat, nil
}

// get performs an idempotent read with bounded retries.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	b := retry.WithMaxRetries(c.retryLimit, retry.NewFibonacci(c.retryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, q, nil, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return apiErr
	}
	if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	apiErr.StatusCode = resp.StatusCode
	return apiErr
}
