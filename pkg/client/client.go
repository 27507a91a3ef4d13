// Package client is the isolink SDK. It speaks the daemon's v1 HTTP API and
// follows leader redirects transparently.
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
	"time"
)

// Client talks to an isolink daemon.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	backoff  BackoffStrategy
	retries  int
}

// NewClient creates a client. endpoint defaults to "http://127.0.0.1:9532"
// if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:9532"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff: DefaultBackoff(),
		retries: 2,
	}
}

// SetToken attaches a bearer token to every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// SetBackoff replaces the retry strategy for idempotent requests. retries is
// the number of attempts after the first.
func (c *Client) SetBackoff(b BackoffStrategy, retries int) {
	if b != nil {
		c.backoff = b
	}
	if retries >= 0 {
		c.retries = retries
	}
}

// CreateComponent registers a component with its initial edges and residues.
func (c *Client) CreateComponent(ctx context.Context, spec ComponentSpec) (CreateResult, error) {
	var out CreateResult
	err := c.postJSON(ctx, "/v1/components", spec, &out)
	return out, err
}

// DestroyComponent removes a component. Destroying an equivalence-class
// representative with live members fails.
func (c *Client) DestroyComponent(ctx context.Context, componentID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/components/"+url.PathEscape(componentID), nil, nil)
}

// Component fetches one component snapshot.
func (c *Client) Component(ctx context.Context, componentID string) (ComponentView, error) {
	var out ComponentView
	err := c.getJSON(ctx, "/v1/components/"+url.PathEscape(componentID), &out)
	return out, err
}

// ListComponents fetches every live component.
func (c *Client) ListComponents(ctx context.Context) ([]ComponentView, error) {
	var out struct {
		Count      int             `json:"count"`
		Components []ComponentView `json:"components"`
	}
	if err := c.getJSON(ctx, "/v1/components", &out); err != nil {
		return nil, err
	}
	return out.Components, nil
}

// SetPhase moves a component to a lifecycle phase.
func (c *Client) SetPhase(ctx context.Context, componentID, phase string) error {
	path := "/v1/components/" + url.PathEscape(componentID) + "/phase"
	return c.postJSON(ctx, path, map[string]string{"phase": phase}, nil)
}

// AddEdge appends an invocation edge to a component.
func (c *Client) AddEdge(ctx context.Context, componentID string, edge EdgeSpec) error {
	path := "/v1/components/" + url.PathEscape(componentID) + "/edges"
	return c.postJSON(ctx, path, edge, nil)
}

// AddResidue appends a symbolic residue to a component.
func (c *Client) AddResidue(ctx context.Context, componentID string, residue ResidueSpec) error {
	path := "/v1/components/" + url.PathEscape(componentID) + "/residues"
	return c.postJSON(ctx, path, residue, nil)
}

// Canonicalize resolves a component to its equivalence-class representative,
// folding it into an existing class when an isomorphic one exists.
func (c *Client) Canonicalize(ctx context.Context, componentID string) (CanonicalizeResult, error) {
	var out CanonicalizeResult
	err := c.postJSON(ctx, "/v1/canonicalize", map[string]string{"component_id": componentID}, &out)
	return out, err
}

// Resolve attempts an indirect link from sourceID to a component exposing
// anchor. It is fail-closed: when the daemon cannot be reached or errors, the
// result reports no link with a reason rather than an error, so callers can
// treat "not linked" as the single failure mode.
func (c *Client) Resolve(ctx context.Context, sourceID, anchor string) (ResolveResult, error) {
	if anchor == "" {
		return ResolveResult{}, fmt.Errorf("invalid resolve: anchor is required")
	}
	body, err := json.Marshal(map[string]string{"source_id": sourceID, "anchor": anchor})
	if err != nil {
		return ResolveResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/resolve", bytes.NewReader(body))
	if err != nil {
		return failClosed(sourceID, anchor, "request_creation_failed"), nil
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return failClosed(sourceID, anchor, "daemon_unreachable"), nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return failClosed(sourceID, anchor, "upstream_error"), nil
	case resp.StatusCode == http.StatusNotFound:
		return ResolveResult{}, fmt.Errorf("resolve %s: %s", sourceID, apiError(resp))
	case resp.StatusCode == http.StatusBadRequest:
		return ResolveResult{}, fmt.Errorf("invalid resolve: %s", apiError(resp))
	case resp.StatusCode != http.StatusOK:
		return failClosed(sourceID, anchor, fmt.Sprintf("unexpected_status_%d", resp.StatusCode)), nil
	}

	var out ResolveResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return failClosed(sourceID, anchor, "response_parsing_failed"), nil
	}
	return out, nil
}

// Outcomes fetches resolution counters. componentID may be empty for all
// components.
func (c *Client) Outcomes(ctx context.Context, componentID string) (OutcomesResult, error) {
	path := "/v1/outcomes"
	if componentID != "" {
		path += "?component_id=" + url.QueryEscape(componentID)
	}
	var out OutcomesResult
	err := c.getJSON(ctx, path, &out)
	return out, err
}

// Journal fetches journal entries. With sinceSeq > 0 it returns entries past
// that cursor; otherwise the most recent limit entries.
func (c *Client) Journal(ctx context.Context, sinceSeq uint64, limit int) (JournalResult, error) {
	path := "/v1/journal"
	if sinceSeq > 0 {
		path += fmt.Sprintf("?since_seq=%d", sinceSeq)
	} else if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out JournalResult
	err := c.getJSON(ctx, path, &out)
	return out, err
}

// GetGraph fetches the link graph projection.
func (c *Client) GetGraph(ctx context.Context) (Graph, error) {
	var out Graph
	err := c.getJSON(ctx, "/v1/graph", &out)
	return out, err
}

// GetEvents fetches the most recent persisted link events.
func (c *Client) GetEvents(ctx context.Context, limit int) ([]LinkRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out EventsResult
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/events?limit=%d", limit), &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// GetTrends fetches bucketed resolution statistics. A zero To means now; a
// zero From means 24 hours before To.
func (c *Client) GetTrends(ctx context.Context, opts TrendsOptions) (TrendsResult, error) {
	bucket := opts.Bucket
	if bucket == "" {
		bucket = "hour"
	}
	from, to := opts.From, opts.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	path := fmt.Sprintf("/v1/trends?bucket=%s&from=%s&to=%s",
		url.QueryEscape(bucket),
		url.QueryEscape(from.Format(time.RFC3339)),
		url.QueryEscape(to.Format(time.RFC3339)),
	)
	var out TrendsResult
	err := c.getJSON(ctx, path, &out)
	return out, err
}

// GetReport streams a report download. The caller must close the reader.
func (c *Client) GetReport(ctx context.Context, opts ReportOptions) (io.ReadCloser, error) {
	q := url.Values{}
	if opts.Kind != "" {
		q.Set("kind", opts.Kind)
	}
	if opts.Format != "" {
		q.Set("format", opts.Format)
	}
	if !opts.From.IsZero() {
		q.Set("from", opts.From.Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		q.Set("to", opts.To.Format(time.RFC3339))
	}
	for k, v := range opts.Filters {
		q.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/reports?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("report request failed: %s", apiError(resp))
	}
	return resp.Body, nil
}

// CreateWebhook registers a delivery endpoint and returns its credentials.
func (c *Client) CreateWebhook(ctx context.Context, hookURL string, types []string) (WebhookCredentials, error) {
	var out WebhookCredentials
	err := c.postJSON(ctx, "/v1/webhooks", map[string]any{"url": hookURL, "types": types}, &out)
	return out, err
}

// ListWebhooks fetches registered webhooks, secrets redacted.
func (c *Client) ListWebhooks(ctx context.Context) ([]WebhookInfo, error) {
	var out []WebhookInfo
	err := c.getJSON(ctx, "/v1/webhooks", &out)
	return out, err
}

// DeleteWebhook removes a webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	path := "/v1/webhooks?webhook_id=" + url.QueryEscape(webhookID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Prune asks the daemon to expire persisted events older than retention.
func (c *Client) Prune(ctx context.Context, retention time.Duration) (PruneResult, error) {
	var out PruneResult
	err := c.postJSON(ctx, "/v1/admin/prune", map[string]string{"retention": retention.String()}, &out)
	return out, err
}

// Ping checks the daemon's health.
func (c *Client) Ping(ctx context.Context) (Health, error) {
	var out Health
	err := c.getJSON(ctx, "/v1/health", &out)
	return out, err
}

// getJSON performs a GET with retries on transport errors and 5xx responses.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := c.doJSON(ctx, http.MethodGet, path, nil, out)
		if err == nil || !retryable(err) || attempt >= c.retries {
			return err
		}
		lastErr = err

		select {
		case <-time.After(c.backoff.Next(attempt)):
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		}
	}
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

// doJSON performs one request. A nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &transportError{err: fmt.Errorf("server error: %s", apiError(resp))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %s (status %d)", method, path, apiError(resp), resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// transportError marks failures worth retrying: the request may never have
// reached the daemon, or the daemon itself failed.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

// apiError extracts the {"error": "..."} body the daemon sends, falling back
// to the raw text.
func apiError(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(raw) == 0 {
		return resp.Status
	}
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return string(bytes.TrimSpace(raw))
}

func failClosed(sourceID, anchor, reason string) ResolveResult {
	return ResolveResult{
		SourceID: sourceID,
		Anchor:   anchor,
		Linked:   false,
		Reason:   reason,
	}
}
