// Package activityclient provides a client for a hosted REST collection of
// activity records, such as a Backendless data table.
//
// Every call performs a single HTTP round trip and reports a tagged Result
// instead of returning an error, so callers can tell "not found" apart from a
// failure without inspecting status codes.
//
// Example usage:
//
//	client, err := activityclient.New("https://example.backendless.app/api/data/actividades")
//	created := client.Create(ctx, activityclient.Fields{Titulo: activityclient.String("Cuento")})
//	if created.OK() {
//		client.Delete(ctx, created.Value.ObjectID)
//	}
package activityclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/nomis52/actividades/metrics"
)

// ErrMissingID is reported when an id-addressed call is given an empty id.
var ErrMissingID = errors.New("activity id is required")

// Client talks to a single activities collection.
// Use New() to create a client for a given base URL.
type Client struct {
	// BaseURL is the collection URL, without a trailing slash.
	BaseURL string
	Logger  *slog.Logger

	client        *http.Client
	timeout       time.Duration
	partialMethod string
	registry      metrics.Registry
	metrics       *clientMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used to narrate each call.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.Logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout sets a per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithPartialUpdateMethod sets the verb used by UpdatePartial.
// Backends without PATCH support (Backendless among them) need http.MethodPut.
func WithPartialUpdateMethod(method string) Option {
	return func(c *Client) {
		c.partialMethod = strings.ToUpper(method)
	}
}

// WithMetricsRegistry enables per-call request metrics.
func WithMetricsRegistry(r metrics.Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

// New creates a Client for the collection at baseURL.
// The URL must include a scheme and host (e.g., "https://api.example.com/data/actividades").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must include scheme and host: %q", baseURL)
	}

	c := &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Logger:        slog.Default(),
		client:        &http.Client{},
		partialMethod: http.MethodPatch,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.partialMethod != http.MethodPatch && c.partialMethod != http.MethodPut {
		return nil, fmt.Errorf("partial update method must be PATCH or PUT, got %q", c.partialMethod)
	}
	if c.timeout > 0 {
		hc := *c.client
		hc.Timeout = c.timeout
		c.client = &hc
	}
	if c.registry != nil {
		m, err := newClientMetrics(c.registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register client metrics: %w", err)
		}
		c.metrics = m
	}
	return c, nil
}

// PartialUpdateMethod returns the verb UpdatePartial sends.
func (c *Client) PartialUpdateMethod() string {
	return c.partialMethod
}

// Create posts a new activity containing exactly the provided fields.
func (c *Client) Create(ctx context.Context, fields Fields) Result[Activity] {
	payload := fields.Payload()
	return exchange(ctx, c, request{
		op:      "create",
		method:  http.MethodPost,
		target:  c.BaseURL,
		payload: payload,
		attempt: "creating activity",
		done:    "activity created",
		failure: "failed to create activity",
		attrs:   []any{"fields", payloadKeys(payload)},
		success: []int{http.StatusOK},
	}, decodeActivity)
}

// List fetches the whole collection.
func (c *Client) List(ctx context.Context) Result[Collection] {
	return exchange(ctx, c, request{
		op:      "list",
		method:  http.MethodGet,
		target:  c.BaseURL,
		attempt: "listing activities",
		done:    "activities listed",
		failure: "failed to list activities",
		success: []int{http.StatusOK},
	}, decodeCollection)
}

// Get fetches a single activity by id.
func (c *Client) Get(ctx context.Context, id string) Result[Activity] {
	return exchange(ctx, c, request{
		op:      "get",
		method:  http.MethodGet,
		id:      id,
		attempt: "fetching activity",
		done:    "activity found",
		failure: "failed to fetch activity",
		success: []int{http.StatusOK},
	}, decodeActivity)
}

// Update replaces the provided fields of an activity with PUT.
// Fields left nil are not sent. An empty field set sends nothing and
// reports OutcomeNothingToDo.
func (c *Client) Update(ctx context.Context, id string, fields Fields) Result[Activity] {
	return c.update(ctx, "update", http.MethodPut, id, fields)
}

// UpdatePartial changes only the provided fields, using the configured
// partial update verb. An empty field set sends nothing and reports
// OutcomeNothingToDo.
func (c *Client) UpdatePartial(ctx context.Context, id string, fields Fields) Result[Activity] {
	return c.update(ctx, "update_partial", c.partialMethod, id, fields)
}

func (c *Client) update(ctx context.Context, op, method, id string, fields Fields) Result[Activity] {
	if fields.IsEmpty() {
		c.Logger.Info("no fields provided for update, nothing to send", "operation", op, "id", id)
		c.observe(op, OutcomeNothingToDo, 0)
		return nothingToDo[Activity]()
	}
	payload := fields.Payload()
	return exchange(ctx, c, request{
		op:      op,
		method:  method,
		id:      id,
		payload: payload,
		attempt: "updating activity",
		done:    "activity updated",
		failure: "failed to update activity",
		attrs:   []any{"method", method, "fields", payloadKeys(payload)},
		success: []int{http.StatusOK},
	}, decodeActivity)
}

// Delete removes an activity. Value is true when the server confirmed the
// deletion with 200 or 204.
func (c *Client) Delete(ctx context.Context, id string) Result[bool] {
	return exchange(ctx, c, request{
		op:      "delete",
		method:  http.MethodDelete,
		id:      id,
		attempt: "deleting activity",
		done:    "activity deleted",
		failure: "failed to delete activity",
		success: []int{http.StatusOK, http.StatusNoContent},
	}, func([]byte) (bool, error) { return true, nil })
}

// request describes one round trip. Id-addressed requests set id and leave
// target empty.
type request struct {
	op      string
	method  string
	target  string
	id      string
	payload map[string]any
	attempt string
	done    string
	failure string
	attrs   []any
	success []int
}

func exchange[T any](ctx context.Context, c *Client, r request, decode func([]byte) (T, error)) Result[T] {
	start := time.Now()
	attrs := append([]any{"operation", r.op}, r.attrs...)

	target := r.target
	if target == "" {
		if r.id == "" {
			c.Logger.Error(r.failure, append(attrs, "error", ErrMissingID)...)
			c.observe(r.op, OutcomeFailed, 0)
			return failed[T](0, "", ErrMissingID)
		}
		target = c.BaseURL + "/" + url.PathEscape(r.id)
		attrs = append(attrs, "id", r.id)
	}

	c.Logger.Info(r.attempt, attrs...)
	status, body, err := c.do(ctx, r.method, target, r.payload)
	res := classify(r, status, body, err, decode)
	c.observe(r.op, res.Outcome, time.Since(start))

	switch res.Outcome {
	case OutcomeOK:
		c.Logger.Info(r.done, append(attrs, "status", status)...)
	case OutcomeNotFound:
		c.Logger.Warn("activity not found", attrs...)
	default:
		if isConnectionError(res.Err) {
			c.Logger.Error("connection error, check the activities service base URL",
				append(attrs, "base_url", c.BaseURL, "error", res.Err)...)
		} else {
			c.Logger.Error(r.failure, append(attrs, "status", res.StatusCode, "response", res.Body, "error", res.Err)...)
		}
	}
	return res
}

// isConnectionError reports whether err came from reaching the server
// rather than from encoding, cancellation or the response.
func isConnectionError(err error) bool {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func classify[T any](r request, status int, body []byte, err error, decode func([]byte) (T, error)) Result[T] {
	if err != nil {
		return failed[T](status, string(body), err)
	}
	if slices.Contains(r.success, status) {
		v, err := decode(body)
		if err != nil {
			return failed[T](status, string(body), err)
		}
		return ok(status, v)
	}
	if status == http.StatusNotFound && r.id != "" {
		return notFound[T]()
	}
	return failed[T](status, string(body), fmt.Errorf("unexpected status code: %d", status))
}

// do sends the request and reads the whole response body.
func (c *Client) do(ctx context.Context, method, target string, payload map[string]any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}

func decodeActivity(body []byte) (Activity, error) {
	var a Activity
	if err := json.Unmarshal(body, &a); err != nil {
		return Activity{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return a, nil
}

func payloadKeys(payload map[string]any) []string {
	return slices.Sorted(maps.Keys(payload))
}
