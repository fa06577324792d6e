// Package api is the HTTP client for the expenses REST collection.
//
// The client keeps no state between calls; caching and invalidation live
// in the cache package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gastos/internal/core"
	"gastos/internal/middleware/trace"
)

// CollectionPath is the base path of the expenses resource.
const CollectionPath = "/expenses"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to the expenses REST backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	hasTimeout bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. The given client is
// never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the overall timeout of each request. It applies to a
// client given through WithHTTPClient too, whatever the option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		c.hasTimeout = true
	}
}

// New creates a client for the backend rooted at baseURL (e.g. "http://localhost:8081").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme %q: must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing host", baseURL)
	}

	c := &Client{baseURL: u, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.httpClient == nil:
		c.httpClient = newPooledHTTPClient(c.timeout)
	case c.hasTimeout:
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

// newPooledHTTPClient keeps connections to the backend alive between calls.
func newPooledHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

type mutationResponse struct {
	core.Expense
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// List fetches the whole expense collection.
func (c *Client) List(ctx context.Context) ([]core.Expense, error) {
	var out []core.Expense
	if err := c.do(ctx, http.MethodGet, CollectionPath, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Expense{}
	}
	return out, nil
}

// Create adds an expense. The backend assigns the id.
func (c *Client) Create(ctx context.Context, in core.ExpenseInput) (core.MutationResult, error) {
	var out mutationResponse
	if err := c.do(ctx, http.MethodPost, CollectionPath, in, &out); err != nil {
		return core.MutationResult{}, err
	}
	return core.MutationResult{Expense: out.Expense, Message: out.Message}, nil
}

// Update sends a PATCH for id. Values must already be normalized.
func (c *Client) Update(ctx context.Context, id string, in core.ExpenseInput) (core.MutationResult, error) {
	var out mutationResponse
	if err := c.do(ctx, http.MethodPatch, itemPath(id), in, &out); err != nil {
		return core.MutationResult{}, err
	}
	return core.MutationResult{Expense: out.Expense, Message: out.Message}, nil
}

// Delete removes id and returns the backend confirmation message.
// Deleting an id twice fails with ErrNotFound.
func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodDelete, itemPath(id), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func itemPath(id string) string {
	return CollectionPath + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	trace.Propagate(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "Expenses API unreachable",
			"operation", op,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return &Error{Kind: KindNetwork, Op: op, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Expenses API call completed",
		"operation", op,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(op, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func responseError(op string, resp *http.Response) error {
	apiErr := &Error{
		Kind:   KindForStatus(resp.StatusCode),
		Op:     op,
		Status: resp.StatusCode,
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		apiErr.Err = fmt.Errorf("read error body: %w", err)
		return apiErr
	}
	var msg messageResponse
	if json.Unmarshal(raw, &msg) == nil {
		apiErr.ServerMessage = strings.TrimSpace(msg.Message)
	}
	return apiErr
}

// unwrapURLError drops the *url.Error wrapper, which repeats method and URL.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
