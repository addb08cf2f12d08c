// Package pvoutput is a typed client for the PVOutput API
// (https://pvoutput.org/help/api_specification.html).
//
// The client performs authenticated calls against the service and translates
// its single-line CSV responses into typed records. It does not retry, cache,
// or back off; every call either returns a fully decoded record or a typed
// error.
package pvoutput

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gridlight-hq/pvharvest/pkg/httpclient"
)

const (
	// DefaultBaseURL is the production PVOutput service endpoint.
	DefaultBaseURL = "https://pvoutput.org/service/r2"

	defaultTimeout = 8 * time.Second

	statusEndpoint = "getstatus.jsp"
	systemEndpoint = "getsystem.jsp"
)

// Config holds the construction parameters for a Client.
type Config struct {
	// APIKey is the PVOutput API key. Required.
	APIKey string
	// SystemID identifies the monitored system. Required.
	SystemID int
	// BaseURL overrides the service endpoint, mainly for tests.
	BaseURL string
	// Timeout bounds each request. Defaults to 8 seconds.
	Timeout time.Duration
	// HTTPClient is an optional caller-owned session. When set, the client
	// never closes it. When nil, the client creates its own session on first
	// use and releases it in Close.
	HTTPClient httpclient.Client
}

// RateLimit is the hourly API quota as last reported by PVOutput via its
// X-Rate-Limit response headers. A zero Limit means no call has observed the
// headers yet.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Client talks to the PVOutput API for a single monitored system.
// It is safe for concurrent use.
type Client struct {
	apiKey   string
	systemID int
	baseURL  string
	timeout  time.Duration

	mu   sync.Mutex
	http httpclient.Client
	owns bool
	rate RateLimit
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("pvoutput: api key is required")
	}
	if cfg.SystemID <= 0 {
		return nil, fmt.Errorf("pvoutput: system id is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:   cfg.APIKey,
		systemID: cfg.SystemID,
		baseURL:  baseURL,
		timeout:  timeout,
		http:     cfg.HTTPClient,
	}, nil
}

// Status retrieves the system's latest status information and live output
// data. It returns ErrNoData when PVOutput has nothing recorded for the
// system.
func (c *Client) Status(ctx context.Context) (Status, error) {
	body, err := c.get(ctx, statusEndpoint)
	if err != nil {
		return Status{}, err
	}
	status, err := decodeStatus(body)
	if err != nil {
		return Status{}, &DecodeError{Endpoint: statusEndpoint, Err: err}
	}
	return status, nil
}

// System retrieves descriptive metadata about the monitored installation.
func (c *Client) System(ctx context.Context) (System, error) {
	body, err := c.get(ctx, systemEndpoint)
	if err != nil {
		return System{}, err
	}
	system, err := decodeSystem(body)
	if err != nil {
		return System{}, &DecodeError{Endpoint: systemEndpoint, Err: err}
	}
	return system, nil
}

// RateLimit returns the quota last observed on a response, if any.
func (c *Client) RateLimit() RateLimit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Close releases the session if the client created it. A caller-supplied
// session is left untouched and remains usable.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.owns {
		return
	}
	if closer, ok := c.http.(httpclient.Closer); ok {
		closer.Close()
	}
	c.http = nil
	c.owns = false
}

// get performs an authenticated GET against one endpoint and returns the raw
// response body.
func (c *Client) get(ctx context.Context, endpoint string) (string, error) {
	headers := map[string]string{
		"Accept":              "text/plain",
		"X-Pvoutput-Apikey":   c.apiKey,
		"X-Pvoutput-SystemId": strconv.Itoa(c.systemID),
		"X-Rate-Limit":        "1",
	}

	resp, err := c.session().Get(ctx, c.baseURL+"/"+endpoint, headers)
	if err != nil {
		return "", &ConnectionError{Err: err}
	}

	c.recordRateLimit(resp)

	code := resp.StatusCode()
	switch {
	case code == http.StatusBadRequest && endpoint == statusEndpoint:
		return "", ErrNoData
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "", &AuthenticationError{StatusCode: code}
	case code < 200 || code >= 300:
		return "", &ResponseError{StatusCode: code, Body: bodySnippet(resp.Body())}
	}

	return string(resp.Body()), nil
}

// session returns the HTTP session, creating an owned one on first use.
func (c *Client) session() httpclient.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		c.http = httpclient.NewRestyClient(c.timeout)
		c.owns = true
	}
	return c.http
}

// recordRateLimit captures the X-Rate-Limit headers PVOutput attaches when
// they are requested.
func (c *Client) recordRateLimit(resp httpclient.Response) {
	limit, err := strconv.Atoi(resp.Header("X-Rate-Limit-Limit"))
	if err != nil {
		return
	}
	remaining, err := strconv.Atoi(resp.Header("X-Rate-Limit-Remaining"))
	if err != nil {
		return
	}

	rate := RateLimit{Limit: limit, Remaining: remaining}
	if reset, err := strconv.ParseInt(resp.Header("X-Rate-Limit-Reset"), 10, 64); err == nil {
		rate.Reset = time.Unix(reset, 0).UTC()
	}

	c.mu.Lock()
	c.rate = rate
	c.mu.Unlock()
}

func bodySnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
