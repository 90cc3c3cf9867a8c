// Package alertlogic is a small client for the monitoring service APIs used
// to manage deployments, credentials and protection policies.
package alertlogic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alertlogic/scopesync/internal/build"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"go.uber.org/ratelimit"
)

var endpoints = map[string]string{
	"production":  "https://api.global-services.global.alertlogic.com",
	"integration": "https://api.global-integration.product.dev.alertlogic.com",
}

// BaseURL returns the global API URL for an endpoint selector.
func BaseURL(endpoint string) (string, error) {
	u, ok := endpoints[strings.ToLower(endpoint)]
	if !ok {
		return "", errors.Errorf("unknown API endpoint %q", endpoint)
	}
	return u, nil
}

// Keys are the access key pair used to authenticate to the API.
type Keys struct {
	AccessKeyID string
	SecretKey   string
}

type Client struct {
	baseURL     string
	keys        Keys
	httpClient  *http.Client
	limiter     ratelimit.Limiter
	maxAttempts uint64
	backoff     time.Duration

	mu    sync.Mutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the endpoint selector, used for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithRateLimit caps the number of requests sent per second.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = ratelimit.New(perSecond)
		}
	}
}

// WithReadRetries sets how many times a read request is attempted in total
// and the wait between attempts. Writes are never retried.
func WithReadRetries(maxAttempts uint64, backoff time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func New(endpoint string, keys Keys, opts ...Option) (*Client, error) {
	c := &Client{
		keys:        keys,
		httpClient:  http.DefaultClient,
		limiter:     ratelimit.NewUnlimited(),
		maxAttempts: 3,
		backoff:     time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	if c.baseURL == "" {
		u, err := BaseURL(endpoint)
		if err != nil {
			return nil, err
		}
		c.baseURL = u
	}
	if keys.AccessKeyID == "" || keys.SecretKey == "" {
		return nil, errors.New("access key id and secret key are required")
	}
	return c, nil
}

type authenticateResponse struct {
	Authentication struct {
		Token string `json:"token"`
	} `json:"authentication"`
}

// authToken returns the session token, authenticating on first use.
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/aims/v1/authenticate", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.keys.AccessKeyID, c.keys.SecretKey)
	req.Header.Set("User-Agent", build.UserAgent())

	c.limiter.Take()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "authenticating")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", newAPIError("authenticate", res)
	}

	var auth authenticateResponse
	if err := json.NewDecoder(res.Body).Decode(&auth); err != nil {
		return "", errors.Wrap(err, "decoding authentication response")
	}
	if auth.Authentication.Token == "" {
		return "", errors.New("authentication response contained no token")
	}
	c.token = auth.Authentication.Token
	return c.token, nil
}

// do sends a request and decodes a JSON response into out when out is non-nil.
// GET requests are retried on throttling, server errors and transport errors.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "%s: encoding request", op)
		}
	}

	if method != http.MethodGet {
		return c.send(ctx, op, method, path, body, out)
	}

	b := retry.WithMaxRetries(c.maxAttempts-1, retry.NewConstant(c.backoff))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := c.send(ctx, op, method, path, body, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !retryableStatus(apiErr.StatusCode) {
			return err
		}
		clio.Debugw("retrying API request", "op", op, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
}

func (c *Client) send(ctx context.Context, op, method, path string, body []byte, out any) error {
	token, err := c.authToken(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return errors.Wrap(err, op)
	}
	req.Header.Set("x-aims-auth-token", token)
	req.Header.Set("User-Agent", build.UserAgent())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.limiter.Take()
	clio.Debugw("sending API request", "op", op, "method", method, "path", path)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newAPIError(op, res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "%s: decoding response", op)
	}
	return nil
}

func newAPIError(op string, res *http.Response) *APIError {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &APIError{Op: op, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(b))}
}
