// Package gateway is the HTTP client for the ledger admin API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/ledgeradmin/internal/log"
)

const (
	apiPrefix        = "/api/v1/admin"
	maxResponseBytes = 8 << 20
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "ledgeradmin/dev"
)

// Credentials supplies the bearer token for protected calls.
type Credentials interface {
	Token() (string, bool)
}

// Client issues calls against the admin API.
type Client struct {
	baseURL     string
	http        *http.Client
	creds       Credentials
	log         *log.Logger
	userAgent   string
	concurrency int
	onAuthError func(error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l.WithComponent(log.ComponentGateway)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithConcurrency bounds parallel requests in fan-out calls.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithAuthErrorHook is called when the API rejects the bearer token.
func WithAuthErrorHook(fn func(error)) Option {
	return func(c *Client) {
		c.onAuthError = fn
	}
}

// New returns a client for baseURL. creds may be nil for public calls only.
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: defaultTimeout},
		creds:       creds,
		log:         log.Nop(),
		userAgent:   defaultUserAgent,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope covers both response shapes: {success, data} and {status, token|data}.
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Status  string          `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Token   string          `json:"token,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e envelope) ok() bool {
	if e.Success != nil {
		return *e.Success
	}
	return strings.EqualFold(e.Status, "success")
}

type request struct {
	op     string
	method string
	path   string
	body   any
	auth   bool

	// emptyOK accepts a 2xx response with no body.
	emptyOK bool
}

func (c *Client) do(ctx context.Context, r request) (envelope, error) {
	var token string
	if r.auth {
		var ok bool
		if c.creds != nil {
			token, ok = c.creds.Token()
		}
		if !ok {
			return envelope{}, &AuthError{Op: r.op, Err: ErrNoToken}
		}
	}

	var body io.Reader = http.NoBody
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return envelope{}, fmt.Errorf("%s: encode request: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+apiPrefix+r.path, body)
	if err != nil {
		return envelope{}, fmt.Errorf("%s: failed to create request: %w", r.op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "request failed",
			log.FieldOperation, r.op,
			log.FieldRequestID, requestID,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err)
		return envelope{}, &NetworkError{Op: r.op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return envelope{}, &NetworkError{Op: r.op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	c.log.DebugContext(ctx, "request completed",
		log.FieldOperation, r.op,
		log.FieldMethod, r.method,
		log.FieldPath, r.path,
		log.FieldRequestID, requestID,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(started).Milliseconds())

	var env envelope
	var decodeErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		authErr := &AuthError{Op: r.op, Status: resp.StatusCode, Message: env.Message}
		c.log.WarnContext(ctx, "token rejected",
			log.FieldOperation, r.op,
			log.FieldRequestID, requestID,
			log.FieldStatusCode, resp.StatusCode,
			log.FieldErrorType, log.ErrorTypeAuth)
		if r.auth && c.onAuthError != nil {
			c.onAuthError(authErr)
		}
		return envelope{}, authErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, &NetworkError{Op: r.op, Status: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return envelope{}, &NetworkError{Op: r.op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if r.emptyOK {
			return envelope{Status: "success"}, nil
		}
		return envelope{}, &NetworkError{Op: r.op, Status: resp.StatusCode, Err: errors.New("empty response")}
	}
	if !env.ok() {
		if r.emptyOK && env.Success == nil && env.Status == "" {
			return env, nil
		}
		return envelope{}, &NetworkError{Op: r.op, Status: resp.StatusCode, Message: env.Message}
	}
	return env, nil
}

func decodeData[T any](op string, env envelope) (T, error) {
	var out T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, &NetworkError{Op: op, Err: errors.New("missing data")}
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, &NetworkError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return out, nil
}
