// Package activation calls the idempotent client activation endpoint,
// POST {base}/api/clients/init.
package activation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"git.home.luguber.info/inful/clientboot/internal/apierrors"
	"git.home.luguber.info/inful/clientboot/internal/config"
	"git.home.luguber.info/inful/clientboot/internal/foundation/errors"
	"git.home.luguber.info/inful/clientboot/internal/logfields"
	"git.home.luguber.info/inful/clientboot/internal/observability"
)

// InitPath is the activation endpoint path relative to the base URL.
const InitPath = "/api/clients/init"

// maxBodySize bounds how much of a response is read.
const maxBodySize = 1 << 20

// Activator performs the activation call. true means the endpoint confirmed
// the client is initialized.
type Activator interface {
	Activate(ctx context.Context) (bool, error)
}

// ActivatorFunc adapts a function to Activator.
type ActivatorFunc func(ctx context.Context) (bool, error)

func (f ActivatorFunc) Activate(ctx context.Context) (bool, error) { return f(ctx) }

// Client is the HTTP Activator. It keeps a cookie jar so a client cookie
// issued on the first call is presented on later calls.
type Client struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Jar is kept if set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Client for cfg.
func NewClient(cfg config.ActivationConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, errors.ConfigError("invalid activation base URL").
			WithCause(err).
			WithContext("base_url", cfg.BaseURL).
			Build()
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + InitPath

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.InternalError("failed to create cookie jar").WithCause(err).Build()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
		endpoint:   base.String(),
		userAgent:  cfg.UserAgent,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}
	if c.userAgent == "" {
		c.userAgent = config.DefaultUserAgent
	}
	return c, nil
}

// Endpoint returns the absolute activation URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Activate posts to the activation endpoint and interprets the envelope. A
// request id already carried by ctx is reused.
func (c *Client) Activate(ctx context.Context) (bool, error) {
	reqID := observability.RequestID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
		ctx = observability.WithRequestID(ctx, reqID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, http.NoBody)
	if err != nil {
		return false, errors.InternalError("failed to create activation request").
			WithCause(err).
			WithContext("url", c.endpoint).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, errors.NetworkError("activation request failed").
			WithCause(err).
			WithContext("url", c.endpoint).
			WithContext("request_id", reqID).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return false, errors.NetworkError("failed to read activation response").
			WithCause(err).
			WithContext("request_id", reqID).
			Build()
	}

	c.logger.DebugContext(ctx, "Activation response",
		logfields.URL(c.endpoint),
		logfields.Status(resp.StatusCode),
		logfields.Duration(time.Since(start)))

	return interpret(resp.StatusCode, body, reqID)
}

// interpret applies the envelope rules in order: null body, application
// error, unexpected status, null data.
func interpret(status int, body []byte, reqID string) (bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		if status != http.StatusOK {
			return false, statusError(status, reqID, "")
		}
		return false, activationError("response body is null", nil, status, reqID)
	}

	envelope, err := apierrors.Decode[bool](trimmed)
	if err != nil {
		if status != http.StatusOK {
			// Proxies answer with plain text; keep it as the message.
			return false, statusError(status, reqID, snippet(trimmed))
		}
		return false, activationError("malformed response body", err, status, reqID)
	}
	if envelope == nil {
		return false, activationError("response body is null", nil, status, reqID)
	}
	if envelope.Error != nil && envelope.Error.Code != apierrors.NoError {
		return false, activationError("activation rejected", envelope.Error, status, reqID)
	}
	if status != http.StatusOK {
		return false, statusError(status, reqID, fmt.Sprintf("invalid response status (%d)", status))
	}
	if envelope.Data == nil {
		return false, activationError("response data is null", nil, status, reqID)
	}
	return *envelope.Data, nil
}

func statusError(status int, reqID, msg string) error {
	return activationError("unexpected activation response status", apierrors.New(apierrors.CodeForStatus(status), msg), status, reqID)
}

func activationError(msg string, cause error, status int, reqID string) error {
	b := errors.ActivationError(msg).
		WithContext("status", status).
		WithContext("request_id", reqID)
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b.Build()
}

func snippet(b []byte) string {
	s := strings.ReplaceAll(string(b), "\n", " ")
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
