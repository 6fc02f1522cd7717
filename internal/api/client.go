package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/stream"
)

const (
	// DefaultTimeout bounds a whole request, including a streamed body
	DefaultTimeout = 300 * time.Second

	// maxErrorBody limits how much of a failed response is kept for diagnostics
	maxErrorBody = 4096
)

// ChatClient is the surface the session and UI depend on
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*stream.Reader, error)
	SubmitFeedback(ctx context.Context, fb FeedbackRequest) error
	UpdateFeedback(ctx context.Context, fb FeedbackRequest) error
	Trace(ctx context.Context, runID string) (string, error)
	BaseURL() string
	Close()
}

// Client talks to the chat service over HTTP
type Client struct {
	httpClient tls_client.HttpClient
	baseURL    string
	timeout    time.Duration
	formatter  stream.Formatter
	logger     *slog.Logger
	mu         sync.RWMutex
	closed     bool
}

var _ ChatClient = (*Client)(nil)

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithBaseURL sets the service root, e.g. http://localhost:8080
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the transport, mostly for tests
func WithHTTPClient(httpClient tls_client.HttpClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithFormatter sets the markdown pass applied to streamed answers
func WithFormatter(f stream.Formatter) ClientOption {
	return func(c *Client) {
		c.formatter = f
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Client
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		logger:  logging.With("api"),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	if client.httpClient == nil {
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(int(client.timeout / time.Second)),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithNotFollowRedirects(),
		}

		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// BaseURL returns the service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections; further calls fail
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// do sends a JSON body and returns the raw response. The caller owns the body.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	if c.IsClosed() {
		return nil, fmt.Errorf("client is closed")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range DefaultHeaders() {
		req.Header.Set(key, value)
	}

	c.logger.Debug("request", "method", method, "path", path, "bytes", len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint(strings.ToLower(method)+" "+path, path, err)
	}
	return resp, nil
}

// readAll drains and closes the body
func readAll(resp *http.Response, path string) ([]byte, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("read response", path, err)
	}
	return body, nil
}

// errorFromResponse builds an APIError from a non-2xx response and closes it
func errorFromResponse(resp *http.Response, path, message string) error {
	defer func() {
		_ = resp.Body.Close()
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return apierrors.NewAPIErrorWithBody(resp.StatusCode, path, message, string(body))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
