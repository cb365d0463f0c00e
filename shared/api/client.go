// shared/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// HTTPError is a custom error type for HTTP responses with non-OK status codes.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
	Method     string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error %d %s from %s %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Method, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP error %d %s from %s %s", e.StatusCode, http.StatusText(e.StatusCode), e.Method, e.URL)
}

// Common errors for client usage. Use errors.Is for checking.
var (
	ErrNotFound        = fmt.Errorf("resource not found")
	ErrConflict        = fmt.Errorf("resource conflict")
	ErrBadRequest      = fmt.Errorf("bad request")
	ErrUnauthorized    = fmt.Errorf("unauthorized")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrTooManyRequests = fmt.Errorf("too many requests")
	ErrInternalError   = fmt.Errorf("internal server error")
	ErrMalformedBody   = fmt.Errorf("malformed response body")
)

// NewDefaultHTTPClient creates an http.Client with common timeouts and transport settings.
// timeout bounds the whole request; zero means 10s.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Client is a generic HTTP client for interacting with RESTful JSON APIs.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	maxAttempts  int
	retryBackoff time.Duration
	logger       *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetry makes every request up to maxAttempts times, sleeping backoff between attempts.
// Definitive client errors (404 and other non-throttling 4xx) are never retried.
func WithRetry(maxAttempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		c.retryBackoff = backoff
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new API Client. A nil httpClient falls back to NewDefaultHTTPClient.
func NewClient(baseURL string, httpClient *http.Client, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		maxAttempts: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.logger.Warn("NewClient called with nil httpClient, using NewDefaultHTTPClient")
		c.httpClient = NewDefaultHTTPClient(0)
	}
	return c
}

// RequestOption decorates a single outgoing request.
type RequestOption func(*http.Request)

func WithBearerToken(token string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

func WithQuery(key, value string) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		q.Set(key, value)
		r.URL.RawQuery = q.Encode()
	}
}

// doRequest runs the request with the client's retry policy.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}, opts []RequestOption) error {
	fullURL := c.baseURL + path

	var payload []byte
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body for %s %s: %w", method, fullURL, err)
		}
		payload = jsonData
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := c.doOnce(ctx, method, fullURL, payload, result, opts)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(ctx, err) || attempt == c.maxAttempts {
			break
		}
		c.logger.Warn("request failed, retrying",
			zap.String("method", method),
			zap.String("url", fullURL),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if err := sleepCtx(ctx, c.retryBackoff); err != nil {
			return fmt.Errorf("%s request to %s cancelled while waiting to retry: %w", method, fullURL, err)
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, fullURL string, payload []byte, result interface{}, opts []RequestOption) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create %s request for %s: %w", method, fullURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("%s request to %s cancelled: %w", method, fullURL, ctx.Err())
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s request to %s timed out: %w", method, fullURL, ctx.Err())
		}
		return fmt.Errorf("failed to send %s request to %s: %w", method, fullURL, err)
	}
	defer resp.Body.Close()

	// Query options may have rewritten the URL; report what was actually sent.
	sentURL := redactQuery(req.URL)

	if resp.StatusCode >= 400 {
		var errorResponse struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr == nil && len(bodyBytes) > 0 {
			if jsonErr := json.Unmarshal(bodyBytes, &errorResponse); jsonErr == nil {
				if errorResponse.Message != "" {
					return createHTTPError(resp.StatusCode, errorResponse.Message, sentURL, method)
				}
				if errorResponse.Detail != "" {
					return createHTTPError(resp.StatusCode, errorResponse.Detail, sentURL, method)
				}
			}
			if len(bodyBytes) < 500 {
				return createHTTPError(resp.StatusCode, string(bodyBytes), sentURL, method)
			}
		}
		return createHTTPError(resp.StatusCode, "", sentURL, method)
	}

	if text, ok := result.(*string); ok {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: failed to read %s response from %s: %v", ErrMalformedBody, method, sentURL, err)
		}
		*text = string(b)
		return nil
	}
	if result != nil {
		if resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode %s response from %s: %v", ErrMalformedBody, method, sentURL, err)
		}
	}
	return nil
}

// createHTTPError maps common status codes to predefined errors.
func createHTTPError(statusCode int, message, url, method string) error {
	httpErr := &HTTPError{StatusCode: statusCode, Message: message, URL: url, Method: method}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, httpErr)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", ErrConflict, httpErr)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %w", ErrBadRequest, httpErr)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, httpErr)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrForbidden, httpErr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrTooManyRequests, httpErr)
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %w", ErrInternalError, httpErr)
	default:
		return httpErr
	}
}

// isRetryable reports whether another attempt could plausibly succeed.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests, httpErr.StatusCode == http.StatusRequestTimeout:
			return true
		case httpErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	// Transport failures and malformed bodies.
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func redactQuery(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	return clean.String()
}

func (c *Client) Get(ctx context.Context, path string, result interface{}, opts ...RequestOption) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, result, opts)
}

// GetText is Get for endpoints that answer with plain text.
func (c *Client) GetText(ctx context.Context, path string, opts ...RequestOption) (string, error) {
	var text string
	opts = append([]RequestOption{WithHeader("Accept", "text/plain")}, opts...)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &text, opts); err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) Post(ctx context.Context, path string, body interface{}, result interface{}, opts ...RequestOption) error {
	return c.doRequest(ctx, http.MethodPost, path, body, result, opts)
}

// IsHTTPError checks if an error is an HTTPError and optionally matches status code.
func IsHTTPError(err error, status int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return status == 0 || httpErr.StatusCode == status
	}
	return false
}

// GetHTTPStatusCode extracts the status code from an HTTPError if present.
func GetHTTPStatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
