// Package http is the default transport collaborator: a retrying JSON HTTP
// client that runs requests through an interceptor chain and adapts to
// resource.Transport.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fivetwenty-io/resourcekit/internal/constants"
	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/fivetwenty-io/resourcekit/pkg/transport"
)

// Static errors for err113 compliance.
var (
	ErrRequestFailed = errors.New("request failed")
	ErrInvalidURL    = errors.New("invalid request URL")
)

// TokenManager supplies the token sent in X-Auth-Token.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenManager that always returns itself.
type StaticToken string

// GetToken implements TokenManager.
func (t StaticToken) GetToken(context.Context) (string, error) {
	return string(t), nil
}

// Client is a retrying HTTP client bound to a base URL.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager TokenManager
	logger       resource.Logger
	debug        bool
	userAgent    string
	chain        *transport.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger resource.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
			c.httpClient.Logger = leveledLogger{logger: logger}
		}
	}
}

// WithDebug logs every request and response at debug level.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig sets the retry budget and backoff bounds.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying client, e.g. to use a custom TLS
// configuration.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient.HTTPClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithInterceptors runs chain around every request.
func WithInterceptors(chain *transport.InterceptorChain) Option {
	return func(c *Client) {
		if chain != nil {
			c.chain = chain
		}
	}
}

// NewClient creates a client for baseURL. tokenManager may be nil for
// unauthenticated endpoints.
func NewClient(baseURL string, tokenManager TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(cleanhttp.DefaultPooledTransport()),
		Timeout:   constants.DefaultHTTPTimeout,
	}
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.Logger = leveledLogger{logger: resource.NoopLogger()}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   retryClient,
		tokenManager: tokenManager,
		logger:       resource.NoopLogger(),
		userAgent:    constants.DefaultUserAgent,
		chain:        transport.NewInterceptorChain(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Request is one HTTP request. Path may be relative to the base URL or
// absolute.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers http.Header
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do sends req. A 4xx/5xx status returns both the response and a
// *resource.TransportError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	intercepted := &transport.Request{
		Method:   req.Method,
		Path:     interceptPath(target, req.Path),
		Headers:  req.Headers.Clone(),
		Body:     body,
		Metadata: make(map[string]interface{}),
	}

	if intercepted.Headers == nil {
		intercepted.Headers = make(http.Header)
	}

	err = c.chain.ExecuteRequestInterceptors(ctx, intercepted)
	if err != nil {
		return nil, err
	}

	if cached, ok := transport.CachedResponse(intercepted); ok {
		c.logDebug("HTTP Response", map[string]interface{}{
			"status": cached.StatusCode,
			"cached": true,
		})

		return checkStatus(&Response{StatusCode: cached.StatusCode, Body: cached.Body, Headers: cached.Headers})
	}

	httpReq, err := c.newRequest(ctx, intercepted, target)
	if err != nil {
		return nil, err
	}

	c.logDebug("HTTP Request", map[string]interface{}{
		"method": httpReq.Method,
		"url":    target.String(),
	})

	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		_ = c.chain.ExecuteResponseInterceptors(ctx, intercepted, &transport.Response{Error: err})

		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", ErrRequestFailed, err)
	}

	icResp := &transport.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	err = c.chain.ExecuteResponseInterceptors(ctx, intercepted, icResp)
	if err != nil {
		return nil, err
	}

	c.logDebug("HTTP Response", map[string]interface{}{
		"status":   icResp.StatusCode,
		"duration": time.Since(start).String(),
	})

	return checkStatus(&Response{
		StatusCode: icResp.StatusCode,
		Body:       icResp.Body,
		Headers:    icResp.Headers,
	})
}

func (c *Client) newRequest(ctx context.Context, req *transport.Request, target *url.URL) (*retryablehttp.Request, error) {
	var rawBody interface{}
	if len(req.Body) > 0 {
		rawBody = req.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target.String(), rawBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	httpReq.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	httpReq.Header.Set(constants.HeaderUserAgent, c.userAgent)

	if len(req.Body) > 0 {
		httpReq.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get token: %w", err)
		}

		httpReq.Header.Set(constants.HeaderAuthToken, token)
	}

	for key, values := range req.Headers {
		httpReq.Header.Del(key)

		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	return httpReq, nil
}

// resolve joins path onto the base URL unless it is already absolute, then
// merges query into whatever query path carries.
func (c *Client) resolve(path string, query url.Values) (*url.URL, error) {
	raw := path
	if !strings.Contains(path, "://") {
		raw = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if len(query) > 0 {
		merged := target.Query()

		for key, values := range query {
			for _, value := range values {
				merged.Add(key, value)
			}
		}

		target.RawQuery = merged.Encode()
	}

	return target, nil
}

// interceptPath is the path interceptors see: absolute when the caller gave
// an absolute URL, otherwise the request URI.
func interceptPath(target *url.URL, path string) string {
	if strings.Contains(path, "://") {
		return target.String()
	}

	return target.RequestURI()
}

func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	return data, nil
}

func checkStatus(resp *Response) (*Response, error) {
	if resp.StatusCode >= http.StatusBadRequest {
		return resp, &resource.TransportError{
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Headers:    resp.Headers,
		}
	}

	return resp, nil
}

func (c *Client) logDebug(msg string, fields map[string]interface{}) {
	if c.debug {
		c.logger.Debug(msg, fields)
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Head performs a HEAD request.
func (c *Client) Head(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodHead, Path: path})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Transport adapts the client to resource.Transport. Error statuses come
// back as responses; only failures to get any response are errors.
func (c *Client) Transport() resource.Transport {
	return resource.TransportFunc(func(ctx context.Context, req *resource.Request) (*resource.Response, error) {
		resp, err := c.Do(ctx, &Request{
			Method:  req.Method,
			Path:    req.Path,
			Query:   req.Query,
			Body:    req.Body,
			Headers: req.Headers,
		})
		if resp == nil {
			return nil, err
		}

		return &resource.Response{
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Headers:    resp.Headers,
		}, nil
	})
}

// leveledLogger routes retryablehttp's own messages to a resource.Logger.
// Per-attempt debug chatter is dropped.
type leveledLogger struct {
	logger resource.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, kvFields(keysAndValues))
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, kvFields(keysAndValues))
}

func (l leveledLogger) Debug(string, ...interface{}) {}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, kvFields(keysAndValues))
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return fields
}

var _ retryablehttp.LeveledLogger = leveledLogger{}
