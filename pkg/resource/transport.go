package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is one HTTP exchange issued by the engine. Path is either relative
// to the transport's base URL or absolute (service-supplied next links).
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers http.Header
}

// Response is what the transport hands back. Non-2xx statuses are returned
// here, not as errors; the session turns them into TransportFailure.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Transport performs HTTP exchanges. Authentication, retries and connection
// pooling are its concern.
type Transport interface {
	Request(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Request implements Transport.
func (f TransportFunc) Request(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// ServiceFilter selects one endpoint from a catalog.
type ServiceFilter struct {
	Type      string
	Version   string
	Region    string
	Interface string
}

// Catalog resolves a base URL for a service.
type Catalog interface {
	Endpoint(ctx context.Context, filter ServiceFilter) (string, error)
}

// StaticCatalog is a fixed service-type to URL table. Default answers any
// service type not listed.
type StaticCatalog struct {
	Default  string
	Services map[string]string
}

// Endpoint implements Catalog.
func (c StaticCatalog) Endpoint(_ context.Context, filter ServiceFilter) (string, error) {
	if endpoint, ok := c.Services[filter.Type]; ok && endpoint != "" {
		return endpoint, nil
	}

	if c.Default != "" {
		return c.Default, nil
	}

	return "", fmt.Errorf("%w: %s", ErrEndpointNotFound, filter.Type)
}

// Logger interface for structured logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, map[string]interface{}) {}
func (noopLogger) Info(string, map[string]interface{})  {}
func (noopLogger) Warn(string, map[string]interface{})  {}
func (noopLogger) Error(string, map[string]interface{}) {}

// NoopLogger discards everything.
func NoopLogger() Logger { return noopLogger{} }

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// resolveLink turns a service-supplied next reference into a request path.
// Absolute references pass through; relative ones resolve against endpoint.
func resolveLink(endpoint, href string) string {
	if endpoint == "" || strings.Contains(href, "://") {
		return href
	}

	base, err := url.Parse(strings.TrimRight(endpoint, "/") + "/")
	if err != nil {
		return href
	}

	ref, err := url.Parse(href)
	if err != nil {
		return href
	}

	return base.ResolveReference(ref).String()
}
