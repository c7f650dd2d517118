// Package sdk is the entry point: it turns a Config into a session with its
// transport stack and exposes the typed service clients.
package sdk

import (
	"context"
	"fmt"

	internalhttp "github.com/fivetwenty-io/resourcekit/internal/http"
	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/fivetwenty-io/resourcekit/pkg/services"
	"github.com/fivetwenty-io/resourcekit/pkg/transport"
)

// Client bundles a session and the typed clients bound to it.
type Client struct {
	*services.Services

	session *resource.Session
	http    *internalhttp.Client
	cache   *transport.CacheManager
	breaker *transport.CircuitBreaker
	closers []func()
}

// New validates config and builds a client.
func New(ctx context.Context, config *Config) (*Client, error) {
	err := config.Validate(ctx)
	if err != nil {
		return nil, err
	}

	cfg := config.withDefaults()
	client := &Client{}

	chain, err := client.buildChain(cfg)
	if err != nil {
		client.Close()

		return nil, err
	}

	client.http = internalhttp.NewClient(cfg.Endpoint, tokenManager(cfg),
		internalhttp.WithLogger(cfg.Logger),
		internalhttp.WithDebug(cfg.Debug),
		internalhttp.WithRetryConfig(cfg.RetryMax, cfg.RetryWaitMin, cfg.RetryWaitMax),
		internalhttp.WithTimeout(cfg.Timeout),
		internalhttp.WithUserAgent(cfg.UserAgent),
		internalhttp.WithInterceptors(chain),
	)

	sessionOpts := []resource.SessionOption{
		resource.WithCatalog(resource.StaticCatalog{Default: cfg.Endpoint, Services: cfg.Endpoints}),
		resource.WithLogger(cfg.Logger),
	}

	if cfg.Microversion != "" {
		sessionOpts = append(sessionOpts, resource.WithMicroversion(cfg.Microversion))
	}

	if cfg.Region != "" {
		sessionOpts = append(sessionOpts, resource.WithRegion(cfg.Region))
	}

	if cfg.Interface != "" {
		sessionOpts = append(sessionOpts, resource.WithInterface(cfg.Interface))
	}

	client.session, err = resource.NewSession(client.http.Transport(), sessionOpts...)
	if err != nil {
		client.Close()

		return nil, fmt.Errorf("creating session: %w", err)
	}

	client.Services = services.New(client.session)

	return client, nil
}

// buildChain assembles the interceptors in the order they must run: rate
// limiting and the breaker gate first, cache lookups last.
func (c *Client) buildChain(cfg *Config) (*transport.InterceptorChain, error) {
	chain := transport.NewInterceptorChain()

	if cfg.RateLimit > 0 {
		chain.AddRequestInterceptor(transport.RateLimitInterceptor(cfg.RateLimit, cfg.RateBurst))
	}

	if cfg.CircuitBreaker {
		c.breaker = transport.NewCircuitBreaker(nil)
		chain.AddRequestInterceptor(transport.CircuitBreakerRequestInterceptor(c.breaker))
		chain.AddResponseInterceptor(transport.CircuitBreakerResponseInterceptor(c.breaker))
	}

	if cfg.TokenProvider != nil {
		chain.AddRequestInterceptor(transport.AuthenticationInterceptor(cfg.TokenProvider))
	}

	if len(cfg.Headers) > 0 {
		chain.AddRequestInterceptor(transport.HeaderInterceptor(cfg.Headers))
	}

	if cfg.Metrics != nil {
		metrics := transport.NewMetrics(cfg.Metrics, cfg.MetricsNamespace)
		chain.AddRequestInterceptor(transport.MetricsRequestInterceptor(metrics))
		chain.AddResponseInterceptor(transport.MetricsResponseInterceptor(metrics))
	}

	if cfg.Debug {
		chain.AddRequestInterceptor(transport.LoggingInterceptor(cfg.Logger))
		chain.AddResponseInterceptor(transport.LoggingResponseInterceptor(cfg.Logger))
	}

	if cfg.Cache != nil && cfg.Cache.Type != transport.CacheTypeNone {
		cache, err := transport.NewCacheFromConfig(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("creating cache: %w", err)
		}

		if closer, ok := cache.(interface{ Close() }); ok {
			c.closers = append(c.closers, closer.Close)
		}

		c.cache = transport.NewCacheManager(cache, cfg.Cache.Options)
		transport.ConfigureSmartCache(chain, c.cache, transport.DefaultSmartCacheConfig())
	}

	return chain, nil
}

// tokenManager covers the static token. A TokenProvider is applied by the
// authentication interceptor in buildChain.
func tokenManager(cfg *Config) internalhttp.TokenManager {
	if cfg.TokenProvider != nil || cfg.Token == "" {
		return nil
	}

	return internalhttp.StaticToken(cfg.Token)
}

// Session returns the underlying session for schemas outside the typed
// clients.
func (c *Client) Session() *resource.Session {
	return c.session
}

// CacheStats returns cache statistics. ok is false when caching is off.
func (c *Client) CacheStats() (transport.CacheStats, bool) {
	if c.cache == nil {
		return transport.CacheStats{}, false
	}

	return c.cache.GetStats(), true
}

// CircuitState returns the breaker state, or "" when the breaker is off.
func (c *Client) CircuitState() string {
	if c.breaker == nil {
		return ""
	}

	return c.breaker.State()
}

// Close releases connections held by the cache backend.
func (c *Client) Close() {
	for _, closer := range c.closers {
		closer()
	}

	c.closers = nil
}
