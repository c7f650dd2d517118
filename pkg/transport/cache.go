package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fivetwenty-io/resourcekit/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrEntryExpired = errors.New("entry expired")
)

// Cache is a response cache backend.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// CacheEntry is one cached response.
type CacheEntry struct {
	Data       []byte      `json:"data"`
	StatusCode int         `json:"status_code,omitempty"`
	Headers    http.Header `json:"headers,omitempty"`
	ETag       string      `json:"etag,omitempty"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// IsExpired reports whether the entry is past its expiry.
func (e *CacheEntry) IsExpired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// CacheOptions are common options applied to any backend.
type CacheOptions struct {
	TTL         time.Duration
	MaxSize     int
	EnableETags bool
}

// DefaultCacheOptions returns default cache options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		TTL:         constants.DefaultCacheTTL,
		MaxSize:     constants.DefaultCacheSize,
		EnableETags: true,
	}
}

// MemoryCache is a bounded in-process LRU cache.
type MemoryCache struct {
	entries *lru.Cache[string, *CacheEntry]
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	// lru.New only fails on a non-positive size.
	entries, _ := lru.New[string, *CacheEntry](maxSize)

	return &MemoryCache{entries: entries}
}

// Get returns a live entry. Expired entries are dropped on access.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	if entry.IsExpired() {
		c.entries.Remove(key)

		return nil, fmt.Errorf("%w: %s", ErrEntryExpired, key)
	}

	return entry, nil
}

// Set stores an entry, evicting the least recently used one when full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.entries.Add(key, entry)

	return nil
}

// Delete removes an entry.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.entries.Remove(key)

	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.entries.Purge()

	return nil
}

// Has reports whether a live entry exists without touching recency.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	entry, ok := c.entries.Peek(key)

	return ok && !entry.IsExpired()
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// Cleanup drops expired entries.
func (c *MemoryCache) Cleanup() {
	for _, key := range c.entries.Keys() {
		if entry, ok := c.entries.Peek(key); ok && entry.IsExpired() {
			c.entries.Remove(key)
		}
	}
}

// CacheStats counts cache manager activity.
type CacheStats struct {
	Hits          int64
	Misses        int64
	Sets          int64
	Invalidations int64
}

// GetHitRate returns hits / (hits + misses).
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// CacheManager fronts a Cache with key derivation, statistics and path-based
// invalidation.
type CacheManager struct {
	cache   Cache
	options *CacheOptions

	mu    sync.Mutex
	stats CacheStats
	// index maps a resource path to the keys cached under it.
	index map[string]map[string]struct{}
}

// NewCacheManager creates a cache manager. A nil cache uses a default
// MemoryCache; nil options use DefaultCacheOptions.
func NewCacheManager(cache Cache, options *CacheOptions) *CacheManager {
	if options == nil {
		options = DefaultCacheOptions()
	}

	if cache == nil {
		cache = NewMemoryCache(options.MaxSize)
	}

	return &CacheManager{
		cache:   cache,
		options: options,
		index:   make(map[string]map[string]struct{}),
	}
}

// GetCacheKey derives a key from method, path and optional parameters.
func (m *CacheManager) GetCacheKey(method, path string, params map[string]string) string {
	key := method + ":" + path
	if len(params) == 0 {
		return key
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}

	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+params[name])
	}

	return key + ":" + strings.Join(pairs, "&")
}

// Get returns cached data and records a hit or miss.
func (m *CacheManager) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := m.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}

	return entry.Data, nil
}

// GetEntry returns the cached entry and records a hit or miss.
func (m *CacheManager) GetEntry(ctx context.Context, key string) (*CacheEntry, error) {
	entry, err := m.cache.Get(ctx, key)

	m.mu.Lock()
	if err != nil {
		m.stats.Misses++
	} else {
		m.stats.Hits++
	}
	m.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	return entry, nil
}

// Set caches data for ttl; a zero ttl uses the manager default.
func (m *CacheManager) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return m.SetEntry(ctx, key, &CacheEntry{Data: data}, ttl)
}

// SetWithETag caches data with its ETag.
func (m *CacheManager) SetWithETag(ctx context.Context, key string, data []byte, etag string, ttl time.Duration) error {
	return m.SetEntry(ctx, key, &CacheEntry{Data: data, ETag: etag}, ttl)
}

// SetEntry caches a full entry.
func (m *CacheManager) SetEntry(ctx context.Context, key string, entry *CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.options.TTL
	}

	if !m.options.EnableETags {
		entry.ETag = ""
	}

	entry.ExpiresAt = time.Now().Add(ttl)

	err := m.cache.Set(ctx, key, entry)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Sets++

	base := resourcePath(keyPath(key))

	keys := m.index[base]
	if keys == nil {
		keys = make(map[string]struct{})
		m.index[base] = keys
	}

	keys[key] = struct{}{}

	return nil
}

// Delete removes one key.
func (m *CacheManager) Delete(ctx context.Context, key string) error {
	return m.cache.Delete(ctx, key)
}

// InvalidatePath drops every key cached for path, whatever its method or
// query.
func (m *CacheManager) InvalidatePath(ctx context.Context, path string) error {
	base := resourcePath(path)

	m.mu.Lock()
	keys := m.index[base]
	delete(m.index, base)
	m.mu.Unlock()

	var lastErr error

	for key := range keys {
		err := m.cache.Delete(ctx, key)
		if err != nil {
			lastErr = err
		}
	}

	m.mu.Lock()
	m.stats.Invalidations += int64(len(keys))
	m.mu.Unlock()

	return lastErr
}

// GetStats returns a snapshot of the statistics.
func (m *CacheManager) GetStats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stats
}

// keyPath extracts the path portion of a key built by GetCacheKey.
func keyPath(key string) string {
	_, rest, found := strings.Cut(key, ":")
	if !found {
		return key
	}

	if i := strings.LastIndex(rest, ":"); i >= 0 {
		if params := rest[i+1:]; strings.Contains(params, "=") && !strings.Contains(params, "/") {
			rest = rest[:i]
		}
	}

	return rest
}

// versionHeaderSuffix matches OpenStack-API-Version and the per-service
// X-OpenStack-<Service>-API-Version headers.
const versionHeaderSuffix = "-api-version"

// RequestCacheKey keys req by method, path and any microversion headers, so
// one path read at two versions is cached twice.
func (m *CacheManager) RequestCacheKey(req *Request) string {
	var params map[string]string

	for name, values := range req.Headers {
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, versionHeaderSuffix) || len(values) == 0 {
			continue
		}

		if params == nil {
			params = make(map[string]string)
		}

		params[lower] = strings.Join(values, ",")
	}

	return m.GetCacheKey(req.Method, req.Path, params)
}

// resourcePath normalizes a request path or absolute URL to its bare path.
func resourcePath(path string) string {
	if u, err := url.Parse(path); err == nil && u.Path != "" {
		path = u.Path
	} else {
		path, _, _ = strings.Cut(path, "?")
	}

	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	return path
}

// parentPath returns the collection path of an item path.
func parentPath(path string) string {
	base := resourcePath(path)

	idx := strings.LastIndex(base, "/")
	if idx <= 0 {
		return base
	}

	return base[:idx]
}

// CachingPolicy decides which responses are cached and for how long.
type CachingPolicy struct {
	CacheGET     bool
	CachePOST    bool
	CacheErrors  bool
	IncludePaths []string
	ExcludePaths []string
	DefaultTTL   time.Duration
	PathTTLs     map[string]time.Duration
}

// DefaultCachingPolicy caches successful GETs except quota usage, which
// changes with every request.
func DefaultCachingPolicy() *CachingPolicy {
	return &CachingPolicy{
		CacheGET:     true,
		ExcludePaths: []string{"/limits", "/os-quota-sets"},
		DefaultTTL:   constants.DefaultCacheTTL,
	}
}

// ShouldCache reports whether a response may be cached.
func (p *CachingPolicy) ShouldCache(method, path string, statusCode int) bool {
	switch method {
	case http.MethodGet:
		if !p.CacheGET {
			return false
		}
	case http.MethodPost:
		if !p.CachePOST {
			return false
		}
	default:
		return false
	}

	if statusCode >= http.StatusBadRequest && !p.CacheErrors {
		return false
	}

	base := resourcePath(path)

	for _, excluded := range p.ExcludePaths {
		if strings.Contains(base, excluded) {
			return false
		}
	}

	if len(p.IncludePaths) == 0 {
		return true
	}

	for _, included := range p.IncludePaths {
		if strings.Contains(base, included) {
			return true
		}
	}

	return false
}

// TTLFor returns the TTL for path: the longest matching PathTTLs prefix, or
// DefaultTTL.
func (p *CachingPolicy) TTLFor(path string) time.Duration {
	base := resourcePath(path)

	best, bestLen := p.DefaultTTL, 0

	for pattern, ttl := range p.PathTTLs {
		if strings.Contains(base, pattern) && len(pattern) > bestLen {
			best, bestLen = ttl, len(pattern)
		}
	}

	return best
}

const (
	metadataCachedResponse = "cached_response"
	metadataCacheKey       = "cache_key"
)

// CachedResponse returns the response a cache interceptor resolved for req,
// letting the client skip the network.
func CachedResponse(req *Request) (*Response, bool) {
	entry, ok := req.Metadata[metadataCachedResponse].(*CacheEntry)
	if !ok {
		return nil, false
	}

	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	return &Response{
		StatusCode: status,
		Headers:    entry.Headers.Clone(),
		Body:       entry.Data,
	}, true
}

// CacheInterceptor returns interceptors that serve cacheable requests from
// manager and store cacheable responses.
func CacheInterceptor(manager *CacheManager, policy *CachingPolicy) (RequestInterceptor, ResponseInterceptor) {
	if policy == nil {
		policy = DefaultCachingPolicy()
	}

	requestInterceptor := func(ctx context.Context, req *Request) error {
		if req.Method != http.MethodGet {
			return nil
		}

		key := manager.RequestCacheKey(req)

		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[metadataCacheKey] = key

		entry, err := manager.GetEntry(ctx, key)
		if err == nil {
			req.Metadata[metadataCachedResponse] = entry
		}

		return nil
	}

	responseInterceptor := func(ctx context.Context, req *Request, resp *Response) error {
		if resp.Error != nil || !policy.ShouldCache(req.Method, req.Path, resp.StatusCode) {
			return nil
		}

		if _, hit := req.Metadata[metadataCachedResponse]; hit {
			return nil
		}

		key, ok := req.Metadata[metadataCacheKey].(string)
		if !ok {
			key = manager.RequestCacheKey(req)
		}

		entry := &CacheEntry{
			Data:       resp.Body,
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers.Clone(),
			ETag:       resp.Headers.Get("ETag"),
		}

		return manager.SetEntry(ctx, key, entry, policy.TTLFor(req.Path))
	}

	return requestInterceptor, responseInterceptor
}

// ConditionalRequestInterceptor adds If-None-Match for GETs with a cached
// ETag.
func ConditionalRequestInterceptor(manager *CacheManager) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Method != http.MethodGet {
			return nil
		}

		entry, err := manager.cache.Get(ctx, manager.RequestCacheKey(req))
		if err != nil || entry.ETag == "" {
			return nil
		}

		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		req.Headers.Set("If-None-Match", entry.ETag)

		return nil
	}
}

// NotModifiedInterceptor replaces a 304 answer with the cached entry it
// revalidated.
func NotModifiedInterceptor(manager *CacheManager) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		if resp.StatusCode != http.StatusNotModified {
			return nil
		}

		entry, err := manager.cache.Get(ctx, manager.RequestCacheKey(req))
		if err != nil {
			return nil //nolint:nilerr // a 304 without a cached body is passed through
		}

		resp.StatusCode = entry.StatusCode
		if resp.StatusCode == 0 {
			resp.StatusCode = http.StatusOK
		}

		resp.Body = entry.Data

		return nil
	}
}

// CacheInvalidationInterceptor drops cached reads of a resource and its
// collection after a successful write.
func CacheInvalidationInterceptor(manager *CacheManager) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		switch req.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return nil
		}

		if resp.Error != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil
		}

		err := manager.InvalidatePath(ctx, req.Path)
		if err != nil {
			return err
		}

		return manager.InvalidatePath(ctx, parentPath(req.Path))
	}
}

// SmartCacheConfig bundles cache interceptor settings.
type SmartCacheConfig struct {
	EnableSmartInvalidation   bool
	EnableConditionalRequests bool
	ResourceTTLs              map[string]time.Duration
}

// DefaultSmartCacheConfig returns default smart cache settings.
func DefaultSmartCacheConfig() *SmartCacheConfig {
	return &SmartCacheConfig{
		EnableSmartInvalidation:   true,
		EnableConditionalRequests: true,
		ResourceTTLs: map[string]time.Duration{
			"/policies":         constants.StableResourceCacheTTL,
			"/export_locations": constants.StableResourceCacheTTL,
			"/nodes":            constants.VolatileResourceCacheTTL,
			"/recordsets":       constants.VolatileResourceCacheTTL,
		},
	}
}

// ConfigureSmartCache installs the cache interceptors on chain.
func ConfigureSmartCache(chain *InterceptorChain, manager *CacheManager, config *SmartCacheConfig) {
	if config == nil {
		config = DefaultSmartCacheConfig()
	}

	policy := DefaultCachingPolicy()
	policy.PathTTLs = config.ResourceTTLs

	if config.EnableConditionalRequests {
		chain.AddRequestInterceptor(ConditionalRequestInterceptor(manager))
		chain.AddResponseInterceptor(NotModifiedInterceptor(manager))
	}

	if config.EnableSmartInvalidation {
		chain.AddResponseInterceptor(CacheInvalidationInterceptor(manager))
	}

	reqInterceptor, respInterceptor := CacheInterceptor(manager, policy)
	chain.AddRequestInterceptor(reqInterceptor)
	chain.AddResponseInterceptor(respInterceptor)
}
