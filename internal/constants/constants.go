package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second

	// NATSConnectTimeout bounds connecting to NATS and creating the KV bucket.
	NATSConnectTimeout = 5 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 5

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Rate limiting.
const (
	// DefaultRateLimit is the default sustained request rate per second.
	DefaultRateLimit = 10.0

	// DefaultRateBurst is the default token bucket burst.
	DefaultRateBurst = 20
)

// HTTP headers.
const (
	// HeaderAuthToken carries the Keystone token.
	HeaderAuthToken = "X-Auth-Token"

	// HeaderUserAgent is the user agent header.
	HeaderUserAgent = "User-Agent"

	// HeaderContentType is the content type header.
	HeaderContentType = "Content-Type"

	// HeaderAccept is the accept header.
	HeaderAccept = "Accept"

	// ContentTypeJSON is the JSON media type.
	ContentTypeJSON = "application/json"

	// DefaultUserAgent identifies the client.
	DefaultUserAgent = "resourcekit/1.0"
)

// Pagination and display limits.
const (
	// DefaultPageSize is the page size the CLI asks for when none is given.
	DefaultPageSize = 50

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// StringTruncationLength is the default length for truncating table cells.
	StringTruncationLength = 60
)

// Cache sizes and lifetimes.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 5 * time.Minute

	// StableResourceCacheTTL is the TTL for resources that rarely change.
	StableResourceCacheTTL = 10 * time.Minute

	// VolatileResourceCacheTTL is the TTL for resources that change often.
	VolatileResourceCacheTTL = 30 * time.Second

	// DefaultNATSBucket is the default JetStream KV bucket name.
	DefaultNATSBucket = "resourcekit-cache"
)

// Circuit breaker.
const (
	// CircuitBreakerThreshold is the failure threshold for circuit breaker.
	CircuitBreakerThreshold = 5

	// CircuitBreakerSuccessThreshold is the success threshold for circuit breaker.
	CircuitBreakerSuccessThreshold = 2

	// CircuitBreakerTimeout is the timeout for circuit breaker.
	CircuitBreakerTimeout = 30 * time.Second
)

// Format constants.
const (
	// FormatTable for table output format.
	FormatTable = "table"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// KeyValueSplitParts is the number of parts when splitting key=value strings.
	KeyValueSplitParts = 2
)

// Environment.
const (
	// EnvPrefix prefixes environment variables read by the CLI.
	EnvPrefix = "RKIT"

	// ConfigFileName is the CLI configuration file name without extension.
	ConfigFileName = "config"

	// ConfigDirName is the directory under the user home.
	ConfigDirName = ".rkit"
)
