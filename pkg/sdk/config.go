package sdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fivetwenty-io/resourcekit/internal/constants"
	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/fivetwenty-io/resourcekit/pkg/transport"
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired = errors.New("config is required")
	ErrInvalidConfig  = errors.New("invalid config")
)

// Config holds the settings of a client.
type Config struct {
	// Endpoint is the base URL used for every service without an entry in
	// Endpoints.
	Endpoint string `validate:"required_without=Endpoints,omitempty,url"`
	// Endpoints maps a service type (e.g. "dns") to its base URL.
	Endpoints map[string]string `validate:"omitempty,dive,keys,required,endkeys,url"`
	// Region and Interface narrow endpoint selection.
	Region    string
	Interface string `validate:"omitempty,oneof=public internal admin"`

	// Token is sent in X-Auth-Token. TokenProvider wins when both are set.
	Token         string
	TokenProvider func(ctx context.Context) (string, error) `validate:"-"`

	// Microversion is the highest version requested from microversioned
	// services. Empty means each schema's maximum.
	Microversion string `validate:"omitempty,microversion"`

	// Retry settings. Zero values select the defaults.
	RetryMax     int           `validate:"gte=0"`
	RetryWaitMin time.Duration `validate:"gte=0"`
	RetryWaitMax time.Duration `validate:"omitempty,gtefield=RetryWaitMin"`
	Timeout      time.Duration `validate:"gte=0"`

	UserAgent string
	// Headers are added to every request.
	Headers map[string]string

	// Debug enables request and response logging through Logger.
	Debug  bool
	Logger resource.Logger `validate:"-"`

	// RateLimit caps requests per second; zero disables limiting.
	RateLimit float64 `validate:"gte=0"`
	RateBurst int     `validate:"gte=0"`

	// CircuitBreaker opens after repeated server failures.
	CircuitBreaker bool

	// Cache enables response caching; nil disables it.
	Cache *transport.CacheConfig

	// Metrics registers request collectors when set.
	Metrics          prometheus.Registerer `validate:"-"`
	MetricsNamespace string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	err := v.RegisterValidation("microversion", func(fl validator.FieldLevel) bool {
		return resource.ValidMicroversion(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}

	return v
}

// Validate checks the config and reports every offending field.
func (c *Config) Validate(ctx context.Context) error {
	if c == nil {
		return ErrConfigRequired
	}

	err := validate.StructCtx(ctx, c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	problems := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, ", "))
}

// withDefaults returns a copy with zero values replaced by defaults.
func (c *Config) withDefaults() *Config {
	out := *c

	if out.RetryMax == 0 {
		out.RetryMax = constants.DefaultRetryMax
	}

	if out.RetryWaitMin == 0 {
		out.RetryWaitMin = constants.DefaultRetryWaitMin
	}

	if out.RetryWaitMax == 0 {
		out.RetryWaitMax = constants.DefaultRetryWaitMax
	}

	if out.Timeout == 0 {
		out.Timeout = constants.DefaultHTTPTimeout
	}

	if out.UserAgent == "" {
		out.UserAgent = constants.DefaultUserAgent
	}

	if out.RateLimit > 0 && out.RateBurst == 0 {
		out.RateBurst = constants.DefaultRateBurst
	}

	if out.MetricsNamespace == "" {
		out.MetricsNamespace = "resourcekit"
	}

	if out.Logger == nil {
		out.Logger = resource.NoopLogger()
	}

	return &out
}
