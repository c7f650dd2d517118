package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/fivetwenty-io/resourcekit/internal/constants"
	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/fivetwenty-io/resourcekit/pkg/sdk"
	"github.com/fivetwenty-io/resourcekit/pkg/transport"
)

// SessionFactory opens a session for one command run. The returned func
// releases it.
type SessionFactory func(ctx context.Context) (*resource.Session, func(), error)

// ViperSessionFactory builds sessions from flags, RKIT_* environment
// variables and the config file. Logs go to stderr.
func ViperSessionFactory(stderr io.Writer) SessionFactory {
	return func(ctx context.Context) (*resource.Session, func(), error) {
		config, err := buildSDKConfig(stderr)
		if err != nil {
			return nil, nil, err
		}

		client, err := sdk.New(ctx, config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create client: %w", err)
		}

		return client.Session(), client.Close, nil
	}
}

func buildSDKConfig(stderr io.Writer) (*sdk.Config, error) {
	config := &sdk.Config{
		Endpoint:     viper.GetString("endpoint"),
		Endpoints:    viper.GetStringMapString("endpoints"),
		Region:       viper.GetString("region"),
		Interface:    viper.GetString("interface"),
		Token:        viper.GetString("token"),
		Microversion: viper.GetString("microversion"),
		RetryMax:     viper.GetInt("retry_max"),
		Timeout:      viper.GetDuration("timeout"),
		Debug:        viper.GetBool("debug"),
		Logger:       NewLogger(stderr, viper.GetBool("verbose")),
		RateLimit:    viper.GetFloat64("rate_limit"),
	}

	if config.Endpoint == "" && len(config.Endpoints) == 0 {
		return nil, constants.ErrEndpointRequired
	}

	if viper.IsSet("cache") {
		var cache transport.CacheConfig

		err := viper.UnmarshalKey("cache", &cache)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache settings: %w", err)
		}

		config.Cache = &cache
	}

	return config, nil
}
