package constants

import "errors"

// Command line errors.
var (
	ErrEndpointRequired    = errors.New("endpoint is required (use --endpoint or RKIT_ENDPOINT)")
	ErrInvalidKeyValue     = errors.New("expected key=value")
	ErrUnknownOutputFormat = errors.New("unknown output format")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrNothingToUpdate     = errors.New("nothing to update (use --set or --unset)")
)

// Resource errors.
var (
	ErrNoIdentity = errors.New("resource has no identity attribute")
)
