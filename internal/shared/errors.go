package shared

import "fmt"

// Sentinels shared across packages. Callers wrap them with %w and match with errors.Is.
var (
	// config
	ErrMissingConfig      = fmt.Errorf("config file not found")
	ErrInvalidConfig      = fmt.Errorf("invalid config")
	ErrMissingCredentials = fmt.Errorf("missing client credentials")

	// authorization
	ErrAuthFailed         = fmt.Errorf("authorization failed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrRefreshFailed      = fmt.Errorf("credential refresh failed")
	ErrNoRefreshToken     = fmt.Errorf("no refresh token available")
	ErrMissingScope       = fmt.Errorf("insufficient scope")
	ErrCredentialNotFound = fmt.Errorf("no stored credential")

	// requests
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// input
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
