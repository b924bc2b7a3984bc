package oauth

import "errors"

var (
	// ErrUnsupportedProvider rejects unknown or missing provider names
	// before any network call is made.
	ErrUnsupportedProvider = errors.New("oauth: unsupported provider (must be google or facebook)")

	// ErrProfileIncomplete is returned when the provider profile lacks an
	// email; an account cannot be keyed without one.
	ErrProfileIncomplete = errors.New("oauth: provider profile has no email")

	// ErrProviderUnavailable normalizes upstream failures (network error,
	// non-2xx, malformed profile JSON) into one typed outcome.
	ErrProviderUnavailable = errors.New("oauth: provider request failed")
)
