package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrMissingCredentials indicates no OAuth client is configured for the
	// tenant, so a connect flow cannot be started
	ErrMissingCredentials = errors.New("oauth client credentials not configured")

	// ErrInvalidState indicates the OAuth state parameter failed verification.
	// Callers must not distinguish signature, format, or TTL failures.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotConnected indicates the tenant has no active provider connection
	ErrNotConnected = errors.New("integration not connected")

	// ErrNoRefreshToken indicates the stored credential cannot be refreshed
	// because the provider never granted offline access
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrDecryptFailed indicates a stored secret could not be decrypted.
	// The credential is unusable; the tenant must reconnect.
	ErrDecryptFailed = errors.New("failed to decrypt secret")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")
)
