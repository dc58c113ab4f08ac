package auth

import "errors"

// Authentication errors. Missing, malformed and unknown keys all map to
// UNAUTHENTICATED so a caller cannot probe which keys exist; a revoked key
// maps to PERMISSION_DENIED and a storage failure to UNAVAILABLE.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
	ErrStorage          = errors.New("database error")
)
