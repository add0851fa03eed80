package model

import "errors"

// Credential and token errors. All of them surface to callers as a single
// "unauthorized" signal; the distinction is kept for logs and metrics.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account inactive")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenRevoked          = errors.New("token revoked")
	ErrTokenVersionStale     = errors.New("token version stale")
	ErrRefreshTokenNotFound  = errors.New("refresh token not found")
	ErrRefreshTokenReused    = errors.New("refresh token reused")
	ErrMissingToken          = errors.New("missing authorization token")
)

var (
	// ErrEmailAlreadyRegistered is a user-visible conflict and is not normalized.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrStoreUnavailable wraps backend failures (timeouts, dropped connections).
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
	ErrWeakPassword     = errors.New("password does not meet strength requirements")
	ErrInvalidEmail     = errors.New("invalid email")
)

var unauthorized = []error{
	ErrInvalidCredentials,
	ErrAccountInactive,
	ErrTokenMalformed,
	ErrTokenSignatureInvalid,
	ErrTokenExpired,
	ErrTokenRevoked,
	ErrTokenVersionStale,
	ErrRefreshTokenNotFound,
	ErrRefreshTokenReused,
	ErrMissingToken,
}

// IsUnauthorized reports whether err must be reported to the caller as unauthorized.
func IsUnauthorized(err error) bool {
	for _, target := range unauthorized {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Reason returns a short label for an unauthorized error, used as a metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrTokenVersionStale):
		return "version_stale"
	case errors.Is(err, ErrAccountInactive):
		return "inactive"
	case errors.Is(err, ErrRefreshTokenReused):
		return "reused"
	case errors.Is(err, ErrRefreshTokenNotFound):
		return "not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrNotFound):
		return "unknown_user"
	default:
		return "other"
	}
}
