package auth

import "errors"

var (
	// ErrInvalidToken covers bad signature, malformed structure and
	// unsupported algorithms. The reason is never distinguished to callers.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrExpiredToken indicates a well-formed, signature-valid token whose
	// expiry has passed.
	ErrExpiredToken = errors.New("auth: token expired")

	// ErrWrongTokenClass indicates a refresh token presented where an access
	// token is required, or vice versa.
	ErrWrongTokenClass = errors.New("auth: wrong token class")

	// ErrKindMismatch indicates a token whose actor family does not match
	// the endpoint group it was presented to.
	ErrKindMismatch = errors.New("auth: actor kind mismatch")

	// ErrHubScopeViolation indicates a hub token used outside the hub path
	// whitelist.
	ErrHubScopeViolation = errors.New("auth: hub token outside whitelist")

	// ErrBlockedSource indicates the source address is temporarily blocked
	// by the login throttle.
	ErrBlockedSource = errors.New("auth: source address blocked")

	// ErrBadCredentials is the single failure shape for unknown principal,
	// wrong credential and not-eligible status, so that account existence
	// and status are not leaked.
	ErrBadCredentials = errors.New("auth: bad credentials")

	// ErrNotEligible marks BLOCKED/DISABLED/DELETED principals internally.
	// It is collapsed into ErrBadCredentials before leaving the service.
	ErrNotEligible = errors.New("auth: principal not eligible")

	// ErrKeyTooShort refuses signing keys below the 256-bit minimum. This
	// is a startup configuration failure, never a runtime condition.
	ErrKeyTooShort = errors.New("auth: signing key shorter than 256 bits")

	ErrNotFound    = errors.New("auth: not found")
	ErrTokenExists = errors.New("auth: live single-use token already exists")
)
