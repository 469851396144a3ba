// Package common defines shared constants and sentinel errors used across
// server and client layers of tablescout. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Login errors. The message is deliberately the same for unknown
	// emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many attempts")

	// Access token errors (malformed, bad signature, wrong issuer/audience/type, expired).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Refresh token lifecycle errors.
	ErrSessionExpired     = errors.New("session expired")
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")

	// Configuration errors.
	ErrWeakSigningSecret = errors.New("signing secret must be at least 32 characters")
)
