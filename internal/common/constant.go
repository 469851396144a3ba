// Package common contains shared constants and sentinel errors used across
// tablescout components.
package common

// AuthorizationHeaderName is the HTTP header (and gRPC metadata key, lower-cased)
// carrying the access token on authenticated requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only authorization scheme accepted for access tokens.
const BearerScheme = "Bearer"

// RefreshTokenCookieName is the HttpOnly cookie that mirrors the refresh token
// returned in login/refresh response bodies.
const RefreshTokenCookieName = "refresh_token"

// RefreshTokenBytes is the amount of entropy in an opaque refresh token.
// Hex encoding doubles it, so tokens are 64 characters long.
const RefreshTokenBytes = 32
