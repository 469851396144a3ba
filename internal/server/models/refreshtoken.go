package models

import "time"

// Reasons recorded in refresh_tokens.revoked_reason.
const (
	RevokeReasonRotated = "rotated"
	RevokeReasonLogout  = "logout"
	RevokeReasonReuse   = "reuse"
	RevokeReasonAdmin   = "admin"
)

// RefreshToken is a stored refresh token record. Only TokenHash is persisted;
// Token carries the raw opaque value back to the caller right after issue and
// is empty on records read from the database.
type RefreshToken struct {
	ID            string
	UserID        string
	Token         string
	TokenHash     string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	RevokedReason string
	ReplacedBy    string
}

// Revoked reports whether the record has been revoked for any reason.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Active reports whether the record can still be presented at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked() && now.Before(t.ExpiresAt)
}
