// Package models defines the API resources the tablescout client works with.
package models

import "time"

// User is the caller's account as returned by /auth/me and registration.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Establishment is a venue owned by a partner.
type Establishment struct {
	ID      string `json:"id,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Cuisine string `json:"cuisine,omitempty"`
}

// TokenPair mirrors the server's token response body.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
	Role         string `json:"role"`
}
