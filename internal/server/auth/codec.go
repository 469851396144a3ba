// Package auth issues and verifies the credentials used by tablescout:
// short-lived HS256 access tokens and opaque refresh token values.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/config"
	"github.com/tablescout/tablescout/internal/server/models"
)

// TokenTypeAccess is the tokenType claim value of access tokens.
const TokenTypeAccess = "access"

// Claims is the payload of an access token.
type Claims struct {
	SubjectID string      `json:"subjectId"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	TokenType string      `json:"tokenType"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens and generates refresh token values.
// It is safe for concurrent use.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewCodec builds a Codec from cfg. A secret shorter than
// config.MinSecretLength is rejected with common.ErrWeakSigningSecret unless
// cfg.TestMode is set, in which case only a warning is logged.
func NewCodec(cfg *config.Config, logger logging.Logger) (*Codec, error) {
	if len(cfg.SecretKey) < config.MinSecretLength {
		if !cfg.TestMode {
			return nil, common.ErrWeakSigningSecret
		}
		logger.Warn(context.Background(), "weak JWT signing secret accepted in test mode",
			"length", len(cfg.SecretKey))
	}

	ttl := cfg.AccessTokenValidityDuration
	if ttl <= 0 || ttl > config.MaxAccessTokenValidity {
		return nil, fmt.Errorf("access token validity %s out of range (0, %s]", ttl, config.MaxAccessTokenValidity)
	}

	return &Codec{
		secret:   []byte(cfg.SecretKey),
		issuer:   cfg.ServiceName,
		audience: cfg.APIAudience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// AccessTokenTTL is the lifetime given to newly issued access tokens.
func (c *Codec) AccessTokenTTL() time.Duration {
	return c.ttl
}

// IssueAccessToken signs a new access token for the given subject.
func (c *Codec) IssueAccessToken(subjectID, email string, role models.Role) (string, error) {
	if subjectID == "" {
		return "", errors.New("subject id is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := c.now()
	claims := Claims{
		SubjectID: subjectID,
		Email:     email,
		Role:      role,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subjectID,
			Audience:  jwt.ClaimStrings{c.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken returns a fresh opaque refresh token value: 32 random
// bytes, hex-encoded.
func (c *Codec) IssueRefreshToken() (string, error) {
	v, err := common.MakeRandHexString(common.RefreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return v, nil
}

// VerifyAccessToken checks algorithm, signature, issuer, audience, expiry and
// token type. Every failure wraps common.ErrInvalidToken; expired tokens also
// wrap common.ErrTokenExpired.
func (c *Codec) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("%w: unexpected token type %q", common.ErrInvalidToken, claims.TokenType)
	}
	if claims.SubjectID == "" || claims.SubjectID != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", common.ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrInvalidToken, claims.Role)
	}

	return claims, nil
}
