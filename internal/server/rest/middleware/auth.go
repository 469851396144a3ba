// Package middleware holds gin middleware for the REST API: access token
// authentication with role checks, and request logging.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/auth"
	"github.com/tablescout/tablescout/internal/server/models"
)

const identityKey = "identity"

// TokenVerifier is implemented by *auth.Codec.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type Auth struct {
	verifier TokenVerifier
	logger   logging.Logger
}

func NewAuth(verifier TokenVerifier, logger logging.Logger) *Auth {
	return &Auth{verifier: verifier, logger: logger.With("module", "auth_middleware")}
}

// BearerToken extracts the token from an Authorization header value. It
// returns "" when the header is empty, uses another scheme, or carries no
// token.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return ""
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return ""
	}
	return token
}

// RequireAuth verifies the bearer access token and, when roles are given,
// requires the token's role to be one of them. Failures abort with 401 (no or
// bad token) or 403 (role not allowed) before any handler runs.
func (a *Auth) RequireAuth(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := a.verifier.VerifyAccessToken(token)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
				return
			}
			a.logger.Debug(c.Request.Context(), "access token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if len(allowed) > 0 {
			if _, ok := allowed[claims.Role]; !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		c.Set(identityKey, claims)
		c.Request = c.Request.WithContext(auth.ContextWithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// Identity returns the claims stored by RequireAuth.
func Identity(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}
