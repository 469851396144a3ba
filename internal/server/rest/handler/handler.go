// Package handler implements the REST endpoints. Handlers depend on small
// interfaces so they can be exercised without a database.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/services"
)

// Sessions is implemented by *services.SessionService.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	StartSession(ctx context.Context, user *models.User) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshValue string) (*services.TokenPair, error)
	Logout(ctx context.Context, subjectID, refreshValue string) error
	LogoutAll(ctx context.Context, subjectID string) (int64, error)
	RevokeSessions(ctx context.Context, subjectID string) (int64, error)
}

// Users is implemented by *services.UserService.
type Users interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	GetSubject(ctx context.Context, id string) (*models.User, error)
}

// Establishments is implemented by *services.EstablishmentService.
type Establishments interface {
	Register(ctx context.Context, ownerID string, e *models.Establishment) (*models.Establishment, *services.TokenPair, error)
	ListMine(ctx context.Context, ownerID string) ([]models.Establishment, error)
}

// CookieConfig controls the HttpOnly refresh token cookie.
type CookieConfig struct {
	Path   string
	MaxAge time.Duration
	Secure bool
}

// TokenResponse is the body returned whenever a new pair is issued.
type TokenResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	TokenType    string      `json:"tokenType"`
	ExpiresIn    int64       `json:"expiresIn"`
	Role         models.Role `json:"role"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

func newTokenResponse(p *services.TokenPair) *TokenResponse {
	return &TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    common.BearerScheme,
		ExpiresIn:    int64(p.ExpiresIn / time.Second),
		Role:         p.Role,
	}
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

func setRefreshCookie(c *gin.Context, cfg CookieConfig, value string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, value, int(cfg.MaxAge/time.Second), cfg.Path, "", cfg.Secure, true)
}

func clearRefreshCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, cfg.Path, "", cfg.Secure, true)
}

// writeError maps service errors to status codes. Authentication failures
// share generic messages.
func writeError(c *gin.Context, logger logging.Logger, err error) {
	status, msg := http.StatusInternalServerError, "internal error"

	switch {
	case errors.Is(err, common.ErrTooManyAttempts):
		status, msg = http.StatusTooManyRequests, "too many attempts"
	case errors.Is(err, common.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, common.ErrTokenExpired):
		status, msg = http.StatusUnauthorized, "token expired"
	case errors.Is(err, common.ErrSessionExpired), errors.Is(err, common.ErrTokenReuseDetected):
		status, msg = http.StatusUnauthorized, "session expired"
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorValidation):
		status, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, common.ErrorAlreadyExists):
		status, msg = http.StatusConflict, "already exists"
	case errors.Is(err, common.ErrorNotFound):
		status, msg = http.StatusNotFound, "not found"
	}

	if status == http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
