package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/rest/forms"
	"github.com/tablescout/tablescout/internal/server/rest/middleware"
	"github.com/tablescout/tablescout/internal/server/services"
)

type AuthHandler struct {
	sessions Sessions
	users    Users
	cookie   CookieConfig
	logger   logging.Logger
}

func NewAuthHandler(sessions Sessions, users Users, cookie CookieConfig, logger logging.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, users: users, cookie: cookie, logger: logger.With("module", "auth_handler")}
}

// RegisterResponse is the body of a successful registration.
type RegisterResponse struct {
	User UserResponse `json:"user"`
	*TokenResponse
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var form forms.RegisterForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": forms.Message(err)})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Register(ctx, form.Email, form.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	pair, err := h.sessions.StartSession(ctx, user)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info(ctx, "user registered", "user_id", user.ID)
	setRefreshCookie(c, h.cookie, pair.RefreshToken)
	c.JSON(http.StatusCreated, RegisterResponse{User: newUserResponse(user), TokenResponse: newTokenResponse(pair)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var form forms.LoginForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": forms.Message(err)})
		return
	}

	pair, err := h.sessions.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.respondWithPair(c, http.StatusOK, pair)
}

// Refresh exchanges a refresh token, taken from the body or the cookie, for
// a new pair. On failure the cookie is cleared.
func (h *AuthHandler) Refresh(c *gin.Context) {
	value, ok := h.refreshValue(c)
	if !ok {
		return
	}
	if value == "" {
		clearRefreshCookie(c, h.cookie)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), value)
	if err != nil {
		clearRefreshCookie(c, h.cookie)
		writeError(c, h.logger, err)
		return
	}

	h.respondWithPair(c, http.StatusOK, pair)
}

// Logout revokes the presented refresh token of the caller.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.Identity(c)
	if !ok {
		writeError(c, h.logger, common.ErrorUnauthorized)
		return
	}

	value, ok := h.refreshValue(c)
	if !ok {
		return
	}

	if value != "" {
		if err := h.sessions.Logout(c.Request.Context(), claims.SubjectID, value); err != nil {
			writeError(c, h.logger, err)
			return
		}
	}

	clearRefreshCookie(c, h.cookie)
	c.Status(http.StatusNoContent)
}

// LogoutAll revokes every refresh token of the caller.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims, ok := middleware.Identity(c)
	if !ok {
		writeError(c, h.logger, common.ErrorUnauthorized)
		return
	}

	n, err := h.sessions.LogoutAll(c.Request.Context(), claims.SubjectID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	clearRefreshCookie(c, h.cookie)
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}

// Me returns the caller's current account record.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.Identity(c)
	if !ok {
		writeError(c, h.logger, common.ErrorUnauthorized)
		return
	}

	user, err := h.users.GetSubject(c.Request.Context(), claims.SubjectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			err = common.ErrorUnauthorized
		}
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// refreshValue reads the refresh token from an optional JSON body, falling
// back to the cookie. It writes a 400 and returns false on a malformed body.
func (h *AuthHandler) refreshValue(c *gin.Context) (string, bool) {
	var form forms.RefreshForm
	if err := c.ShouldBindJSON(&form); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": forms.Message(err)})
		return "", false
	}
	if form.RefreshToken != "" {
		return form.RefreshToken, true
	}

	cookie, err := c.Cookie(common.RefreshTokenCookieName)
	if err != nil {
		return "", true
	}
	return cookie, true
}

func (h *AuthHandler) respondWithPair(c *gin.Context, status int, pair *services.TokenPair) {
	setRefreshCookie(c, h.cookie, pair.RefreshToken)
	c.JSON(status, newTokenResponse(pair))
}
