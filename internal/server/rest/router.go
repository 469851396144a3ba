// Package rest exposes the public REST API over gin.
package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/rest/forms"
	"github.com/tablescout/tablescout/internal/server/rest/handler"
	"github.com/tablescout/tablescout/internal/server/rest/middleware"
)

// RefreshCookiePath scopes the refresh token cookie to the auth endpoints.
const RefreshCookiePath = "/api/v1/auth"

// Handlers groups the endpoint implementations mounted by NewRouter.
type Handlers struct {
	Auth           *handler.AuthHandler
	Establishments *handler.EstablishmentHandler
	Admin          *handler.AdminHandler
}

// NewRouter builds the gin engine with every route and its role policy.
func NewRouter(authmw *middleware.Auth, h Handlers, logger logging.Logger) *gin.Engine {
	binding.Validator = new(forms.DefaultValidator)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger.With("module", "http")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", authmw.RequireAuth(), h.Auth.Logout)
	authGroup.POST("/logout-all", authmw.RequireAuth(), h.Auth.LogoutAll)
	authGroup.GET("/me", authmw.RequireAuth(), h.Auth.Me)

	v1.POST("/establishments",
		authmw.RequireAuth(models.RoleUser, models.RolePartner), h.Establishments.Create)

	partner := v1.Group("/partner", authmw.RequireAuth(models.RolePartner, models.RoleAdmin))
	partner.GET("/establishments", h.Establishments.ListMine)

	admin := v1.Group("/admin", authmw.RequireAuth(models.RoleAdmin))
	admin.POST("/users/:id/sessions/revoke", h.Admin.RevokeSessions)

	return r
}
