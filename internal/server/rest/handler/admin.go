package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/rest/middleware"
)

type AdminHandler struct {
	sessions Sessions
	logger   logging.Logger
}

func NewAdminHandler(sessions Sessions, logger logging.Logger) *AdminHandler {
	return &AdminHandler{sessions: sessions, logger: logger.With("module", "admin_handler")}
}

// RevokeSessions revokes every refresh token of the user named in the path.
func (h *AdminHandler) RevokeSessions(c *gin.Context) {
	target := c.Param("id")

	n, err := h.sessions.RevokeSessions(c.Request.Context(), target)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	if claims, ok := middleware.Identity(c); ok {
		h.logger.Info(c.Request.Context(), "admin revoked sessions", "admin_id", claims.SubjectID, "user_id", target, "revoked", n)
	}
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}
