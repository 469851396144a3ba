package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/rest/forms"
	"github.com/tablescout/tablescout/internal/server/rest/middleware"
)

type EstablishmentHandler struct {
	establishments Establishments
	cookie         CookieConfig
	logger         logging.Logger
}

func NewEstablishmentHandler(establishments Establishments, cookie CookieConfig, logger logging.Logger) *EstablishmentHandler {
	return &EstablishmentHandler{establishments: establishments, cookie: cookie, logger: logger.With("module", "establishment_handler")}
}

type EstablishmentResponse struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Cuisine string `json:"cuisine,omitempty"`
}

// CreateEstablishmentResponse carries the new venue and, when registering it
// promoted the caller to partner, the reissued token pair.
type CreateEstablishmentResponse struct {
	Establishment EstablishmentResponse `json:"establishment"`
	Tokens        *TokenResponse        `json:"tokens,omitempty"`
}

func newEstablishmentResponse(e *models.Establishment) EstablishmentResponse {
	return EstablishmentResponse{ID: e.ID, OwnerID: e.OwnerID, Name: e.Name, Address: e.Address, Cuisine: e.Cuisine}
}

func (h *EstablishmentHandler) Create(c *gin.Context) {
	claims, ok := middleware.Identity(c)
	if !ok {
		writeError(c, h.logger, common.ErrorUnauthorized)
		return
	}

	var form forms.EstablishmentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": forms.Message(err)})
		return
	}

	e, pair, err := h.establishments.Register(c.Request.Context(), claims.SubjectID, &models.Establishment{
		Name:    form.Name,
		Address: form.Address,
		Cuisine: form.Cuisine,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	resp := CreateEstablishmentResponse{Establishment: newEstablishmentResponse(e)}
	if pair != nil {
		resp.Tokens = newTokenResponse(pair)
		setRefreshCookie(c, h.cookie, pair.RefreshToken)
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *EstablishmentHandler) ListMine(c *gin.Context) {
	claims, ok := middleware.Identity(c)
	if !ok {
		writeError(c, h.logger, common.ErrorUnauthorized)
		return
	}

	list, err := h.establishments.ListMine(c.Request.Context(), claims.SubjectID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	out := make([]EstablishmentResponse, 0, len(list))
	for i := range list {
		out = append(out, newEstablishmentResponse(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"establishments": out})
}
