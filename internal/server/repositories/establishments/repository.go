// Package establishments provides persistence for partner venues.
package establishments

import (
	"context"

	"github.com/tablescout/tablescout/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, e *models.Establishment) (*models.Establishment, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Establishment, error)
}
