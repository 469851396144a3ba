// Package refreshtokens provides persistence for refresh token records.
// Records are addressed by the SHA-256 digest of the opaque token value.
package refreshtokens

import (
	"context"
	"time"

	"github.com/tablescout/tablescout/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	FindActive(ctx context.Context, hash string, now time.Time) (*models.RefreshToken, error)
	// RevokeActive atomically revokes the record if it is still active at now
	// and returns it. A record that is missing, expired or already revoked
	// yields common.ErrorNotFound and is left untouched.
	RevokeActive(ctx context.Context, hash string, now time.Time, reason string) (*models.RefreshToken, error)
	SetReplacedBy(ctx context.Context, id, replacedBy string) error
	RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int64, error)
}
