package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tablescout/tablescout/internal/dbx"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/repositories/repomanager"
)

// RoleChanger is implemented by SessionService.
type RoleChanger interface {
	ChangeRole(ctx context.Context, ownerID string, role models.Role, mutate func(ctx context.Context, tx dbx.DBTX) error) (*TokenPair, error)
}

// EstablishmentService registers partner venues. Registering the first venue
// promotes a plain user to partner.
type EstablishmentService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	roles       RoleChanger
}

func NewEstablishmentService(db dbx.DBTX, m repomanager.RepositoryManager, roles RoleChanger) *EstablishmentService {
	return &EstablishmentService{db: db, repomanager: m, roles: roles}
}

// errNoPromotion aborts the role change when the owner is no longer a plain
// user by the time the transaction reads it.
var errNoPromotion = errors.New("owner needs no promotion")

// Register stores e for ownerID. When the owner is still a plain user the
// venue is created inside the role change to partner and the reissued pair
// is returned; otherwise the returned pair is nil. The owner's role is read
// inside the same transaction, so a partner or admin is never demoted.
func (s *EstablishmentService) Register(ctx context.Context, ownerID string, e *models.Establishment) (*models.Establishment, *TokenPair, error) {
	e.OwnerID = ownerID

	var created *models.Establishment
	pair, err := s.roles.ChangeRole(ctx, ownerID, models.RolePartner, func(ctx context.Context, tx dbx.DBTX) error {
		owner, err := s.repomanager.Users(tx).GetByID(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("load owner: %w", err)
		}
		if owner.Role != models.RoleUser {
			return errNoPromotion
		}

		created, err = s.repomanager.Establishments(tx).Create(ctx, e)
		return err
	})
	switch {
	case errors.Is(err, errNoPromotion):
		created, err = s.repomanager.Establishments(s.db).Create(ctx, e)
		if err != nil {
			return nil, nil, err
		}
		return created, nil, nil
	case err != nil:
		return nil, nil, err
	}
	return created, pair, nil
}

// ListMine returns the venues owned by ownerID.
func (s *EstablishmentService) ListMine(ctx context.Context, ownerID string) ([]models.Establishment, error) {
	return s.repomanager.Establishments(s.db).ListByOwner(ctx, ownerID)
}
