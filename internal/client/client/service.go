package client

import (
	"context"

	"github.com/tablescout/tablescout/internal/client/models"
)

// Client is the API surface used by the CLI commands.
type Client interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int64, error)
	Me(ctx context.Context) (*models.User, error)
	CreateEstablishment(ctx context.Context, e models.Establishment) (*models.Establishment, error)
	ListMyEstablishments(ctx context.Context) ([]models.Establishment, error)
	Ping(ctx context.Context) error
}

var _ Client = (*HTTPClient)(nil)
