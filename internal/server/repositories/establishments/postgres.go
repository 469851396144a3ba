package establishments

import (
	"context"
	"fmt"

	"github.com/tablescout/tablescout/internal/dbx"
	"github.com/tablescout/tablescout/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Establishment) (*models.Establishment, error) {
	query :=
		`INSERT INTO establishments (owner_id, name, address, cuisine)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, e.OwnerID, e.Name, e.Address, e.Cuisine).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return e, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Establishment, error) {
	query :=
		`SELECT id, owner_id, name, address, cuisine, created_at
		 FROM establishments
		 WHERE owner_id = $1
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.Establishment{}
	for rows.Next() {
		var e models.Establishment
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Address, &e.Cuisine, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
