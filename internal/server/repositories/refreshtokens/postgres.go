package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/dbx"
	"github.com/tablescout/tablescout/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, user_id, token_hash, created_at, expires_at, revoked_at, revoked_reason, replaced_by`

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	query :=
		`INSERT INTO refresh_tokens (user_id, token_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt).
		Scan(&token.ID)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return token, nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `SELECT ` + selectColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	return scanToken(r.db.QueryRowContext(ctx, query, hash))
}

func (r *PostgresRepository) FindActive(ctx context.Context, hash string, now time.Time) (*models.RefreshToken, error) {
	query := `SELECT ` + selectColumns + ` FROM refresh_tokens
		 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2`

	return scanToken(r.db.QueryRowContext(ctx, query, hash, now))
}

func (r *PostgresRepository) RevokeActive(ctx context.Context, hash string, now time.Time, reason string) (*models.RefreshToken, error) {
	query :=
		`UPDATE refresh_tokens
		 SET revoked_at = $2, revoked_reason = $3
		 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
		 RETURNING id, user_id, created_at, expires_at`

	t := &models.RefreshToken{TokenHash: hash, RevokedReason: reason}
	err := r.db.QueryRowContext(ctx, query, hash, now, reason).
		Scan(&t.ID, &t.UserID, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	revokedAt := now
	t.RevokedAt = &revokedAt

	return t, nil
}

func (r *PostgresRepository) SetReplacedBy(ctx context.Context, id, replacedBy string) error {
	query := `UPDATE refresh_tokens SET replaced_by = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, replacedBy)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	ok, err := dbx.AffectedOne(res)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int64, error) {
	query :=
		`UPDATE refresh_tokens
		 SET revoked_at = $2, revoked_reason = $3
		 WHERE user_id = $1 AND revoked_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, userID, now, reason)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanToken(row *sql.Row) (*models.RefreshToken, error) {
	var (
		t          models.RefreshToken
		revokedAt  sql.NullTime
		reason     sql.NullString
		replacedBy sql.NullString
	)

	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &revokedAt, &reason, &replacedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if revokedAt.Valid {
		v := revokedAt.Time
		t.RevokedAt = &v
	}
	t.RevokedReason = reason.String
	t.ReplacedBy = replacedBy.String

	return &t, nil
}
