// Package refreshtokens implements the refresh token store: issuing,
// rotating and revoking opaque refresh tokens, with reuse detection.
package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/cryptox"
	"github.com/tablescout/tablescout/internal/dbx"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/repositories/repomanager"
)

// DB is satisfied by *sql.DB.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
}

// ValueIssuer generates opaque refresh token values.
type ValueIssuer interface {
	IssueRefreshToken() (string, error)
}

type Store struct {
	db     DB
	rm     repomanager.RepositoryManager
	issuer ValueIssuer
	ttl    time.Duration
	now    func() time.Time
	logger logging.Logger
}

func NewStore(db DB, rm repomanager.RepositoryManager, issuer ValueIssuer, ttl time.Duration, logger logging.Logger) *Store {
	return &Store{
		db:     db,
		rm:     rm,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("module", "refreshtokens"),
	}
}

// Create issues a new refresh token for ownerID. The returned record carries
// the raw value in Token; only its hash is persisted.
func (s *Store) Create(ctx context.Context, ownerID string) (*models.RefreshToken, error) {
	return s.CreateWith(ctx, s.db, ownerID)
}

// CreateWith is Create bound to the caller's handle, typically a transaction.
func (s *Store) CreateWith(ctx context.Context, db dbx.DBTX, ownerID string) (*models.RefreshToken, error) {
	value, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &models.RefreshToken{
		UserID:    ownerID,
		Token:     value,
		TokenHash: cryptox.HashToken(value),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	created, err := s.rm.RefreshTokens(db).Create(ctx, t)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// FindActive returns the record for value if it is unrevoked and unexpired,
// common.ErrorNotFound otherwise.
func (s *Store) FindActive(ctx context.Context, value string) (*models.RefreshToken, error) {
	if value == "" {
		return nil, common.ErrorNotFound
	}
	return s.rm.RefreshTokens(s.db).FindActive(ctx, cryptox.HashToken(value), s.now())
}

var errRotateMiss = errors.New("refresh token not active")

// Rotate consumes oldValue and returns its successor. The old record is
// revoked with a compare-and-swap, so of several concurrent rotations of the
// same value at most one succeeds.
//
// A value that is unknown, expired or revoked by logout yields
// common.ErrSessionExpired. A value that was already rotated is treated as
// stolen: every active token of the owner is revoked and
// common.ErrTokenReuseDetected is returned.
func (s *Store) Rotate(ctx context.Context, oldValue string) (*models.RefreshToken, error) {
	if oldValue == "" {
		return nil, common.ErrSessionExpired
	}
	hash := cryptox.HashToken(oldValue)

	var next *models.RefreshToken
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.RefreshTokens(tx)

		old, err := repo.RevokeActive(ctx, hash, s.now(), models.RevokeReasonRotated)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errRotateMiss
			}
			return err
		}

		next, err = s.CreateWith(ctx, tx, old.UserID)
		if err != nil {
			return err
		}

		return repo.SetReplacedBy(ctx, old.ID, next.ID)
	})

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, errRotateMiss):
		return nil, s.classifyMiss(ctx, hash)
	default:
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
}

func (s *Store) classifyMiss(ctx context.Context, hash string) error {
	rec, err := s.rm.RefreshTokens(s.db).FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrSessionExpired
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}

	if !rec.Revoked() || rec.RevokedReason != models.RevokeReasonRotated {
		return common.ErrSessionExpired
	}

	s.logger.Warn(ctx, "security event: refresh token reuse",
		"user_id", rec.UserID, "token_id", rec.ID, "replaced_by", rec.ReplacedBy)

	n, err := s.RevokeAll(ctx, rec.UserID, models.RevokeReasonReuse)
	if err != nil {
		return fmt.Errorf("%w: revoke sessions: %v", common.ErrTokenReuseDetected, err)
	}
	s.logger.Info(ctx, "sessions revoked after reuse", "user_id", rec.UserID, "revoked", n)

	return common.ErrTokenReuseDetected
}

// Revoke revokes the single active token with value. It returns
// common.ErrorNotFound when no active token matches.
func (s *Store) Revoke(ctx context.Context, value, reason string) error {
	if value == "" {
		return common.ErrorNotFound
	}
	_, err := s.rm.RefreshTokens(s.db).RevokeActive(ctx, cryptox.HashToken(value), s.now(), reason)
	return err
}

// RevokeAll revokes every active token of ownerID and reports how many were
// revoked.
func (s *Store) RevokeAll(ctx context.Context, ownerID, reason string) (int64, error) {
	return s.rm.RefreshTokens(s.db).RevokeAllForUser(ctx, ownerID, s.now(), reason)
}
