// Package services contains server-side business logic. This file implements
// SessionService, the only component that mints token pairs: at login, on
// refresh, and whenever a subject's role changes.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/dbx"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/metrics"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/refreshtokens"
	"github.com/tablescout/tablescout/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Role         models.Role
}

// TokenCodec signs access tokens.
type TokenCodec interface {
	IssueAccessToken(subjectID, email string, role models.Role) (string, error)
	AccessTokenTTL() time.Duration
}

// RefreshStore is the subset of *refreshtokens.Store used here.
type RefreshStore interface {
	Create(ctx context.Context, ownerID string) (*models.RefreshToken, error)
	CreateWith(ctx context.Context, db dbx.DBTX, ownerID string) (*models.RefreshToken, error)
	FindActive(ctx context.Context, value string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, oldValue string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, value, reason string) error
	RevokeAll(ctx context.Context, ownerID, reason string) (int64, error)
}

// CredentialVerifier checks an email/password pair. Any mismatch, including
// an unknown email, is reported as common.ErrInvalidCredentials.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*models.User, error)
}

// SubjectDirectory resolves the current state of a subject.
type SubjectDirectory interface {
	GetSubject(ctx context.Context, id string) (*models.User, error)
}

// LoginLimiter throttles failed logins per email.
type LoginLimiter interface {
	Check(ctx context.Context, email string) error
	Fail(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

type SessionService struct {
	db          refreshtokens.DB
	repomanager repomanager.RepositoryManager
	codec       TokenCodec
	store       RefreshStore
	credentials CredentialVerifier
	directory   SubjectDirectory
	limiter     LoginLimiter
	metrics     *metrics.Sessions
	logger      logging.Logger
}

// NewSessionService wires a SessionService. limiter may be nil, which
// disables login throttling; a nil sm records no metrics.
func NewSessionService(
	db refreshtokens.DB,
	m repomanager.RepositoryManager,
	codec TokenCodec,
	store RefreshStore,
	credentials CredentialVerifier,
	directory SubjectDirectory,
	limiter LoginLimiter,
	sm *metrics.Sessions,
	logger logging.Logger,
) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		codec:       codec,
		store:       store,
		credentials: credentials,
		directory:   directory,
		limiter:     limiter,
		metrics:     sm,
		logger:      logger.With("module", "sessions"),
	}
}

// Login verifies credentials and starts a session. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = normalizeEmail(email)

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, email); err != nil {
			if errors.Is(err, common.ErrTooManyAttempts) {
				s.metrics.Login(ctx, metrics.ResultThrottled)
				return nil, err
			}
			s.logger.Warn(ctx, "login limiter check failed", "error", err)
		}
	}

	user, err := s.credentials.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			if s.limiter != nil {
				if ferr := s.limiter.Fail(ctx, email); ferr != nil {
					s.logger.Warn(ctx, "login limiter update failed", "error", ferr)
				}
			}
			s.metrics.Login(ctx, metrics.ResultInvalidCredentials)
			return nil, common.ErrInvalidCredentials
		}
		s.metrics.Login(ctx, metrics.ResultError)
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.logger.Warn(ctx, "login limiter reset failed", "error", err)
		}
	}

	pair, err := s.StartSession(ctx, user)
	if err != nil {
		s.metrics.Login(ctx, metrics.ResultError)
		return nil, err
	}
	s.metrics.Login(ctx, metrics.ResultOK)
	return pair, nil
}

// StartSession mints a fresh pair for user.
func (s *SessionService) StartSession(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := s.codec.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	rt, err := s.store.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	s.logger.Info(ctx, "session started", "user_id", user.ID, "role", user.Role)
	return s.pair(access, rt.Token, user.Role), nil
}

// Refresh rotates refreshValue and returns a new pair. The access token is
// bound to the role the subject has now, not the one it had at login.
func (s *SessionService) Refresh(ctx context.Context, refreshValue string) (*TokenPair, error) {
	next, err := s.store.Rotate(ctx, refreshValue)
	if err != nil {
		s.metrics.Refresh(ctx, refreshResult(err))
		return nil, err
	}

	user, err := s.directory.GetSubject(ctx, next.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Refresh(ctx, metrics.ResultSessionExpired)
			return nil, common.ErrSessionExpired
		}
		s.metrics.Refresh(ctx, metrics.ResultError)
		return nil, fmt.Errorf("load subject: %w", err)
	}

	access, err := s.codec.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.metrics.Refresh(ctx, metrics.ResultError)
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.metrics.Refresh(ctx, metrics.ResultOK)
	return s.pair(access, next.Token, user.Role), nil
}

// ReissueOnRoleChange mints a new pair reflecting the stored role of ownerID.
// Other refresh chains of the subject stay valid; they pick up the new role
// on their next refresh.
func (s *SessionService) ReissueOnRoleChange(ctx context.Context, ownerID string) (*TokenPair, error) {
	return s.reissue(ctx, s.db, ownerID)
}

// ChangeRole sets the role of ownerID and returns a pair carrying it. mutate,
// the role update and the new refresh token share one transaction, so either
// all of them persist or none do. mutate may be nil.
func (s *SessionService) ChangeRole(
	ctx context.Context,
	ownerID string,
	role models.Role,
	mutate func(ctx context.Context, tx dbx.DBTX) error,
) (*TokenPair, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, role)
	}

	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if mutate != nil {
			if err := mutate(ctx, tx); err != nil {
				return err
			}
		}

		if err := s.repomanager.Users(tx).UpdateRole(ctx, ownerID, role); err != nil {
			return fmt.Errorf("update role: %w", err)
		}

		var err error
		pair, err = s.reissue(ctx, tx, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "role changed", "user_id", ownerID, "role", role)
	return pair, nil
}

// reissue reads ownerID through db and mints a pair bound to the stored role.
// Inside a transaction db must be the transaction handle.
func (s *SessionService) reissue(ctx context.Context, db dbx.DBTX, ownerID string) (*TokenPair, error) {
	user, err := s.repomanager.Users(db).GetByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load subject: %w", err)
	}

	access, err := s.codec.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	rt, err := s.store.CreateWith(ctx, db, user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return s.pair(access, rt.Token, user.Role), nil
}

// Logout revokes one refresh token of subjectID. Tokens that are already
// inactive are ignored; a token owned by someone else yields
// common.ErrForbidden.
func (s *SessionService) Logout(ctx context.Context, subjectID, refreshValue string) error {
	rec, err := s.store.FindActive(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	if rec.UserID != subjectID {
		return common.ErrForbidden
	}

	if err := s.store.Revoke(ctx, refreshValue, models.RevokeReasonLogout); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	s.metrics.Revoked(ctx, models.RevokeReasonLogout, 1)
	return nil
}

// LogoutAll revokes every refresh token of subjectID.
func (s *SessionService) LogoutAll(ctx context.Context, subjectID string) (int64, error) {
	n, err := s.store.RevokeAll(ctx, subjectID, models.RevokeReasonLogout)
	if err != nil {
		return 0, err
	}
	s.metrics.Revoked(ctx, models.RevokeReasonLogout, n)
	return n, nil
}

// RevokeSessions is the administrative variant of LogoutAll. Unknown
// subjects yield common.ErrorNotFound.
func (s *SessionService) RevokeSessions(ctx context.Context, subjectID string) (int64, error) {
	if _, err := s.directory.GetSubject(ctx, subjectID); err != nil {
		return 0, err
	}

	n, err := s.store.RevokeAll(ctx, subjectID, models.RevokeReasonAdmin)
	if err != nil {
		return 0, err
	}
	s.metrics.Revoked(ctx, models.RevokeReasonAdmin, n)
	s.logger.Info(ctx, "sessions revoked by admin", "user_id", subjectID, "revoked", n)
	return n, nil
}

func (s *SessionService) pair(access, refresh string, role models.Role) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.codec.AccessTokenTTL(),
		Role:         role,
	}
}

func refreshResult(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenReuseDetected):
		return metrics.ResultReuse
	case errors.Is(err, common.ErrSessionExpired):
		return metrics.ResultSessionExpired
	default:
		return metrics.ResultError
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
