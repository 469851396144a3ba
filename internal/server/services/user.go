package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/cryptox"
	"github.com/tablescout/tablescout/internal/dbx"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/repositories/repomanager"
)

// UserService owns user accounts: registration, credential checks and
// lookups. It implements CredentialVerifier and SubjectDirectory.
type UserService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(db dbx.DBTX, m repomanager.RepositoryManager, hasher cryptox.PasswordHasher) *UserService {
	return &UserService{db: db, repomanager: m, hasher: hasher}
}

// Register creates a user with role "user". A taken email yields
// common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Email: normalizeEmail(email), PasswordHash: hash, Role: models.RoleUser}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// VerifyCredentials returns the user for a matching email/password pair.
// For unknown emails a dummy hash is still checked so both failure paths
// take about the same time.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = s.hasher.Verify(password, s.dummy())
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}

// GetSubject returns the current record of user id.
func (s *UserService) GetSubject(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("tablescout-dummy-password")
	})
	return s.dummyHash
}
