// Package memrepo is an in-memory RepositoryManager. It ignores the DBTX it
// is handed, so transactions provided by callers only affect ordering, not
// visibility. Each operation is atomic under a single mutex, which keeps the
// refresh token compare-and-swap semantics of the Postgres implementation.
package memrepo

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/dbx"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/repositories/establishments"
	"github.com/tablescout/tablescout/internal/server/repositories/refreshtokens"
	"github.com/tablescout/tablescout/internal/server/repositories/repomanager"
	"github.com/tablescout/tablescout/internal/server/repositories/users"
)

var _ repomanager.RepositoryManager = (*Manager)(nil)

type Manager struct {
	mu             sync.Mutex
	users          map[string]*models.User
	tokens         map[string]*models.RefreshToken // by id
	establishments []models.Establishment
}

func New() *Manager {
	return &Manager{
		users:  map[string]*models.User{},
		tokens: map[string]*models.RefreshToken{},
	}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Users(dbx.DBTX) users.Repository                   { return userRepo{m} }
func (m *Manager) RefreshTokens(dbx.DBTX) refreshtokens.Repository   { return tokenRepo{m} }
func (m *Manager) Establishments(dbx.DBTX) establishments.Repository { return establishmentRepo{m} }

// Tokens returns copies of every stored refresh token record of userID,
// oldest first.
func (m *Manager) Tokens(userID string) []models.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.RefreshToken
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, copyToken(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func copyToken(t *models.RefreshToken) models.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		v := *t.RevokedAt
		c.RevokedAt = &v
	}
	return c
}

type userRepo struct{ m *Manager }

func (r userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, u := range r.m.users {
		if u.Email == user.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stored := *user
	r.m.users[user.ID] = &stored
	return user, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, u := range r.m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r userRepo) UpdateRole(_ context.Context, id string, role models.Role) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Role = role
	return nil
}

type tokenRepo struct{ m *Manager }

func (r tokenRepo) Create(_ context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, t := range r.m.tokens {
		if t.TokenHash == token.TokenHash {
			return nil, common.ErrorAlreadyExists
		}
	}
	token.ID = uuid.NewString()
	stored := copyToken(token)
	stored.Token = ""
	r.m.tokens[token.ID] = &stored
	return token, nil
}

func (r tokenRepo) byHash(hash string) *models.RefreshToken {
	for _, t := range r.m.tokens {
		if t.TokenHash == hash {
			return t
		}
	}
	return nil
}

func (r tokenRepo) FindByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	t := r.byHash(hash)
	if t == nil {
		return nil, common.ErrorNotFound
	}
	c := copyToken(t)
	return &c, nil
}

func (r tokenRepo) FindActive(_ context.Context, hash string, now time.Time) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	t := r.byHash(hash)
	if t == nil || !t.Active(now) {
		return nil, common.ErrorNotFound
	}
	c := copyToken(t)
	return &c, nil
}

func (r tokenRepo) RevokeActive(_ context.Context, hash string, now time.Time, reason string) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	t := r.byHash(hash)
	if t == nil || !t.Active(now) {
		return nil, common.ErrorNotFound
	}
	revokedAt := now
	t.RevokedAt = &revokedAt
	t.RevokedReason = reason
	c := copyToken(t)
	return &c, nil
}

func (r tokenRepo) SetReplacedBy(_ context.Context, id, replacedBy string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	t, ok := r.m.tokens[id]
	if !ok {
		return common.ErrorNotFound
	}
	t.ReplacedBy = replacedBy
	return nil
}

func (r tokenRepo) RevokeAllForUser(_ context.Context, userID string, now time.Time, reason string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var n int64
	for _, t := range r.m.tokens {
		if t.UserID == userID && !t.Revoked() {
			revokedAt := now
			t.RevokedAt = &revokedAt
			t.RevokedReason = reason
			n++
		}
	}
	return n, nil
}

type establishmentRepo struct{ m *Manager }

func (r establishmentRepo) Create(_ context.Context, e *models.Establishment) (*models.Establishment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[e.OwnerID]; !ok {
		return nil, common.ErrorNotFound
	}
	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	r.m.establishments = append(r.m.establishments, *e)
	return e, nil
}

func (r establishmentRepo) ListByOwner(_ context.Context, ownerID string) ([]models.Establishment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []models.Establishment{}
	for _, e := range r.m.establishments {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}
