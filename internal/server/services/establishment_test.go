package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/dbx"
	"github.com/tablescout/tablescout/internal/server/models"
)

func TestEstablishmentRegister_PromotesUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "a@example.com", "pw")

	login, err := h.sessions.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, h.claims(t, login).Role)

	e, pair, err := h.establishments.Register(ctx, u.ID, &models.Establishment{Name: "Cafe", Address: "Main 1"})
	require.NoError(t, err)
	require.NotNil(t, pair, "promotion returns a reissued pair")
	assert.Equal(t, u.ID, e.OwnerID)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, models.RolePartner, pair.Role)
	assert.Equal(t, models.RolePartner, h.claims(t, pair).Role)

	// The pre-promotion refresh token still works and now yields partner.
	next, err := h.sessions.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, models.RolePartner, h.claims(t, next).Role)

	// A second venue needs no role change.
	_, pair2, err := h.establishments.Register(ctx, u.ID, &models.Establishment{Name: "Bar", Address: "Main 2"})
	require.NoError(t, err)
	assert.Nil(t, pair2)

	list, err := h.establishments.ListMine(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Cafe", list[0].Name)
}

func TestEstablishmentRegister_AdminKeepsRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "root@example.com", "pw")
	require.NoError(t, h.repos.Users(nil).UpdateRole(ctx, u.ID, models.RoleAdmin))

	_, pair, err := h.establishments.Register(ctx, u.ID, &models.Establishment{Name: "HQ", Address: "x"})
	require.NoError(t, err)
	assert.Nil(t, pair)

	stored, err := h.users.GetSubject(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, stored.Role)
}

func TestEstablishmentRegister_UnknownOwner(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.establishments.Register(context.Background(), "ghost", &models.Establishment{Name: "x"})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

// promoteFirst changes the owner's role just before the wrapped role change
// starts, the way a concurrent admin action would.
type promoteFirst struct {
	h    *harness
	role models.Role
	next RoleChanger
}

func (p promoteFirst) ChangeRole(ctx context.Context, ownerID string, role models.Role, mutate func(context.Context, dbx.DBTX) error) (*TokenPair, error) {
	if err := p.h.repos.Users(nil).UpdateRole(ctx, ownerID, p.role); err != nil {
		return nil, err
	}
	return p.next.ChangeRole(ctx, ownerID, role, mutate)
}

func TestEstablishmentRegister_ConcurrentPromotionNotDemoted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "a@example.com", "pw")

	svc := NewEstablishmentService(h.db, h.repos, promoteFirst{h: h, role: models.RoleAdmin, next: h.sessions})

	e, pair, err := svc.Register(ctx, u.ID, &models.Establishment{Name: "Cafe", Address: "Main 1"})
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Equal(t, u.ID, e.OwnerID)

	stored, err := h.users.GetSubject(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, stored.Role)

	list, err := svc.ListMine(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 0, h.activeTokens(u.ID))
}
