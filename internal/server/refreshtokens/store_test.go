package refreshtokens

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/cryptox"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/repositories/memrepo"
	_ "modernc.org/sqlite"
)

type randIssuer struct{}

func (randIssuer) IssueRefreshToken() (string, error) {
	return common.MakeRandHexString(common.RefreshTokenBytes)
}

type failingIssuer struct{}

func (failingIssuer) IssueRefreshToken() (string, error) {
	return "", errors.New("entropy exhausted")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	store *Store
	repos *memrepo.Manager
	logs  *lockedBuffer
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		repos: memrepo.New(),
		logs:  &lockedBuffer{},
		now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store = NewStore(db, f.repos, randIssuer{}, 30*24*time.Hour, logging.NewJSON(f.logs, "debug"))
	f.store.now = func() time.Time { return f.now }
	return f
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	tok, err := f.store.Create(context.Background(), "u1")
	require.NoError(t, err)

	assert.Len(t, tok.Token, 64)
	assert.Equal(t, cryptox.HashToken(tok.Token), tok.TokenHash)
	assert.NotEqual(t, tok.Token, tok.TokenHash)
	assert.Equal(t, f.now.Add(30*24*time.Hour), tok.ExpiresAt)

	stored := f.repos.Tokens("u1")
	require.Len(t, stored, 1)
	assert.Empty(t, stored[0].Token)
	assert.Equal(t, tok.TokenHash, stored[0].TokenHash)
}

func TestCreate_IssuerError(t *testing.T) {
	f := newFixture(t)
	f.store.issuer = failingIssuer{}

	_, err := f.store.Create(context.Background(), "u1")
	require.ErrorContains(t, err, "entropy exhausted")
	assert.Empty(t, f.repos.Tokens("u1"))
}

func TestFindActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.store.Create(ctx, "u1")
	require.NoError(t, err)

	got, err := f.store.FindActive(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)

	_, err = f.store.FindActive(ctx, "")
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.store.FindActive(ctx, tok.TokenHash)
	require.ErrorIs(t, err, common.ErrorNotFound, "the stored hash is not a usable token")

	f.now = tok.ExpiresAt
	_, err = f.store.FindActive(ctx, tok.Token)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRotate_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.store.Create(ctx, "u1")
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	next, err := f.store.Rotate(ctx, first.Token)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, next.Token)
	assert.Equal(t, "u1", next.UserID)
	assert.Equal(t, f.now.Add(30*24*time.Hour), next.ExpiresAt)

	stored := f.repos.Tokens("u1")
	require.Len(t, stored, 2)
	old, cur := stored[0], stored[1]
	require.Equal(t, first.ID, old.ID)
	require.NotNil(t, old.RevokedAt)
	assert.Equal(t, models.RevokeReasonRotated, old.RevokedReason)
	assert.Equal(t, next.ID, old.ReplacedBy)
	assert.Nil(t, cur.RevokedAt)

	_, err = f.store.FindActive(ctx, first.Token)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRotate_ReuseRevokesFamily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.store.Create(ctx, "u1")
	require.NoError(t, err)
	other, err := f.store.Create(ctx, "u1")
	require.NoError(t, err)
	unrelated, err := f.store.Create(ctx, "u2")
	require.NoError(t, err)

	b, err := f.store.Rotate(ctx, a.Token)
	require.NoError(t, err)

	_, err = f.store.Rotate(ctx, a.Token)
	require.ErrorIs(t, err, common.ErrTokenReuseDetected)

	for _, v := range []string{b.Token, other.Token} {
		_, err = f.store.FindActive(ctx, v)
		require.ErrorIs(t, err, common.ErrorNotFound)
	}
	_, err = f.store.Rotate(ctx, b.Token)
	require.ErrorIs(t, err, common.ErrSessionExpired, "tokens revoked for reuse are plain dead")

	_, err = f.store.FindActive(ctx, unrelated.Token)
	require.NoError(t, err, "other subjects are unaffected")

	assert.Contains(t, f.logs.String(), "security event: refresh token reuse")
	assert.Contains(t, f.logs.String(), `"user_id":"u1"`)
}

func TestRotate_SessionExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.Rotate(ctx, "deadbeef")
		require.ErrorIs(t, err, common.ErrSessionExpired)
	})

	t.Run("empty", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.Rotate(ctx, "")
		require.ErrorIs(t, err, common.ErrSessionExpired)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		tok, err := f.store.Create(ctx, "u1")
		require.NoError(t, err)

		f.now = tok.ExpiresAt.Add(time.Second)
		_, err = f.store.Rotate(ctx, tok.Token)
		require.ErrorIs(t, err, common.ErrSessionExpired)
		assert.NotErrorIs(t, err, common.ErrTokenReuseDetected)
	})

	t.Run("logged out", func(t *testing.T) {
		f := newFixture(t)
		tok, err := f.store.Create(ctx, "u1")
		require.NoError(t, err)
		sibling, err := f.store.Create(ctx, "u1")
		require.NoError(t, err)

		require.NoError(t, f.store.Revoke(ctx, tok.Token, models.RevokeReasonLogout))

		_, err = f.store.Rotate(ctx, tok.Token)
		require.ErrorIs(t, err, common.ErrSessionExpired)

		_, err = f.store.FindActive(ctx, sibling.Token)
		require.NoError(t, err, "logout does not trigger family revocation")
		assert.NotContains(t, f.logs.String(), "security event")
	})
}

func TestRotate_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.store.Create(ctx, "u1")
	require.NoError(t, err)

	const n = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		failures []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.Rotate(ctx, tok.Token)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	require.Len(t, failures, n-1)
	for _, err := range failures {
		assert.True(t,
			errors.Is(err, common.ErrTokenReuseDetected) || errors.Is(err, common.ErrSessionExpired),
			"unexpected error: %v", err)
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.store.Create(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, f.store.Revoke(ctx, tok.Token, models.RevokeReasonLogout))
	require.ErrorIs(t, f.store.Revoke(ctx, tok.Token, models.RevokeReasonLogout), common.ErrorNotFound)
	require.ErrorIs(t, f.store.Revoke(ctx, "", models.RevokeReasonLogout), common.ErrorNotFound)

	stored := f.repos.Tokens("u1")
	require.Len(t, stored, 1)
	assert.Equal(t, models.RevokeReasonLogout, stored[0].RevokedReason)
}

func TestRevokeAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.store.Create(ctx, "u1")
		require.NoError(t, err)
	}
	keep, err := f.store.Create(ctx, "u2")
	require.NoError(t, err)

	n, err := f.store.RevokeAll(ctx, "u1", models.RevokeReasonAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = f.store.RevokeAll(ctx, "u1", models.RevokeReasonAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = f.store.FindActive(ctx, keep.Token)
	require.NoError(t, err)
}
