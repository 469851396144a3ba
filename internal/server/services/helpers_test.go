package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tablescout/tablescout/internal/cryptox"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/auth"
	"github.com/tablescout/tablescout/internal/server/config"
	"github.com/tablescout/tablescout/internal/server/metrics"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/refreshtokens"
	"github.com/tablescout/tablescout/internal/server/repositories/memrepo"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	_ "modernc.org/sqlite"
)

var testHasher = cryptox.PasswordHasher{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type fakeLimiter struct {
	checkErr error
	failErr  error
	resetErr error

	fails  int
	resets int
}

func (f *fakeLimiter) Check(context.Context, string) error { return f.checkErr }

func (f *fakeLimiter) Fail(context.Context, string) error {
	f.fails++
	return f.failErr
}

func (f *fakeLimiter) Reset(context.Context, string) error {
	f.resets++
	return f.resetErr
}

type harness struct {
	db             *sql.DB
	repos          *memrepo.Manager
	codec          *auth.Codec
	store          *refreshtokens.Store
	users          *UserService
	sessions       *SessionService
	establishments *EstablishmentService
	limiter        *fakeLimiter
	reader         *sdkmetric.ManualReader
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "0123456789abcdef0123456789abcdef"

	logger := logging.Nop()
	codec, err := auth.NewCodec(cfg, logger)
	require.NoError(t, err)

	h := &harness{db: db, repos: memrepo.New(), codec: codec, limiter: &fakeLimiter{}}

	h.reader = sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	m, err := metrics.NewSessions(provider.Meter("services-test"))
	require.NoError(t, err)

	h.store = refreshtokens.NewStore(db, h.repos, codec, cfg.RefreshTokenValidityDuration, logger)
	h.users = NewUserService(db, h.repos, testHasher)
	h.sessions = NewSessionService(db, h.repos, codec, h.store, h.users, h.users, h.limiter, m, logger)
	h.establishments = NewEstablishmentService(db, h.repos, h.sessions)
	return h
}

func (h *harness) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := h.users.Register(context.Background(), email, password)
	require.NoError(t, err)
	return u
}

func (h *harness) claims(t *testing.T, pair *TokenPair) *auth.Claims {
	t.Helper()
	c, err := h.codec.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	return c
}

func (h *harness) activeTokens(userID string) int {
	n := 0
	now := time.Now()
	for _, tok := range h.repos.Tokens(userID) {
		if tok.Active(now) {
			n++
		}
	}
	return n
}
