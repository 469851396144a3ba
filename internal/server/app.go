// Package server wires the tablescout backend together and runs it: the
// public REST API and the internal session RPC share one set of services and
// stop together on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"github.com/tablescout/tablescout/internal/cryptox"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/auth"
	"github.com/tablescout/tablescout/internal/server/config"
	"github.com/tablescout/tablescout/internal/server/metrics"
	"github.com/tablescout/tablescout/internal/server/ratelimit"
	"github.com/tablescout/tablescout/internal/server/refreshtokens"
	"github.com/tablescout/tablescout/internal/server/repositories/repomanager"
	"github.com/tablescout/tablescout/internal/server/rest"
	"github.com/tablescout/tablescout/internal/server/rest/handler"
	"github.com/tablescout/tablescout/internal/server/rest/middleware"
	"github.com/tablescout/tablescout/internal/server/services"

	gs "github.com/tablescout/tablescout/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	redis      redis.UniversalClient
	httpServer *rest.Server
	grpcServer *gs.GRPCServer
}

// NewApp opens the database, applies migrations and builds every service.
// The returned App owns the database and Redis connections.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	codec, err := auth.NewCodec(c, logger)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(repomanager.DriverName, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	var limiter services.LoginLimiter
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		limiter = ratelimit.NewLoginLimiter(app.redis, c.LoginMaxAttempts, c.LoginCooldownDuration)
	} else {
		logger.Warn(ctx, "REDIS_ADDR not set, login attempts are not limited")
	}

	// The global provider is a no-op until the process installs an SDK.
	sessionMetrics, err := metrics.NewSessions(otel.GetMeterProvider().Meter(metrics.MeterName))
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	store := refreshtokens.NewStore(db, rm, codec, c.RefreshTokenValidityDuration, logger)
	users := services.NewUserService(db, rm, cryptox.DefaultPasswordHasher)
	sessions := services.NewSessionService(db, rm, codec, store, users, users, limiter, sessionMetrics, logger)
	establishments := services.NewEstablishmentService(db, rm, sessions)

	cookie := handler.CookieConfig{
		Path:   rest.RefreshCookiePath,
		MaxAge: c.RefreshTokenValidityDuration,
		Secure: !c.TestMode,
	}
	router := rest.NewRouter(middleware.NewAuth(codec, logger), rest.Handlers{
		Auth:           handler.NewAuthHandler(sessions, users, cookie, logger),
		Establishments: handler.NewEstablishmentHandler(establishments, cookie, logger),
		Admin:          handler.NewAdminHandler(sessions, logger),
	}, logger)

	app.httpServer = rest.NewServer(c.EndpointAddrHTTP, router, logger)
	app.grpcServer = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, codec, sessions)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP and gRPC until a signal arrives or either server fails,
// then releases the connections.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server failed", "error", err)
			cancelFunc()
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.grpcServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "grpc server failed", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()
	app.close(ctx)
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close failed", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
