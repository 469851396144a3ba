package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/tablescout/tablescout/internal/client/client"
	"github.com/tablescout/tablescout/internal/client/config"
	"github.com/tablescout/tablescout/internal/client/session"
	"github.com/tablescout/tablescout/internal/filex"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	session *session.Session
	api     client.Client
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp opens the local session database and builds the API client on top
// of the restored session.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := filex.EnsureParentDir(c.SessionDBPath); err != nil {
		return nil, err
	}

	db, repo, err := client.InitDatabase(ctx, c.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	s, err := session.Open(ctx, repo)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &App{
		config:  c,
		db:      db,
		session: s,
		api:     client.NewHTTPClient(c.ServerBaseURL, c.RequestTimeout, s),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	runREPL(ctx, a, a.status, a.reader, a.out)
}

// Close releases the session and the local database. The saved pair
// survives for the next run.
func (a *App) Close() error {
	if err := a.session.Close(); err != nil {
		return err
	}
	return a.db.Close()
}

func (a *App) isLoggedIn() bool {
	return a.session.Authenticated()
}

func (a *App) status() string {
	if a.isLoggedIn() {
		return "signed in"
	}
	return "anonymous"
}
