// Package session holds the client's current token pair. A Session is
// created when the application starts, handed to the HTTP client, and closed
// on shutdown; there is no package-level token state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

// ErrClosed is returned by Set after Close.
var ErrClosed = errors.New("session closed")

// Tokens is one access/refresh pair as issued by the server.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Store persists the pair between runs. metadata.SQLiteRepository
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Session is safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	tokens Tokens
	store  Store
	closed bool
}

// New returns an empty, memory-only session.
func New() *Session {
	return &Session{}
}

// Open returns a session backed by store, preloaded with the pair saved by
// a previous run (if any).
func Open(ctx context.Context, store Store) (*Session, error) {
	access, err := store.Get(ctx, accessTokenKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	refresh, err := store.Get(ctx, refreshTokenKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	s := &Session{store: store}
	// a half-saved pair is useless
	if len(access) > 0 && len(refresh) > 0 {
		s.tokens = Tokens{AccessToken: string(access), RefreshToken: string(refresh)}
	}
	return s, nil
}

func (s *Session) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Authenticated reports whether a refresh token is held, i.e. whether
// authenticated calls can be attempted.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.RefreshToken != ""
}

// Set replaces the pair. Both halves are always replaced together.
func (s *Session) Set(ctx context.Context, t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.tokens = t

	if s.store == nil {
		return nil
	}
	if err := s.store.Set(ctx, accessTokenKey, []byte(t.AccessToken)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := s.store.Set(ctx, refreshTokenKey, []byte(t.RefreshToken)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear forgets the pair, including its persisted copy.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = Tokens{}
	if s.store == nil || s.closed {
		return nil
	}
	return errors.Join(
		s.store.Delete(ctx, accessTokenKey),
		s.store.Delete(ctx, refreshTokenKey),
	)
}

// Close drops the in-memory pair and detaches the store. The persisted copy
// is kept for the next run.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = Tokens{}
	s.store = nil
	s.closed = true
	return nil
}
