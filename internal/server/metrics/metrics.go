// Package metrics records session lifecycle counters through an
// OpenTelemetry meter. A nil *Sessions is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MeterName = "github.com/tablescout/tablescout/sessions"

var ErrNilMeter = errors.New("nil meter")

// Outcome labels.
const (
	ResultOK                 = "ok"
	ResultInvalidCredentials = "invalid_credentials"
	ResultThrottled          = "throttled"
	ResultSessionExpired     = "session_expired"
	ResultReuse              = "reuse"
	ResultError              = "error"
)

type Sessions struct {
	logins      metric.Int64Counter
	refreshes   metric.Int64Counter
	reuse       metric.Int64Counter
	revocations metric.Int64Counter
}

func NewSessions(meter metric.Meter) (*Sessions, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	logins, err := meter.Int64Counter("tablescout_logins_total",
		metric.WithDescription("Login attempts by result."))
	if err != nil {
		return nil, fmt.Errorf("create logins counter: %w", err)
	}
	refreshes, err := meter.Int64Counter("tablescout_refreshes_total",
		metric.WithDescription("Refresh token rotations by result."))
	if err != nil {
		return nil, fmt.Errorf("create refreshes counter: %w", err)
	}
	reuse, err := meter.Int64Counter("tablescout_refresh_reuse_total",
		metric.WithDescription("Presentations of an already rotated refresh token."))
	if err != nil {
		return nil, fmt.Errorf("create reuse counter: %w", err)
	}
	revocations, err := meter.Int64Counter("tablescout_sessions_revoked_total",
		metric.WithDescription("Refresh tokens revoked, by reason."))
	if err != nil {
		return nil, fmt.Errorf("create revocations counter: %w", err)
	}

	return &Sessions{
		logins:      logins,
		refreshes:   refreshes,
		reuse:       reuse,
		revocations: revocations,
	}, nil
}

func (s *Sessions) Login(ctx context.Context, result string) {
	if s == nil {
		return
	}
	s.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Refresh counts a rotation attempt. A reuse result also bumps the
// dedicated reuse counter.
func (s *Sessions) Refresh(ctx context.Context, result string) {
	if s == nil {
		return
	}
	s.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	if result == ResultReuse {
		s.reuse.Add(ctx, 1)
	}
}

func (s *Sessions) Revoked(ctx context.Context, reason string, n int64) {
	if s == nil || n <= 0 {
		return
	}
	s.revocations.Add(ctx, n, metric.WithAttributes(attribute.String("reason", reason)))
}
