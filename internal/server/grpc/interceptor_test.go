package grpc

import (
	"context"
	"fmt"
	"testing"

	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/auth"
	"github.com/tablescout/tablescout/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type verifierFunc func(string) (*auth.Claims, error)

func (f verifierFunc) VerifyAccessToken(token string) (*auth.Claims, error) { return f(token) }

// tokens are "good-<role>"; anything else is rejected
func roleVerifier(token string) (*auth.Claims, error) {
	switch token {
	case "good-admin":
		return &auth.Claims{SubjectID: "admin-1", Role: models.RoleAdmin}, nil
	case "good-user":
		return &auth.Claims{SubjectID: "user-1", Role: models.RoleUser}, nil
	case "expired":
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
	}
	return nil, common.ErrInvalidToken
}

func newTestServer() *GRPCServer {
	return NewGRPCServer("", logging.Nop(), verifierFunc(roleVerifier), nil)
}

func withAuth(value string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(authorizationKey, value))
}

func TestInterceptor_PublicMethodAllowsWithoutToken(t *testing.T) {
	s := newTestServer()

	info := &grpc.UnaryServerInfo{FullMethod: IntrospectMethod}
	handlerCalled := false

	h := func(ctx context.Context, req any) (any, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_ProtectedMethod(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		wantCode codes.Code
		wantMsg  string
	}{
		{"no metadata", context.Background(), codes.Unauthenticated, "missing token"},
		{"wrong scheme", withAuth("Basic good-admin"), codes.Unauthenticated, "missing token"},
		{"invalid token", withAuth("Bearer junk"), codes.Unauthenticated, "unauthorized"},
		{"expired token", withAuth("Bearer expired"), codes.Unauthenticated, "token expired"},
		{"wrong role", withAuth("Bearer good-user"), codes.PermissionDenied, "forbidden"},
	}

	info := &grpc.UnaryServerInfo{FullMethod: RevokeSessionsMethod}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			h := func(ctx context.Context, req any) (any, error) {
				t.Fatal("handler should not be called")
				return nil, nil
			}

			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, h)
			if status.Code(err) != tt.wantCode {
				t.Fatalf("expected %v, got %v", tt.wantCode, status.Code(err))
			}
			if status.Convert(err).Message() != tt.wantMsg {
				t.Fatalf("expected %q, got %q", tt.wantMsg, status.Convert(err).Message())
			}
		})
	}
}

func TestInterceptor_AdminPutsClaimsInContext(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: RevokeSessionsMethod}

	var got *auth.Claims
	h := func(ctx context.Context, req any) (any, error) {
		got, _ = auth.ClaimsFromContext(ctx)
		return nil, nil
	}

	if _, err := s.accessTokenInterceptor(withAuth("Bearer good-admin"), nil, info, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.SubjectID != "admin-1" {
		t.Fatalf("claims not propagated: %+v", got)
	}
}
