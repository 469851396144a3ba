package grpc

import (
	"context"
	"errors"
	"slices"

	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/server/auth"
	"github.com/tablescout/tablescout/internal/server/models"
	"github.com/tablescout/tablescout/internal/server/rest/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// authorizationKey is the metadata key carrying "Bearer <token>".
const authorizationKey = "authorization"

// methodRoles lists the methods that need an access token and the roles
// allowed to call them. Methods not listed are public.
var methodRoles = map[string][]models.Role{
	RevokeSessionsMethod: {models.RoleAdmin},
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	roles, protected := methodRoles[info.FullMethod]
	if !protected {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationKey); len(values) > 0 {
			token = middleware.BearerToken(values[0])
		}
	}
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.verifier.VerifyAccessToken(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	if !slices.Contains(roles, claims.Role) {
		s.logger.Warn(ctx, "rpc forbidden", "method", info.FullMethod, "user_id", claims.SubjectID, "role", claims.Role)
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	}

	return handler(auth.ContextWithClaims(ctx, claims), req)
}
