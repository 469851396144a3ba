package grpc

import (
	"context"
	"errors"

	"github.com/tablescout/tablescout/internal/common"
	"github.com/tablescout/tablescout/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SessionsServiceName is the fully qualified name of the session RPC service.
const SessionsServiceName = "tablescout.auth.v1.Sessions"

const (
	IntrospectMethod     = "/" + SessionsServiceName + "/Introspect"
	RevokeSessionsMethod = "/" + SessionsServiceName + "/RevokeSessions"
)

// SessionsServer is the server API of the Sessions service. Messages are
// protobuf well-known types so no generated code is required.
type SessionsServer interface {
	// Introspect reports whether an access token is valid and, if so, whose it is.
	Introspect(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
	// RevokeSessions revokes every refresh token of a user. Admin only.
	RevokeSessions(ctx context.Context, userID *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
}

var sessionsServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionsServiceName,
	HandlerType: (*SessionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Introspect", Handler: introspectHandler},
		{MethodName: "RevokeSessions", Handler: revokeSessionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tablescout/auth/v1/sessions.proto",
}

func introspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionsServer).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IntrospectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionsServer).Introspect(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func revokeSessionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionsServer).RevokeSessions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RevokeSessionsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionsServer).RevokeSessions(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Introspect never fails for a bad token; it answers active=false instead.
func (s *GRPCServer) Introspect(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	claims, err := s.verifier.VerifyAccessToken(req.GetValue())
	if err != nil {
		s.logger.Debug(ctx, "introspection rejected token", "error", err)
		return structpb.NewStruct(map[string]any{"active": false})
	}

	fields := map[string]any{
		"active":    true,
		"subjectId": claims.SubjectID,
		"email":     claims.Email,
		"role":      claims.Role.String(),
	}
	if claims.ExpiresAt != nil {
		fields["expiresAt"] = float64(claims.ExpiresAt.Unix())
	}
	return structpb.NewStruct(fields)
}

func (s *GRPCServer) RevokeSessions(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}

	n, err := s.sessions.RevokeSessions(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		s.logger.Error(ctx, "revoke sessions failed", "user_id", req.GetValue(), "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		s.logger.Info(ctx, "admin revoked sessions", "admin_id", claims.SubjectID, "user_id", req.GetValue(), "revoked", n)
	}
	return wrapperspb.Int64(n), nil
}

// SessionsClient calls the Sessions service.
type SessionsClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionsClient(cc grpc.ClientConnInterface) *SessionsClient {
	return &SessionsClient{cc: cc}
}

func (c *SessionsClient) Introspect(ctx context.Context, token string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, IntrospectMethod, wrapperspb.String(token), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionsClient) RevokeSessions(ctx context.Context, userID string, opts ...grpc.CallOption) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, RevokeSessionsMethod, wrapperspb.String(userID), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
