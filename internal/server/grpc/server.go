// Package grpc serves the internal session RPC used by other tablescout
// tiers: access token introspection and administrative session revocation.
package grpc

import (
	"context"
	"net"

	"github.com/tablescout/tablescout/internal/logging"
	"github.com/tablescout/tablescout/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TokenVerifier is implemented by *auth.Codec.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// SessionRevoker is implemented by *services.SessionService.
type SessionRevoker interface {
	RevokeSessions(ctx context.Context, subjectID string) (int64, error)
}

type GRPCServer struct {
	address  string
	verifier TokenVerifier
	sessions SessionRevoker
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, verifier TokenVerifier, sessions SessionRevoker) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		verifier: verifier,
		sessions: sessions,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	srv.RegisterService(&sessionsServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(SessionsServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}
