// Package grpc exposes the backend SyncService over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"
	"github.com/dmitrijs2005/fieldsync/internal/wire"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	wire.UnimplementedSyncServiceServer
	address string
	records services.RecordService
	uploads services.UploadService
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, rs services.RecordService, us services.UploadService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		records: rs,
		uploads: us,
	}
}

// Register builds a grpc.Server with the server's interceptors and the sync
// service attached.
func (s *GRPCServer) Register(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.loggingInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)
	wire.RegisterSyncServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is cancelled,
// then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.Register()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
