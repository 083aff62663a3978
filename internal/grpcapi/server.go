// Package grpcapi exposes the standard gRPC health service so load
// balancers and orchestrators can check the ledger without HTTP.
package grpcapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// LedgerService is the health service name reported for the event ledger.
const LedgerService = "labtrack.v1.Ledger"

// Checker reports whether the ledger is consistent enough to serve.
type Checker interface {
	Verify() error
}

type Config struct {
	Addr string

	// CheckInterval is how often Checker runs; zero disables it.
	CheckInterval time.Duration
}

type Server struct {
	cfg     Config
	grpc    *grpc.Server
	health  *health.Server
	checker Checker
	logger  *slog.Logger
}

func NewServer(cfg Config, checker Checker, logger *slog.Logger) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(logger)))
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(LedgerService, healthpb.HealthCheckResponse_SERVING)

	return &Server{cfg: cfg, grpc: gs, health: hs, checker: checker, logger: logger}
}

// Serve listens on cfg.Addr and blocks until Stop.
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on an existing listener and blocks until Stop.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	if s.checker != nil && s.cfg.CheckInterval > 0 {
		go s.watch(ctx)
	}
	s.logger.Info("grpc server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop flips every service to NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Check runs the checker once and publishes the result.
func (s *Server) Check() {
	if s.checker == nil {
		return
	}
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.checker.Verify(); err != nil {
		s.logger.Error("ledger verification failed", "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(LedgerService, st)
}

func (s *Server) watch(ctx context.Context) {
	t := time.NewTicker(s.cfg.CheckInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Check()
		}
	}
}

func unaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}
