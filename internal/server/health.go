package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check reports whether one dependency of the daemon is usable.
type Check func(ctx context.Context) error

// HealthServer exposes grpc.health.v1 for the watch daemon. Each named check is
// served as its own service; the empty service name is SERVING only when all pass.
type HealthServer struct {
	addr     string
	interval time.Duration
	logger   *slog.Logger

	grpc *grpc.Server
	hs   *health.Server

	mu     sync.Mutex
	checks map[string]Check
	lis    net.Listener
}

func NewHealthServer(addr string, interval time.Duration, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	g := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(g, hs)
	// Reflection for grpcurl
	reflection.Register(g)
	return &HealthServer{
		addr:     addr,
		interval: interval,
		logger:   logger,
		grpc:     g,
		hs:       hs,
		checks:   map[string]Check{},
	}
}

func (s *HealthServer) AddCheck(name string, c Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = c
}

// Listen binds the address; Addr is valid afterwards.
func (s *HealthServer) Listen() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()
	return nil
}

func (s *HealthServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Run serves until ctx ends, re-evaluating checks every interval.
func (s *HealthServer) Run(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			s.logger.Error("health listen failed", "addr", s.addr, "error", err)
			return err
		}
	}
	s.Evaluate(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gRPC health serving", "addr", s.Addr().String())
		errCh <- s.grpc.Serve(s.lis)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.hs.Shutdown()
			s.grpc.GracefulStop()
			return nil
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return err
		case <-ticker.C:
			s.Evaluate(ctx)
		}
	}
}

// Evaluate runs every check once and publishes the statuses.
func (s *HealthServer) Evaluate(ctx context.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.checks))
	for n := range s.checks {
		names = append(names, n)
	}
	checks := make(map[string]Check, len(s.checks))
	for n, c := range s.checks {
		checks[n] = c
	}
	s.mu.Unlock()
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, n := range names {
		st := healthpb.HealthCheckResponse_SERVING
		if err := checks[n](ctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
			s.logger.Warn("health check failing", "check", n, "error", err)
		}
		s.hs.SetServingStatus(n, st)
	}
	s.hs.SetServingStatus("", overall)
}
