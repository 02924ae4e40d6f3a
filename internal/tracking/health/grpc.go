package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the ledger API.
const ServiceName = "ecosetu.ledger"

// GRPCServer mirrors the monitor's status over the standard gRPC health protocol.
type GRPCServer struct {
	monitor  *Monitor
	port     int
	interval time.Duration
	server   *grpc.Server
	health   *grpchealth.Server
}

func NewGRPCServer(monitor *Monitor, port int) *GRPCServer {
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCServer{
		monitor:  monitor,
		port:     port,
		interval: 15 * time.Second,
		server:   srv,
		health:   hs,
	}
}

// Sync copies the monitor's current status into the gRPC health server.
func (g *GRPCServer) Sync(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if g.monitor.CheckHealth(ctx).SystemStatus == StatusCritical {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
}

// Start listens on the configured port and serves until Stop. Status is
// re-synced from the monitor until ctx is cancelled.
func (g *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("failed to listen for grpc health: %w", err)
	}
	return g.Serve(ctx, lis)
}

// Serve is Start on an existing listener.
func (g *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	g.Sync(ctx)
	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Sync(ctx)
			}
		}
	}()
	return g.server.Serve(lis)
}

// Stop marks the service as not serving and drains in-flight RPCs.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
