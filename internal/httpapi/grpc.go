package httpapi

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"agrolink.org/internal/obs"
)

const grpcServiceName = "agrolink-api"

// GRPCHealthServer exposes the standard gRPC health service, driven by the
// same readiness probe as /readyz. Used by infrastructure-level checks.
type GRPCHealthServer struct {
	server *grpc.Server
	health *health.Server
	probe  ReadyProbe
}

// NewGRPCHealthServer creates the gRPC wrapper around the readiness probe.
func NewGRPCHealthServer(probe ReadyProbe) *GRPCHealthServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	return &GRPCHealthServer{server: s, health: h, probe: probe}
}

// Serve listens on lis and keeps the reported health status in sync with the
// readiness probe until ctx ends.
func (g *GRPCHealthServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		g.refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				g.server.GracefulStop()
				return
			case <-ticker.C:
				g.refresh(ctx)
			}
		}
	}()
	return g.server.Serve(lis)
}

func (g *GRPCHealthServer) refresh(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	status := healthpb.HealthCheckResponse_SERVING
	if err := g.probe.check(checkCtx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		obs.SetReady(false)
	} else {
		obs.SetReady(true)
	}
	g.health.SetServingStatus(grpcServiceName, status)
	g.health.SetServingStatus("", status)
}
