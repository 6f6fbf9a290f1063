package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vidunsterling-afk/itroom-sub000/internal/obs"
)

// HealthReporter publishes the readiness probe through the standard grpc.health.v1 service,
// both for the overall server ("") and under the service name.
type HealthReporter struct {
	srv   *health.Server
	probe ReadyProbe
}

func NewHealthReporter(probe ReadyProbe) *HealthReporter {
	h := &HealthReporter{srv: health.NewServer(), probe: probe}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// NewGRPCServer returns a server exposing only the health service.
func NewGRPCServer(h *HealthReporter, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.srv)
	return s
}

// Refresh runs the probe once and updates the served status.
func (h *HealthReporter) Refresh(ctx context.Context) bool {
	if err := checkReady(ctx, h.probe); err != nil {
		obs.Logger().WarnContext(ctx, "readiness_probe_failed", "error", err.Error())
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Run refreshes the status every interval until ctx is done, then marks everything
// NOT_SERVING so watchers see the shutdown.
func (h *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

func (h *HealthReporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(serviceName, status)
}
