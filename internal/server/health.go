package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthProbe serves the standard gRPC health service for orchestrators.
type HealthProbe struct {
	grpc     *grpc.Server
	health   *health.Server
	ping     func(ctx context.Context) error
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewHealthProbe registers the health service. When ping is set, the overall
// status follows it every interval.
func NewHealthProbe(ping func(ctx context.Context) error, interval time.Duration, logger *slog.Logger) *HealthProbe {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	// empty service name is the overall server health
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &HealthProbe{
		grpc:     gs,
		health:   hs,
		ping:     ping,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Serve blocks on lis until Shutdown.
func (p *HealthProbe) Serve(lis net.Listener) error {
	if p.ping != nil {
		go p.watch()
	}
	p.logger.Info("grpc.health.listen", "addr", lis.Addr().String())
	if err := p.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

func (p *HealthProbe) watch() {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	last := grpc_health_v1.HealthCheckResponse_SERVING
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval/2)
			status := grpc_health_v1.HealthCheckResponse_SERVING
			if err := p.ping(ctx); err != nil {
				status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			}
			cancel()
			if status != last {
				p.logger.Warn("grpc.health.changed", "status", status.String())
				last = status
			}
			p.health.SetServingStatus("", status)
		}
	}
}

// Shutdown reports NOT_SERVING and stops the listener.
func (p *HealthProbe) Shutdown() {
	select {
	case <-p.stop:
		return
	default:
		close(p.stop)
	}
	p.health.Shutdown()
	p.grpc.GracefulStop()
}
