package database

import (
	"fmt"
	"net"

	"social_chat_service/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer grpc server exposing the standard health service
type HealthServer struct {
	Server   *grpc.Server
	Health   *health.Server
	listener net.Listener
}

// NewHealthServer listen on addr and register grpc health service
func NewHealthServer(addr, serviceName string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	h.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &HealthServer{Server: s, Health: h, listener: lis}, nil
}

// Addr listening address
func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// Serve block until Stop
func (h *HealthServer) Serve() {
	logger.Log.Info("grpc health listening", zap.String("addr", h.Addr()))
	if err := h.Server.Serve(h.listener); err != nil {
		logger.Log.Error("grpc health stopped", zap.Error(err))
	}
}

// Stop mark not serving and stop server
func (h *HealthServer) Stop() {
	h.Health.Shutdown()
	h.Server.GracefulStop()
}
