package grpc

import (
	"context"
	"fmt"
	"net"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server 只承载标准健康检查服务，给负载均衡/编排探活用。
type Server struct {
	addr   string
	srv    *gogrpc.Server
	health *health.Server
	lis    net.Listener
}

func NewServer(addr string) *Server {
	srv := gogrpc.NewServer(serverTraceOptions()...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{addr: addr, srv: srv, health: hs}
}

// Listen 绑定端口；和 Serve 分开，测试里可以先拿到实际地址。
func (s *Server) Listen() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.addr, err)
	}
	s.lis = lis
	return nil
}

func (s *Server) Addr() string {
	if s.lis == nil {
		return s.addr
	}
	return s.lis.Addr().String()
}

// Serve 阻塞直到 Stop。
func (s *Server) Serve() error {
	if s.lis == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	return s.srv.Serve(s.lis)
}

// SetServing 切换整体健康状态。
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Stop 优雅停止，ctx 到期后强制停止。
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
}

// DialHealth 建立到健康检查服务的连接，自动带 trace 元数据。
func DialHealth(addr string) (*gogrpc.ClientConn, healthpb.HealthClient, error) {
	opts := []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithChainUnaryInterceptor(clientTrace()),
	}
	conn, err := gogrpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial health service failed: %w", err)
	}
	return conn, healthpb.NewHealthClient(conn), nil
}
