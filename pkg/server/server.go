// Package server 本地网关: chi HTTP API + gRPC 健康检查
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"sealdrive/pkg/config"
	"sealdrive/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	HTTPAddr string
	GRPCAddr string // 空则不启动 gRPC
}

// Server 同时运行 HTTP 与 gRPC，任何一个退出都会带停另一个
type Server struct {
	cfg    Config
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
	log    *zap.Logger
}

func New(cfg Config, handler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
	if cfg.GRPCAddr != "" {
		s.grpc, s.health = NewGRPCServer(log)
	}
	return s
}

// Gateway 按配置组装完整网关 (路由 + 两个监听)
func Gateway(cfg config.ServerSettings, ops Operations, sess *session.Session, log *zap.Logger) *Server {
	return New(Config{HTTPAddr: cfg.HTTPAddr, GRPCAddr: cfg.GRPCAddr}, NewRouter(ops, sess, log), log)
}

// Run 阻塞直到 ctx 取消或某个监听失败
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	httpLis, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	g.Go(func() error {
		s.log.Info("HTTP gateway listening", zap.String("addr", httpLis.Addr().String()))
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.grpc != nil {
		grpcLis, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			_ = httpLis.Close()
			return err
		}
		g.Go(func() error {
			s.log.Info("gRPC health listening", zap.String("addr", grpcLis.Addr().String()))
			return s.grpc.Serve(grpcLis)
		})
	}

	// Graceful Shutdown
	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("shutting down gateway")
		if s.health != nil {
			s.health.Shutdown()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := s.http.Shutdown(shutdownCtx)
		if s.grpc != nil {
			s.grpc.GracefulStop()
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// SetServing 更新 gRPC 健康状态
func (s *Server) SetServing(serving bool) {
	if s.health == nil {
		return
	}
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}
