// Package client 连接正在运行的 sd-gateway (gRPC 健康检查)
package client

import (
	"context"
	"fmt"
	"time"

	"sealdrive/pkg/server"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// GatewayClient 网关 gRPC 连接
type GatewayClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// New 只创建连接对象，不等待连接就绪
// extra 用于测试注入 dialer
func New(addr string, extra ...grpc.DialOption) (*GatewayClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	// 网络不通不会在这里报错，只有地址格式等配置错误
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}
	return &GatewayClient{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Serving 网关服务是否处于 SERVING
func (c *GatewayClient) Serving(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// Close 关闭底层连接
func (c *GatewayClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
