package server

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// =============================================================================
// 1. Logging Interceptor (结构化日志)
// =============================================================================

// UnaryLoggingInterceptor 拦截普通请求 (健康检查)
func UnaryLoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logRPC(log, "Unary", info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

// StreamLoggingInterceptor 拦截流式请求 (Health.Watch)
func StreamLoggingInterceptor(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logRPC(log, "Stream", info.FullMethod, time.Since(start), err)
		return err
	}
}

func logRPC(log *zap.Logger, kind, method string, duration time.Duration, err error) {
	code := status.Code(err)

	level := zapcore.InfoLevel
	if code != codes.OK {
		// Internal / Unknown 算 Error，其余业务错误算 Warn
		if code == codes.Internal || code == codes.Unknown {
			level = zapcore.ErrorLevel
		} else {
			level = zapcore.WarnLevel
		}
	}

	log.Log(level, "gRPC request",
		zap.String("kind", kind),
		zap.String("method", method),
		zap.String("code", code.String()),
		zap.Duration("dur", duration),
		zap.Error(err),
	)
}

// =============================================================================
// 2. Recovery Interceptor
// =============================================================================

// UnaryRecoveryInterceptor 捕获 Panic
func UnaryRecoveryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recoverFromPanic(log, r)
			}
		}()
		return handler(ctx, req)
	}
}

// StreamRecoveryInterceptor 捕获 Panic
func StreamRecoveryInterceptor(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recoverFromPanic(log, r)
			}
		}()
		return handler(srv, ss)
	}
}

func recoverFromPanic(log *zap.Logger, p any) error {
	log.Error("panic recovered",
		zap.Any("panic", p),
		zap.String("stack", string(debug.Stack())),
	)
	// 返回 Internal 而不是直接断开连接
	return status.Errorf(codes.Internal, "internal server error: panic recovered")
}
