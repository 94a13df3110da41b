// Package listcache 按地址缓存文件列表 (best-effort，可能过期或缺失)
package listcache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrMiss 缓存中没有该键
var ErrMiss = errors.New("cache miss")

// Store 字符串键到字节的持久化存储，无 TTL
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config 缓存后端配置
type Config struct {
	Type     string // badger | redis | memory
	Path     string // badger 数据目录
	RedisURL string
}

// Open 按配置打开缓存后端
func Open(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "badger":
		return OpenBadger(cfg.Path, log)
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL)
	case "memory":
		return NewMemory(ctx)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
