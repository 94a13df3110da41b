package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"sealdrive/pkg/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStore 是一个装饰器，为底层 storage.Store 的存在性检查加一层 Redis 缓存
// 只缓存 "存在" 这一事实，不缓存 blob 本身
type CachedStore struct {
	backend storage.Store
	client  *redis.Client
	ttl     time.Duration
	log     *zap.Logger
}

type Config struct {
	RedisURL string        // redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewCachedStore(backend storage.Store, cfg Config, log *zap.Logger) (*CachedStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{backend: backend, client: client, ttl: cfg.TTL, log: log}, nil
}

// cacheKey 添加前缀防止冲突
func (s *CachedStore) cacheKey(key string) string {
	return "sd:obj:" + key
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, key string) (bool, error) {
	ck := s.cacheKey(key)

	// 1. 查 Redis。Redis 故障时降级为直接查底层存储
	val, err := s.client.Exists(ctx, ck).Result()
	if err != nil {
		s.log.Warn("redis exists failed, falling back to backend", zap.Error(err))
	} else if val > 0 {
		return true, nil
	}

	// 2. 未命中，查底层存储
	found, err := s.backend.Has(ctx, key)
	if err != nil {
		return false, err
	}

	// 3. 异步回填，不阻塞主流程
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, ck, "1", s.ttl)
		}()
	}
	return found, nil
}

// Put 写穿：底层成功后才写缓存
func (s *CachedStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.backend.Put(ctx, key, data, contentType); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.cacheKey(key), "1", s.ttl).Err(); err != nil {
		s.log.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Delete 先删缓存再删底层，避免缓存里残留已删除对象
func (s *CachedStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.cacheKey(key)).Err(); err != nil {
		s.log.Warn("redis del failed", zap.String("key", key), zap.Error(err))
	}
	return s.backend.Delete(ctx, key)
}

// Get 透传
func (s *CachedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// List 透传
func (s *CachedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.backend.List(ctx, prefix)
}

func (s *CachedStore) Close() error {
	return s.client.Close()
}

var _ storage.Store = (*CachedStore)(nil)
