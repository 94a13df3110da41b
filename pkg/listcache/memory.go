package listcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// MemoryStore 进程内缓存 (测试、一次性会话)
type MemoryStore struct {
	cache *bigcache.BigCache
}

func NewMemory(ctx context.Context) (*MemoryStore, error) {
	cfg := bigcache.DefaultConfig(100 * 365 * 24 * time.Hour)
	// 不做后台清理，条目只会被覆盖
	cfg.CleanWindow = 0
	cfg.Shards = 64
	cfg.Verbose = false

	c, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init memory cache: %w", err)
	}
	return &MemoryStore{cache: c}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	b, err := s.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrMiss
	}
	return b, err
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	return s.cache.Set(key, value)
}

func (s *MemoryStore) Close() error { return s.cache.Close() }
