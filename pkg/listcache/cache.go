package listcache

import (
	"context"
	"errors"
	"fmt"

	"sealdrive/pkg/core"
	"sealdrive/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Cache 在 Store 之上存取 []core.FileRecord
type Cache struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Cache {
	return &Cache{store: store, log: logOrNop(log)}
}

// Records 读取某个地址的缓存列表；未命中返回 (nil, nil)
func (c *Cache) Records(ctx context.Context, addr common.Address) ([]core.FileRecord, error) {
	return c.load(ctx, core.CacheKey(addr))
}

func (c *Cache) load(ctx context.Context, key string) ([]core.FileRecord, error) {
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return nil, nil
	}
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	recs, err := core.DecodeRecords(raw)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return recs, nil
}

// Put 写入单个地址
func (c *Cache) Put(ctx context.Context, addr common.Address, recs []core.FileRecord) error {
	return c.save(ctx, core.CacheKey(addr), recs)
}

// PutAll 写入身份的所有规范键 (查询地址，以及不同时的签名地址)
func (c *Cache) PutAll(ctx context.Context, id core.Identity, recs []core.FileRecord) error {
	raw, err := core.EncodeRecords(recs)
	if err != nil {
		return err
	}
	var errs []error
	for _, key := range id.CacheKeys() {
		if err := c.store.Set(ctx, key, raw); err != nil {
			metrics.CacheErrors.WithLabelValues("set").Inc()
			errs = append(errs, fmt.Errorf("cache set %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) save(ctx context.Context, key string, recs []core.FileRecord) error {
	raw, err := core.EncodeRecords(recs)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, key, raw); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Close() error { return c.store.Close() }
