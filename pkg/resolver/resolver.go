// Package resolver 决定用户的规范文件列表：注册表 -> 缓存[查询地址] -> 缓存[签名地址]
package resolver

import (
	"context"

	"sealdrive/pkg/core"
	"sealdrive/pkg/listcache"
	"sealdrive/pkg/metrics"
	"sealdrive/pkg/registry"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// 数据来源标签
const (
	SourceRegistry     = "registry"
	SourceCacheQuery   = "cache_query"
	SourceCacheSigning = "cache_signing"
	SourceEmpty        = "empty"
)

// SigningLookup 返回签名身份地址；拿不到时返回 error
type SigningLookup func(ctx context.Context) (common.Address, error)

// Resolver 文件状态解析器
type Resolver struct {
	registry registry.Reader
	cache    *listcache.Cache
	signing  SigningLookup
	log      *zap.Logger
}

func New(reg registry.Reader, cache *listcache.Cache, signing SigningLookup, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{registry: reg, cache: cache, signing: signing, log: log}
}

// Load 返回 query 的文件列表，永不失败
//
//  1. 注册表非空: 按注册表顺序返回，并回写缓存
//  2. 缓存[query] 非空: 按 CreatedAt 倒序
//  3. 签名地址不同且缓存[signing] 非空: 迁移到缓存[query]，按 CreatedAt 倒序
//  4. 空列表
func (r *Resolver) Load(ctx context.Context, query common.Address) []core.FileRecord {
	signing, hasSigning := r.lookupSigning(ctx)

	// 1. 注册表 (唯一可信来源)
	if recs, ok := r.fromRegistry(ctx, query); ok {
		r.prime(ctx, query, recs)
		if hasSigning && signing != query {
			r.prime(ctx, signing, recs)
		}
		metrics.ResolverSource.WithLabelValues(SourceRegistry).Inc()
		return recs
	}

	// 2. 查询地址的缓存
	if recs := r.fromCache(ctx, query); len(recs) > 0 {
		metrics.ResolverSource.WithLabelValues(SourceCacheQuery).Inc()
		return core.SortNewestFirst(recs)
	}

	// 3. 签名地址的缓存 (派生账户出现之前的旧数据)
	if hasSigning && signing != query {
		if recs := r.fromCache(ctx, signing); len(recs) > 0 {
			r.log.Info("migrating cached listing from signing identity",
				zap.String("from", signing.Hex()), zap.String("to", query.Hex()))
			r.prime(ctx, query, recs)
			metrics.ResolverSource.WithLabelValues(SourceCacheSigning).Inc()
			return core.SortNewestFirst(recs)
		}
	}

	metrics.ResolverSource.WithLabelValues(SourceEmpty).Inc()
	return []core.FileRecord{}
}

func (r *Resolver) lookupSigning(ctx context.Context) (common.Address, bool) {
	if r.signing == nil {
		return common.Address{}, false
	}
	addr, err := r.signing(ctx)
	if err != nil {
		r.log.Warn("signing identity unavailable", zap.Error(err))
		return common.Address{}, false
	}
	return addr, true
}

func (r *Resolver) fromRegistry(ctx context.Context, query common.Address) ([]core.FileRecord, bool) {
	if r.registry == nil {
		return nil, false
	}
	entries, err := r.registry.GetFiles(ctx, query)
	if err != nil {
		r.log.Warn("registry unavailable, falling back to cache",
			zap.String("owner", query.Hex()), zap.Error(err))
		return nil, false
	}
	if len(entries) == 0 {
		return nil, false
	}
	return registry.Records(entries), true
}

func (r *Resolver) fromCache(ctx context.Context, addr common.Address) []core.FileRecord {
	if r.cache == nil {
		return nil
	}
	recs, err := r.cache.Records(ctx, addr)
	if err != nil {
		r.log.Warn("cache read failed", zap.String("address", addr.Hex()), zap.Error(err))
		return nil
	}
	return recs
}

func (r *Resolver) prime(ctx context.Context, addr common.Address, recs []core.FileRecord) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(ctx, addr, recs); err != nil {
		r.log.Warn("cache write failed", zap.String("address", addr.Hex()), zap.Error(err))
	}
}
