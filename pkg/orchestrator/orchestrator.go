// Package orchestrator 编排文件操作：上传、删除、下载、查看
//
// 每个操作是一条调用链，外部调用 (存储网络、中继、链) 是唯一的挂起点。
// 任何一步失败都中止当前操作，不重试；已完成的外部步骤不回滚。
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sealdrive/pkg/core"
	"sealdrive/pkg/identity"
	"sealdrive/pkg/listcache"
	"sealdrive/pkg/metrics"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/resolver"
	"sealdrive/pkg/session"
	"sealdrive/pkg/txexec"
	"sealdrive/pkg/types"
	"sealdrive/pkg/vault"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MaxFileSize 单个文件上传上限 (100 MiB)
const MaxFileSize = 100 << 20

var ErrFileTooLarge = fmt.Errorf("file exceeds maximum size of %d bytes", MaxFileSize)

// Storage 加密存储网络
type Storage interface {
	AuthMessage(ctx context.Context, addr common.Address) (string, error)
	Authenticate(ctx context.Context, addr common.Address, sig []byte) (string, error)
	UploadEncrypted(ctx context.Context, token string, f vault.File, progress vault.Progress) (vault.Upload, error)
	FetchEncryptionKey(ctx context.Context, token string, cid types.ContentID) ([]byte, error)
	Download(ctx context.Context, token string, cid types.ContentID) ([]byte, error)
	FileInfo(ctx context.Context, cid types.ContentID) (vault.FileInfo, error)
	Uploads(ctx context.Context, token string) ([]vault.Upload, error)
	DeleteFile(ctx context.Context, token string, id types.RecordID) error
}

// Executor 交易执行器 (txexec.Executor)
type Executor interface {
	Execute(ctx context.Context, acct core.SmartAccount, call core.Call, direct core.DirectFunc, opts ...txexec.Option) (core.Outcome, error)
}

// Binder 预绑定合约调用，作为自付费路径的回调
type Binder interface {
	Bind(method string, args ...any) core.DirectFunc
}

type Config struct {
	Registry common.Address
	TempDir  string // 下载临时文件目录，空为系统默认
}

type Orchestrator struct {
	cfg     Config
	storage Storage
	exec    Executor
	binder  Binder
	reader  registry.Reader
	listing *resolver.Resolver
	cache   *listcache.Cache
	now     func() time.Time
	log     *zap.Logger
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(cfg Config, storage Storage, exec Executor, binder Binder, reader registry.Reader,
	listing *resolver.Resolver, cache *listcache.Cache, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:     cfg,
		storage: storage,
		exec:    exec,
		binder:  binder,
		reader:  reader,
		listing: listing,
		cache:   cache,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Refresh 重新解析会话的文件列表 (会话开始、显式刷新时调用)
func (o *Orchestrator) Refresh(ctx context.Context, s *session.Session) ([]core.FileRecord, error) {
	if err := s.Err(); err != nil {
		return nil, err
	}
	files := o.listing.Load(ctx, s.Identity.Query)
	s.SetFiles(files)
	return s.Files(), nil
}

// login 为签名身份建立存储网络会话 (签名挑战)
func (o *Orchestrator) login(ctx context.Context, s *session.Session) (string, error) {
	addr := s.Signer.Address()
	msg, err := o.storage.AuthMessage(ctx, addr)
	if err != nil {
		return "", core.StorageError("auth message", err)
	}
	sig, err := s.Signer.SignMessage(ctx, []byte(msg))
	if err != nil {
		if errors.Is(err, core.ErrUserRejected) {
			return "", core.ErrUserRejected
		}
		return "", fmt.Errorf("sign auth message: %w", err)
	}
	token, err := o.storage.Authenticate(ctx, addr, sig)
	if err != nil {
		return "", core.StorageError("authenticate", err)
	}
	return token, nil
}

// owner 通过地址解析器得到当前写入地址 (派生账户或签名身份)
func (o *Orchestrator) owner(ctx context.Context, s *session.Session) core.Identity {
	return identity.NewResolver(s.Signer.Address(), o.log).Identity(ctx, s.Account)
}

// persist 更新会话列表并写入身份的所有缓存键；缓存失败只记录日志
func (o *Orchestrator) persist(ctx context.Context, s *session.Session, id core.Identity, files []core.FileRecord) {
	s.SetFiles(files)
	if o.cache == nil {
		return
	}
	if err := o.cache.PutAll(ctx, id, files); err != nil {
		o.log.Warn("failed to persist listing to cache", zap.Error(err))
	}
}

// existsGuard 回退前检查 (cid 在 owner 名下的存在性是否已翻转)
func (o *Orchestrator) existsGuard(owner common.Address, cid types.ContentID, want bool) txexec.Option {
	return txexec.WithGuard(func(ctx context.Context) (bool, error) {
		exists, err := o.reader.FileExistsForUser(ctx, owner, cid)
		if err != nil {
			return false, err
		}
		return exists == want, nil
	})
}

// guardFor 只有在提交前确认了初始状态时才安装 guard
func (o *Orchestrator) guardFor(ctx context.Context, owner common.Address, cid types.ContentID, wantAfter bool) []txexec.Option {
	if o.reader == nil {
		return nil
	}
	before, err := o.reader.FileExistsForUser(ctx, owner, cid)
	if err != nil {
		o.log.Debug("registry pre-check unavailable, no fallback guard", zap.Error(err))
		return nil
	}
	if before == wantAfter {
		return nil
	}
	return []txexec.Option{o.existsGuard(owner, cid, wantAfter)}
}

func (o *Orchestrator) bind(method string, args ...any) core.DirectFunc {
	if o.binder == nil {
		return nil
	}
	return o.binder.Bind(method, args...)
}

// observe 记录操作结果与耗时
func observe(op string, start time.Time, err *error) {
	metrics.OpsTotal.WithLabelValues(op, metrics.Result(*err)).Inc()
	metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
