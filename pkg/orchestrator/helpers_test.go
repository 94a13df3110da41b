package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sealdrive/pkg/core"
	"sealdrive/pkg/identity"
	"sealdrive/pkg/ledger"
	"sealdrive/pkg/listcache"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/relay"
	"sealdrive/pkg/resolver"
	"sealdrive/pkg/session"
	"sealdrive/pkg/storage/disk"
	"sealdrive/pkg/txexec"
	"sealdrive/pkg/types"
	"sealdrive/pkg/vault"
	"sealdrive/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const ownerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// stack 完整的本地环境: devnet 账本 + 本地中继 + 磁盘 vault + 内存缓存
type stack struct {
	orch   *Orchestrator
	net    *ledger.Devnet
	vault  *vault.Vault
	cache  *listcache.Cache
	reader *registry.Contract
	signer *wallet.KeySigner
	relay  *relay.Service
}

type stackConfig struct {
	quota   int
	storage func(Storage) Storage
	exec    func(Executor) Executor
}

type stackOption func(*stackConfig)

func withQuota(n int) stackOption { return func(c *stackConfig) { c.quota = n } }

func withStorage(wrap func(Storage) Storage) stackOption {
	return func(c *stackConfig) { c.storage = wrap }
}

func withExecutor(wrap func(Executor) Executor) stackOption {
	return func(c *stackConfig) { c.exec = wrap }
}

func setupStack(t *testing.T, opts ...stackOption) *stack {
	var cfg stackConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx := context.Background()

	// 1. 账本
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	ldb := ledger.NewWithConn(db)
	require.NoError(t, ldb.Migrate())
	net := ledger.NewDevnet(ledger.NewRepository(ldb), 1337, nil)

	// 2. 签名者 + vault
	signer, err := wallet.NewKeySigner(ownerKey, wallet.AutoConfirm{})
	require.NoError(t, err)
	blobs, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	v, err := vault.New(ctx, blobs, vault.Config{Secret: "test"}, nil)
	require.NoError(t, err)

	// 3. 缓存 + 读取 + 执行
	mem, err := listcache.NewMemory(ctx)
	require.NoError(t, err)
	cache := listcache.New(mem, nil)
	t.Cleanup(func() { _ = cache.Close() })

	reader := registry.NewContract(net.Registry(), net)
	sender := ledger.NewSender(net, signer)
	exec := txexec.NewExecutor(net, sender, nil)
	listing := resolver.New(reader, cache, func(context.Context) (common.Address, error) {
		return signer.Address(), nil
	}, nil)

	var storage Storage = v
	if cfg.storage != nil {
		storage = cfg.storage(v)
	}

	var ex Executor = exec
	if cfg.exec != nil {
		ex = cfg.exec(exec)
	}

	var svcOpts []relay.ServiceOption
	if cfg.quota > 0 {
		svcOpts = append(svcOpts, relay.WithQuota(cfg.quota))
	}

	orch := New(Config{Registry: net.Registry(), TempDir: t.TempDir()}, storage, ex, sender, reader, listing, cache, nil)
	return &stack{
		orch:   orch,
		net:    net,
		vault:  v,
		cache:  cache,
		reader: reader,
		signer: signer,
		relay:  relay.NewService(net, nil, svcOpts...),
	}
}

// sponsoredSession 通过本地中继挂上派生账户
func (st *stack) sponsoredSession(t *testing.T) *session.Session {
	client, err := relay.DialInProc(st.relay)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	acct, err := relay.Attach(context.Background(), client, 1337, st.signer, relay.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	return st.session(acct)
}

func (st *stack) session(acct core.SmartAccount) *session.Session {
	id := identity.NewResolver(st.signer.Address(), nil).Identity(context.Background(), acct)
	return session.New(st.signer, acct, id)
}

// progressLog 记录进度回调
type progressLog struct {
	mu   sync.Mutex
	vals []int
}

func (p *progressLog) fn(v int) {
	p.mu.Lock()
	p.vals = append(p.vals, v)
	p.mu.Unlock()
}

func (p *progressLog) values() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.vals...)
}

// lostReceipt 赞助交易实际已上链，但客户端等待回执时超时
type lostReceipt struct {
	core.SmartAccount
}

func (a lostReceipt) SendTransaction(ctx context.Context, tx core.SponsoredTx) (core.UserOp, error) {
	op, err := a.SmartAccount.SendTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	return lostOp{op}, nil
}

type lostOp struct{ core.UserOp }

func (o lostOp) Wait(ctx context.Context) (*core.Receipt, error) {
	if _, err := o.UserOp.Wait(ctx); err != nil {
		return nil, err
	}
	return nil, errors.New("timed out waiting for user operation receipt")
}

// failingUnpin 取消固定总是失败的存储
type failingUnpin struct{ Storage }

func (failingUnpin) DeleteFile(context.Context, string, types.RecordID) error {
	return errors.New("pinning service unavailable")
}

// downStorage 完全不可用的存储
type downStorage struct{ Storage }

func (downStorage) AuthMessage(context.Context, common.Address) (string, error) {
	return "", errors.New("dial tcp: connection refused")
}

// declineAll 拒绝所有签名请求
type declineAll struct{}

func (declineAll) Confirm(context.Context, string) error { return core.ErrUserRejected }


// flakyExec 前 fails 次执行直接失败，之后透传
type flakyExec struct {
	Executor
	mu    sync.Mutex
	fails int
}

func (f *flakyExec) Execute(ctx context.Context, acct core.SmartAccount, call core.Call, direct core.DirectFunc, opts ...txexec.Option) (core.Outcome, error) {
	f.mu.Lock()
	fail := f.fails > 0
	if fail {
		f.fails--
	}
	f.mu.Unlock()
	if fail {
		return core.Outcome{}, fmt.Errorf("%w: nonce too low", core.ErrTransactionFailed)
	}
	return f.Executor.Execute(ctx, acct, call, direct, opts...)
}
