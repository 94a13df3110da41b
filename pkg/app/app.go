// Package app 是整个应用程序的依赖容器 (Dependency Container)
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sealdrive/pkg/chain"
	"sealdrive/pkg/config"
	"sealdrive/pkg/core"
	"sealdrive/pkg/identity"
	"sealdrive/pkg/ledger"
	"sealdrive/pkg/listcache"
	"sealdrive/pkg/logging"
	"sealdrive/pkg/orchestrator"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/relay"
	"sealdrive/pkg/resolver"
	"sealdrive/pkg/session"
	"sealdrive/pkg/storage"
	"sealdrive/pkg/storage/cache"
	"sealdrive/pkg/storage/disk"
	"sealdrive/pkg/storage/s3"
	"sealdrive/pkg/txexec"
	"sealdrive/pkg/vault"
	"sealdrive/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// objectCacheTTL 对象存在性缓存的过期时间
const objectCacheTTL = 24 * time.Hour

// App 持有所有“单例”服务
//
// 两种模式:
//   - devnet: 账本 (gorm) 充当链，本地中继走 in-proc rpc
//   - 真实网络: ethclient + HTTP 中继
type App struct {
	Settings config.Settings
	Log      *zap.Logger
	Signer   wallet.Signer
	ChainID  *big.Int
	Registry common.Address

	Blobs        storage.Store
	Vault        *vault.Vault
	Cache        *listcache.Cache
	Reader       registry.Reader
	Executor     *txexec.Executor
	Listing      *resolver.Resolver
	Orchestrator *orchestrator.Orchestrator

	// 只在 devnet 模式下存在
	Devnet *ledger.Devnet
	Relay  *relay.Service

	chain   *chain.Client
	closers []func() error
}

// NewApp 按配置组装整台机器，不知道具体的 CLI 命令
func NewApp(ctx context.Context, cfg config.Settings, signer wallet.Signer, log *zap.Logger) (_ *App, err error) {
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Settings: cfg, Log: log, Signer: signer}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// 1. 加密存储网络
	blobs, err := initStore(ctx, cfg.Vault, log)
	if err != nil {
		return nil, err
	}
	a.Blobs = blobs
	if c, ok := blobs.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
	a.Vault, err = vault.New(ctx, blobs, vault.Config{
		Secret:     cfg.Vault.JWTSecret,
		SessionTTL: cfg.Vault.SessionTTL,
	}, logging.Module(log, "vault"))
	if err != nil {
		return nil, fmt.Errorf("failed to init vault: %w", err)
	}

	// 2. 列表缓存
	store, err := listcache.Open(ctx, listcache.Config{
		Type:     cfg.Cache.Type,
		Path:     cfg.Cache.Path,
		RedisURL: cfg.Cache.RedisURL,
	}, logging.Module(log, "listcache"))
	if err != nil {
		return nil, fmt.Errorf("failed to open listing cache: %w", err)
	}
	a.Cache = listcache.New(store, logging.Module(log, "listcache"))
	a.closers = append(a.closers, a.Cache.Close)

	// 3. 链 (devnet 或真实网络)
	var binder orchestrator.Binder
	if cfg.Chain.Devnet {
		binder, err = a.initDevnet(ctx)
	} else {
		binder, err = a.initChain(ctx)
	}
	if err != nil {
		return nil, err
	}

	// 4. 解析器 + 编排器
	a.Listing = resolver.New(a.Reader, a.Cache, func(context.Context) (common.Address, error) {
		return signer.Address(), nil
	}, logging.Module(log, "resolver"))
	a.Orchestrator = orchestrator.New(orchestrator.Config{Registry: a.Registry},
		a.Vault, a.Executor, binder, a.Reader, a.Listing, a.Cache, logging.Module(log, "orchestrator"))
	return a, nil
}

func (a *App) initDevnet(ctx context.Context) (orchestrator.Binder, error) {
	if err := ensureLedgerDir(a.Settings.Ledger); err != nil {
		return nil, err
	}
	db, err := ledger.NewDB(ctx, ledger.Config{Driver: a.Settings.Ledger.Driver, DSN: a.Settings.Ledger.DSN})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	log := logging.Module(a.Log, "devnet")
	a.Devnet = ledger.NewDevnet(ledger.NewRepository(db), a.Settings.Chain.ID, log,
		ledger.WithDeployer(a.Signer.Address()))
	a.Relay = relay.NewService(a.Devnet, logging.Module(a.Log, "relay"))
	a.ChainID = a.Devnet.ChainID()
	a.Registry = a.Devnet.Registry()
	a.Reader = registry.NewContract(a.Registry, a.Devnet)

	sender := ledger.NewSender(a.Devnet, a.Signer)
	a.Executor = txexec.NewExecutor(a.Devnet, sender, logging.Module(a.Log, "txexec"))
	return sender, nil
}

func (a *App) initChain(ctx context.Context) (orchestrator.Binder, error) {
	addr := a.Settings.Chain.RegistryAddress
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("chain.registry_address is required outside devnet, got %q", addr)
	}
	if a.Settings.Chain.RPCURL == "" {
		return nil, errors.New("chain.rpc_url is required outside devnet")
	}

	client, err := chain.Dial(ctx, a.Settings.Chain.RPCURL, common.HexToAddress(addr), a.Signer, logging.Module(a.Log, "chain"))
	if err != nil {
		return nil, err
	}
	a.chain = client
	a.closers = append(a.closers, func() error { client.Close(); return nil })

	a.ChainID = client.ChainID()
	a.Registry = client.Registry()
	a.Reader = registry.NewContract(a.Registry, client.Caller())
	a.Executor = txexec.NewExecutor(client, client, logging.Module(a.Log, "txexec"))
	return client, nil
}

// ensureLedgerDir sqlite 文件路径的父目录必须存在
func ensureLedgerDir(cfg config.LedgerSettings) error {
	driver := strings.ToLower(cfg.Driver)
	if driver != "" && driver != "sqlite" {
		return nil
	}
	if cfg.DSN == "" || cfg.DSN == ":memory:" || strings.HasPrefix(cfg.DSN, "file:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(cfg.DSN), 0o755)
}

// initStore 根据配置初始化 blob 存储，可选叠加 Redis 存在性缓存
func initStore(ctx context.Context, cfg config.VaultSettings, log *zap.Logger) (storage.Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var (
		store storage.Store
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "disk":
		if cfg.Path == "" {
			return nil, errors.New("vault path not set")
		}
		store, err = disk.NewAdapter(cfg.Path)
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, errors.New("s3 bucket is required")
		}
		store, err = s3.NewAdapter(ctx, s3.Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
		}, logging.Module(log, "s3"))
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	if cfg.RedisURL == "" {
		return store, nil
	}
	cached, err := cache.NewCachedStore(store, cache.Config{RedisURL: cfg.RedisURL, TTL: objectCacheTTL},
		logging.Module(log, "blobcache"))
	if err != nil {
		// 缓存是锦上添花，连不上就直接用底层存储
		log.Warn("object cache unavailable, using backend directly", zap.Error(err))
		return store, nil
	}
	return cached, nil
}

// OpenSession 创建会话: 连接派生账户、解析身份、加载文件列表
func (a *App) OpenSession(ctx context.Context) (*session.Session, error) {
	acct := a.connectAccount(ctx)
	id := identity.NewResolver(a.Signer.Address(), logging.Module(a.Log, "identity")).Identity(ctx, acct)
	s := session.New(a.Signer, acct, id)
	if _, err := a.Orchestrator.Refresh(ctx, s); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// connectAccount 派生账户创建失败时返回 nil，会话退化为自付费
func (a *App) connectAccount(ctx context.Context) core.SmartAccount {
	if !a.Settings.Relay.Enabled {
		return nil
	}
	log := logging.Module(a.Log, "relay")
	if a.Relay == nil {
		return relay.Connect(ctx, relay.Config{
			URL:     a.Settings.Relay.URL,
			APIKey:  a.Settings.Relay.APIKey,
			ChainID: a.Settings.Chain.ID,
		}, a.ChainID, a.Signer, log)
	}

	client, err := relay.DialInProc(a.Relay)
	if err != nil {
		log.Warn("devnet relay unavailable", zap.Error(err))
		return nil
	}
	acct, err := relay.Attach(ctx, client, a.ChainID.Int64(), a.Signer)
	if err != nil {
		log.Warn("smart account creation failed", zap.Error(err))
		client.Close()
		return nil
	}
	return acct
}

// Close 逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// LoadSigner 按钱包配置加载签名者 (私钥优先，其次 keystore)
func LoadSigner(cfg config.WalletSettings) (*wallet.KeySigner, error) {
	var confirm wallet.Confirmer = wallet.AutoConfirm{}
	if cfg.Confirm {
		confirm = wallet.NewTerminalConfirm()
	}

	switch {
	case cfg.PrivateKey != "":
		return wallet.NewKeySigner(cfg.PrivateKey, confirm)
	case cfg.Keystore != "":
		pass, err := wallet.ReadPassphrase("Keystore passphrase: ")
		if err != nil {
			return nil, err
		}
		return wallet.FromKeystore(cfg.Keystore, pass, confirm)
	default:
		return nil, errors.New("no wallet configured: set wallet.private_key or wallet.keystore")
	}
}
