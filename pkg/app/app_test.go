package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sealdrive/pkg/config"
	"sealdrive/pkg/orchestrator"
	"sealdrive/pkg/relay"
	"sealdrive/pkg/storage/disk"
	"sealdrive/pkg/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestInitStore_Disk(t *testing.T) {
	store, err := initStore(context.Background(), config.VaultSettings{
		Backend: "disk",
		Path:    filepath.Join(t.TempDir(), "vault"),
	}, nil)

	require.NoError(t, err)
	assert.IsType(t, &disk.Adapter{}, store)
}

func TestInitStore_S3_MissingBucket(t *testing.T) {
	store, err := initStore(context.Background(), config.VaultSettings{Backend: "s3"}, nil)
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "bucket is required")
}

func TestInitStore_UnknownType(t *testing.T) {
	store, err := initStore(context.Background(), config.VaultSettings{Backend: "ftp"}, nil)
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestInitStore_RedisUnreachableFallsBack(t *testing.T) {
	store, err := initStore(context.Background(), config.VaultSettings{
		Backend:  "disk",
		Path:     t.TempDir(),
		RedisURL: "redis://127.0.0.1:1/0",
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &disk.Adapter{}, store)
}

func TestEnsureLedgerDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	require.NoError(t, ensureLedgerDir(config.LedgerSettings{Driver: "sqlite", DSN: filepath.Join(dir, "ledger.db")}))
	_, err := os.Stat(dir)
	assert.NoError(t, err)

	assert.NoError(t, ensureLedgerDir(config.LedgerSettings{Driver: "postgres", DSN: "host=x"}))
	assert.NoError(t, ensureLedgerDir(config.LedgerSettings{DSN: ":memory:"}))
}

func TestNewApp_RealChainRequiresRegistry(t *testing.T) {
	cfg := devnetSettings(t)
	cfg.Chain.Devnet = false
	_, err := NewApp(context.Background(), cfg, testSigner(t), nil)
	assert.ErrorContains(t, err, "registry_address")
}

func TestLoadSigner(t *testing.T) {
	s, err := LoadSigner(config.WalletSettings{PrivateKey: testKey})
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", s.Address().Hex())

	_, err = LoadSigner(config.WalletSettings{})
	assert.Error(t, err)
}

func devnetSettings(t *testing.T) config.Settings {
	base := t.TempDir()
	return config.Settings{
		Chain:  config.ChainSettings{ID: 1337, Devnet: true},
		Relay:  config.RelaySettings{Enabled: true},
		Vault:  config.VaultSettings{Backend: "disk", Path: filepath.Join(base, "vault"), SessionTTL: time.Hour},
		Cache:  config.CacheSettings{Type: "badger", Path: filepath.Join(base, "cache")},
		Ledger: config.LedgerSettings{Driver: "sqlite", DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())},
	}
}

func testSigner(t *testing.T) *wallet.KeySigner {
	s, err := wallet.NewKeySigner(testKey, wallet.AutoConfirm{})
	require.NoError(t, err)
	return s
}

// 完整的 devnet 流程: 上传 -> 新会话从注册表恢复 -> 删除 -> 重新上传
func TestDevnet_EndToEnd(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)
	a, err := NewApp(ctx, devnetSettings(t), signer, nil)
	require.NoError(t, err)
	defer a.Close()

	s, err := a.OpenSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.Account, "devnet 应该自动挂上派生账户")
	assert.Equal(t, relay.DeriveAddress(signer.Address()), s.Identity.Query)
	assert.Empty(t, s.Files())

	data := []byte("%PDF-1.7 report")
	rec, err := a.Orchestrator.Upload(ctx, s, orchestrator.UploadRequest{Name: "report.pdf", Data: data}, nil)
	require.NoError(t, err)
	assert.True(t, rec.Sponsored)
	require.NoError(t, s.Close())

	// 1. 新会话: 列表来自注册表
	s2, err := a.OpenSession(ctx)
	require.NoError(t, err)
	defer s2.Close()
	files := s2.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "report.pdf", files[0].Name)

	// 2. 下载
	res, err := a.Orchestrator.Download(ctx, s2, rec.ContentID, nil)
	require.NoError(t, err)
	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	res.Release()
	assert.Equal(t, data, got)

	// 3. 删除后再上传
	require.NoError(t, a.Orchestrator.Delete(ctx, s2, rec.ContentID, nil))
	assert.Empty(t, s2.Files())

	again, err := a.Orchestrator.Upload(ctx, s2, orchestrator.UploadRequest{Name: "report-v2.pdf", Data: data}, nil)
	require.NoError(t, err)
	assert.Equal(t, rec.ContentID, again.ContentID)

	entries, err := a.Reader.GetFiles(ctx, s2.Identity.Query)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "report-v2.pdf", entries[0].Name)
}

func TestDevnet_RelayDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := devnetSettings(t)
	cfg.Relay.Enabled = false
	signer := testSigner(t)

	a, err := NewApp(ctx, cfg, signer, nil)
	require.NoError(t, err)
	defer a.Close()

	s, err := a.OpenSession(ctx)
	require.NoError(t, err)
	defer s.Close()
	assert.Nil(t, s.Account)
	assert.Equal(t, signer.Address(), s.Identity.Query)

	rec, err := a.Orchestrator.Upload(ctx, s, orchestrator.UploadRequest{Name: "a.txt", Data: []byte("hi")}, nil)
	require.NoError(t, err)
	assert.False(t, rec.Sponsored)
}
