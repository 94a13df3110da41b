package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"sealdrive/pkg/core"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

// setupTestRepo 构建隔离的内存账本
func setupTestRepo(t *testing.T) *Repository {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	ldb := NewWithConn(db)
	require.NoError(t, ldb.Migrate())
	return NewRepository(ldb)
}

// fakeClock 每次调用前进一秒，保证时间戳有序
func fakeClock() func() time.Time {
	now := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func setupDevnet(t *testing.T) *Devnet {
	return NewDevnet(setupTestRepo(t), 1337, nil, WithClock(fakeClock()))
}

func mustUpload(t *testing.T, d *Devnet, from common.Address, cid types.ContentID, name string) *core.Receipt {
	t.Helper()
	call, err := registry.UploadCall(d.Registry(), cid, name)
	require.NoError(t, err)
	r, err := d.Apply(context.Background(), from, call)
	require.NoError(t, err)
	return r
}

func mustDelete(t *testing.T, d *Devnet, from common.Address, cid types.ContentID) {
	t.Helper()
	call, err := registry.DeleteCall(d.Registry(), cid)
	require.NoError(t, err)
	_, err = d.Apply(context.Background(), from, call)
	require.NoError(t, err)
}
