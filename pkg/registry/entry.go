package registry

import (
	"math/big"
	"time"

	"sealdrive/pkg/core"
	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum/common"
)

// Entry 注册表中的一条记录
type Entry struct {
	ContentID types.ContentID
	Name      string
	Owner     common.Address
	Timestamp uint64 // 区块时间 (秒)
}

// Record 转换成 FileRecord，时间戳成为 CreatedAt
func (e Entry) Record() core.FileRecord {
	return core.FileRecord{
		ContentID: e.ContentID,
		Name:      e.Name,
		Owner:     e.Owner,
		CreatedAt: time.Unix(int64(e.Timestamp), 0).UTC(),
		Encrypted: true,
	}
}

// Records 批量转换，保持注册表顺序
func Records(entries []Entry) []core.FileRecord {
	out := make([]core.FileRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Record())
	}
	return out
}

// FileTuple 与合约返回的 tuple 一一对应 (字段名按 ABI 组件名驼峰化)
type FileTuple struct {
	Cid       string
	Name      string
	Owner     common.Address
	Timestamp *big.Int
}

func fromTuple(t FileTuple) Entry {
	var ts uint64
	if t.Timestamp != nil {
		ts = t.Timestamp.Uint64()
	}
	return Entry{ContentID: types.ContentID(t.Cid), Name: t.Name, Owner: t.Owner, Timestamp: ts}
}

// Tuples 把记录打包成合约返回值的形状 (供本地账本实现 getFiles)
func Tuples(entries []Entry) []FileTuple {
	out := make([]FileTuple, 0, len(entries))
	for _, e := range entries {
		out = append(out, toTuple(e))
	}
	return out
}

func toTuple(e Entry) FileTuple {
	return FileTuple{
		Cid:       e.ContentID.String(),
		Name:      e.Name,
		Owner:     e.Owner,
		Timestamp: new(big.Int).SetUint64(e.Timestamp),
	}
}
