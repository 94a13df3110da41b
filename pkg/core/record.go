package core

import (
	"slices"
	"time"

	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum/common"
)

// FileRecord 是本层所知道的一次上传
type FileRecord struct {
	ContentID types.ContentID `cbor:"cid" json:"cid"`
	Name      string          `cbor:"name" json:"name"`
	Size      int64           `cbor:"size,omitempty" json:"size,omitempty"`
	MimeType  string          `cbor:"type,omitempty" json:"type,omitempty"`

	// Owner 是上传时的查询地址 (可能是派生账户，也可能是签名身份)
	Owner common.Address `cbor:"owner" json:"owner"`

	// CreatedAt: 注册表时间戳 (权威)，或确认前的客户端时间戳
	CreatedAt time.Time `cbor:"ts" json:"createdAt"`
	Encrypted bool      `cbor:"enc" json:"encrypted"`

	// 写入注册表那笔交易的来源信息
	TxHash    types.TxHash `cbor:"tx,omitempty" json:"txHash,omitempty"`
	Sponsored bool         `cbor:"sp,omitempty" json:"sponsored,omitempty"`
}

// SortNewestFirst 按 CreatedAt 降序排序 (原地，稳定)
func SortNewestFirst(records []FileRecord) []FileRecord {
	slices.SortStableFunc(records, func(a, b FileRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return records
}

// Prepend 返回新列表: rec 在最前，不修改传入的切片
func Prepend(rec FileRecord, current []FileRecord) []FileRecord {
	out := make([]FileRecord, 0, len(current)+1)
	out = append(out, rec)
	return append(out, current...)
}

// Without 返回去掉指定 ContentID 后的新列表
func Without(current []FileRecord, cid types.ContentID) []FileRecord {
	out := make([]FileRecord, 0, len(current))
	for _, r := range current {
		if r.ContentID != cid {
			out = append(out, r)
		}
	}
	return out
}

// Find 在列表中查找 ContentID
func Find(records []FileRecord, cid types.ContentID) (FileRecord, bool) {
	for _, r := range records {
		if r.ContentID == cid {
			return r, true
		}
	}
	return FileRecord{}, false
}
