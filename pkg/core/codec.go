package core

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// 缓存条目的编码选项 (Canonical CBOR)
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	// 保证相同的列表在两个地址键下写出完全相同的字节
	Sort: cbor.SortCanonical,

	// 2. 时间编码为 Unix 微秒整数
	// 客户端时间戳需要亚秒精度，否则同一秒内的两次上传排序不稳定
	Time:    cbor.TimeUnixMicro,
	TimeTag: cbor.EncTagNone,

	// 3. 禁止不定长编码
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// --- 安全性配置 ---
	// 缓存是本地可写的，不可信，限制容器大小防止异常数据耗尽内存
	MaxArrayElements: 100000,
	MaxMapPairs:      1000,
	MaxNestedLevels:  16,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	TimeTag:     cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// EncodeRecords 序列化一个有序的 FileRecord 列表 (缓存值)
func EncodeRecords(records []FileRecord) ([]byte, error) {
	if records == nil {
		records = []FileRecord{}
	}
	data, err := em.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return data, nil
}

// DecodeRecords 反序列化缓存值
func DecodeRecords(data []byte) ([]FileRecord, error) {
	var records []FileRecord
	if err := dm.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal records: %w", err)
	}
	return records, nil
}
