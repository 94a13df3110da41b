// pkg/types/common.go
package types

import "strings"

// ContentID 是对象在内容寻址存储网络中的地址 (CIDv0: "Qm...")
// 这是一个“值对象”，应当是不可变的。
type ContentID string

func (c ContentID) String() string { return string(c) }

// 验证 ContentID 合法性
func (c ContentID) IsZero() bool { return strings.TrimSpace(string(c)) == "" }

// IsV0 简单检查是否形如 CIDv0 (46 字符, "Qm" 前缀)
// 注意：注册表只要求非空，这里只用于展示层的提示
func (c ContentID) IsV0() bool { return len(c) == 46 && strings.HasPrefix(string(c), "Qm") }

// Short 返回便于展示的缩写形式
func (c ContentID) Short() string {
	if len(c) <= 12 {
		return string(c)
	}
	return string(c[:6]) + "..." + string(c[len(c)-4:])
}

// RecordID 是存储网络内部的记录 ID (与 ContentID 不同，删除时必须使用它)
type RecordID string

func (r RecordID) String() string { return string(r) }
func (r RecordID) IsZero() bool   { return r == "" }

// TxHash 交易标识 (0x 前缀的 hex 字符串)
type TxHash string

func (h TxHash) String() string { return string(h) }
func (h TxHash) IsZero() bool   { return h == "" }
