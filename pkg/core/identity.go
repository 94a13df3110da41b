package core

import "github.com/ethereum/go-ethereum/common"

// CacheKeyPrefix 缓存键前缀: "files:<address>"
const CacheKeyPrefix = "files:"

// Identity 把一个逻辑用户映射到它的两个地址
//   - Signing: 私钥直接控制的地址 (签名、存储网络鉴权)
//   - Query:   派生账户地址 (主查询/展示地址)，没有派生账户时等于 Signing
type Identity struct {
	Signing common.Address
	Query   common.Address
}

// HasDerived 派生账户与签名身份是否不同
func (id Identity) HasDerived() bool {
	return id.Query != (common.Address{}) && id.Query != id.Signing
}

// CacheKey 返回某个地址对应的缓存键
func CacheKey(addr common.Address) string {
	return CacheKeyPrefix + addr.Hex()
}

// CacheKeys 返回该身份的所有规范缓存键 (Query 在前，去重)
// 写缓存时对每个键写一份，取代散落各处的 "if a != b 再写一次"
func (id Identity) CacheKeys() []string {
	if !id.HasDerived() {
		return []string{CacheKey(id.Signing)}
	}
	return []string{CacheKey(id.Query), CacheKey(id.Signing)}
}
