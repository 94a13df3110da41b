package ledger

import (
	"time"

	"gorm.io/datatypes"
)

// FileEntry 注册表中的一条文件记录
// (owner, cid) 唯一，对应合约里按调用者隔离的映射
type FileEntry struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Owner     string `gorm:"type:char(42);not null;uniqueIndex:idx_owner_cid"`
	CID       string `gorm:"column:cid;type:text;not null;uniqueIndex:idx_owner_cid"`
	Name      string `gorm:"type:text;not null"`
	Timestamp int64  `gorm:"not null"` // 所在区块时间 (秒)

	CreatedAt time.Time
}

func (FileEntry) TableName() string {
	return "registry_files"
}

// TxModel 已打包的交易。自增 ID 即区块号 (一笔交易一个区块)
type TxModel struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Hash   string `gorm:"type:char(66);uniqueIndex"`
	From   string `gorm:"column:from_addr;type:char(42);index"`
	To     string `gorm:"column:to_addr;type:char(42)"`
	Method string `gorm:"type:varchar(64)"`
	Nonce  uint64
	Status uint64

	CreatedAt time.Time
}

func (TxModel) TableName() string {
	return "transactions"
}

// Event 合约事件日志 (FileUploaded / FileDeleted)
// Payload 存事件的非索引参数
type Event struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	Name    string `gorm:"type:varchar(64);index"`
	Owner   string `gorm:"type:char(42);index"`
	TxHash  string `gorm:"type:char(66);index"`
	Block   uint64
	Payload datatypes.JSON

	CreatedAt time.Time
}

func (Event) TableName() string {
	return "events"
}
