package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sealdrive/pkg/registry"
	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository 封装对账本数据库的操作，按合约语义校验
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func ownerKey(a common.Address) string { return a.Hex() }

// -----------------------------------------------------------------------------
// 1. 写操作 (对应 uploadFile / deleteFile)
// -----------------------------------------------------------------------------

// UploadFile 写入一条记录
// 失败时返回 *registry.RevertError (与链上 require 一致)
func (r *Repository) UploadFile(ctx context.Context, tx *gorm.DB, owner common.Address, cid types.ContentID, name string, ts time.Time) error {
	// 合约只检查长度，纯空白的 cid / name 也是合法的
	if len(cid) == 0 {
		return &registry.RevertError{Reason: registry.ReasonEmptyCID}
	}
	if len(name) == 0 {
		return &registry.RevertError{Reason: registry.ReasonEmptyName}
	}

	entry := FileEntry{
		Owner:     ownerKey(owner),
		CID:       cid.String(),
		Name:      name,
		Timestamp: ts.Unix(),
	}
	if err := r.conn(ctx, tx).Create(&entry).Error; err != nil {
		// 兼容 PG 与 SQLite 的唯一约束错误
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "duplicate key") {
			return &registry.RevertError{Reason: registry.ReasonAlreadyUploaded}
		}
		return fmt.Errorf("failed to insert file entry: %w", err)
	}
	return nil
}

// DeleteFile 物理删除，删除后同一 cid 可以重新上传
func (r *Repository) DeleteFile(ctx context.Context, tx *gorm.DB, owner common.Address, cid types.ContentID) error {
	result := r.conn(ctx, tx).
		Where("owner = ? AND cid = ?", ownerKey(owner), cid.String()).
		Delete(&FileEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete file entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &registry.RevertError{Reason: registry.ReasonNotExist}
	}
	return nil
}

// -----------------------------------------------------------------------------
// 2. 读操作 (对应 view 函数)
// -----------------------------------------------------------------------------

// GetFiles 按写入顺序返回 owner 的全部文件
func (r *Repository) GetFiles(ctx context.Context, owner common.Address) ([]registry.Entry, error) {
	var rows []FileEntry
	err := r.db.GetConn().WithContext(ctx).
		Where("owner = ?", ownerKey(owner)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]registry.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, registry.Entry{
			ContentID: types.ContentID(row.CID),
			Name:      row.Name,
			Owner:     common.HexToAddress(row.Owner),
			Timestamp: uint64(row.Timestamp),
		})
	}
	return entries, nil
}

func (r *Repository) FileExists(ctx context.Context, owner common.Address, cid types.ContentID) (bool, error) {
	var count int64
	err := r.db.GetConn().WithContext(ctx).Model(&FileEntry{}).
		Where("owner = ? AND cid = ?", ownerKey(owner), cid.String()).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) FileCount(ctx context.Context, owner common.Address) (uint64, error) {
	var count int64
	err := r.db.GetConn().WithContext(ctx).Model(&FileEntry{}).
		Where("owner = ?", ownerKey(owner)).
		Count(&count).Error
	return uint64(count), err
}

// -----------------------------------------------------------------------------
// 3. 交易与事件
// -----------------------------------------------------------------------------

// NextNonce 返回 from 的下一个 nonce
func (r *Repository) NextNonce(ctx context.Context, tx *gorm.DB, from common.Address) (uint64, error) {
	var count int64
	err := r.conn(ctx, tx).Model(&TxModel{}).
		Where("from_addr = ?", ownerKey(from)).
		Count(&count).Error
	return uint64(count), err
}

// RecordTx 写入交易，返回区块号
func (r *Repository) RecordTx(ctx context.Context, tx *gorm.DB, m *TxModel) (uint64, error) {
	if err := r.conn(ctx, tx).Create(m).Error; err != nil {
		return 0, fmt.Errorf("failed to record transaction: %w", err)
	}
	return uint64(m.ID), nil
}

// EmitEvent 记录事件日志
func (r *Repository) EmitEvent(ctx context.Context, tx *gorm.DB, name string, owner common.Address, txHash common.Hash, block uint64, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	ev := Event{
		Name:    name,
		Owner:   ownerKey(owner),
		TxHash:  txHash.Hex(),
		Block:   block,
		Payload: datatypes.JSON(raw),
	}
	return r.conn(ctx, tx).Create(&ev).Error
}

// Events 查询 owner 的事件 (按时间正序)
func (r *Repository) Events(ctx context.Context, owner common.Address) ([]Event, error) {
	var evs []Event
	err := r.db.GetConn().WithContext(ctx).
		Where("owner = ?", ownerKey(owner)).
		Order("id ASC").
		Find(&evs).Error
	return evs, err
}

// GetTx 按哈希查交易
func (r *Repository) GetTx(ctx context.Context, hash common.Hash) (*TxModel, error) {
	var m TxModel
	err := r.db.GetConn().WithContext(ctx).Where("hash = ?", hash.Hex()).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTxNotFound
	}
	return &m, err
}

// Transaction 在一个数据库事务中执行 fn
func (r *Repository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.GetConn().WithContext(ctx).Transaction(fn)
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db.GetConn().WithContext(ctx)
}

var ErrTxNotFound = errors.New("transaction not found")
