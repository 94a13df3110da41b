// Package ledger 本地 devnet：用关系数据库实现文件注册表合约的语义
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config 数据库配置
type Config struct {
	Driver string // "sqlite" | "postgres"
	DSN    string
}

// DB 封装了 GORM 实例
type DB struct {
	conn *gorm.DB
}

// NewDB 初始化数据库连接并迁移表结构
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported ledger driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ledger ping failed: %w", err)
	}

	d := &DB{conn: db}
	if err := d.Migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithConn 复用现有的 GORM 连接 (测试用内存 sqlite)
func NewWithConn(conn *gorm.DB) *DB {
	return &DB{conn: conn}
}

// Migrate 迁移账本表结构
func (d *DB) Migrate() error {
	if err := d.conn.AutoMigrate(&FileEntry{}, &TxModel{}, &Event{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}

func (d *DB) GetConn() *gorm.DB {
	return d.conn
}

// Close 关闭底层连接
func (d *DB) Close() error {
	sqlDB, err := d.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
