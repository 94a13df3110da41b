package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Store 是加密存储网络的底层 blob 存储
// 键为 "/" 分隔的逻辑路径 (例如 "objects/Qm...")，可以是本地磁盘或 S3
type Store interface {
	// Put 持久化一个对象 (同键覆盖)
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get 读取对象。返回 io.ReadCloser 以便流式读取大文件
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Has 检查对象是否存在
	Has(ctx context.Context, key string) (bool, error)

	// Delete 删除对象，不存在时返回 ErrNotFound
	Delete(ctx context.Context, key string) error

	// List 列出前缀下的所有键 (按字典序)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ValidateKey 拒绝空键、绝对路径以及 ".." 片段
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
