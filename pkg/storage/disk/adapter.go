package disk

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sealdrive/pkg/storage"
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 比如: /home/user/.sealdrive/vault
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout 返回键对应的物理路径: "objects/Qm..." -> root/objects/Qm...
func (s *Adapter) layout(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.rootPath, filepath.FromSlash(key)), nil
}

func (s *Adapter) Put(ctx context.Context, key string, data []byte, _ string) error {
	targetPath, err := s.layout(key)
	if err != nil {
		return err
	}

	// 1. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 2. 原子写入: 先写临时文件再 Rename
	// 保证要么文件不存在，要么文件是完整的
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// 3. 移动到最终位置
	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	targetPath, err := s.layout(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(targetPath)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, key string) (bool, error) {
	targetPath, err := s.layout(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(targetPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Adapter) Delete(ctx context.Context, key string) error {
	targetPath, err := s.layout(key)
	if err != nil {
		return err
	}
	err = os.Remove(targetPath)
	if os.IsNotExist(err) {
		return storage.ErrNotFound
	}
	return err
}

// List 遍历前缀所在目录，跳过写入中的临时文件
func (s *Adapter) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.rootPath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
