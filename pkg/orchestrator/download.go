package orchestrator

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sealdrive/pkg/core"
	"sealdrive/pkg/session"
	"sealdrive/pkg/types"
	"sealdrive/pkg/vault"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const defaultMimeType = "application/octet-stream"

// Resource 解密后的临时本地文件，调用方用完必须 Release
type Resource struct {
	Path     string
	MimeType string
	Name     string
	Size     int64

	once sync.Once
	dir  string
}

// Release 删除临时文件，可重复调用
func (r *Resource) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() { _ = os.RemoveAll(r.dir) })
}

// Download 解密文件到临时资源
//
// 进度: 10 开始, 40 已鉴权, 60 取得密钥, 75 解密完成, 90 准备写入本地, 100 临时文件就绪
func (o *Orchestrator) Download(ctx context.Context, s *session.Session, cid types.ContentID, progress Progress) (*Resource, error) {
	return o.fetch(ctx, "download", s, cid, progress)
}

// View 与 Download 相同的流程，用于直接展示
func (o *Orchestrator) View(ctx context.Context, s *session.Session, cid types.ContentID, progress Progress) (*Resource, error) {
	return o.fetch(ctx, "view", s, cid, progress)
}

func (o *Orchestrator) fetch(ctx context.Context, op string, s *session.Session, cid types.ContentID, progress Progress) (res *Resource, err error) {
	defer observe(op, time.Now(), &err)
	if err := s.Err(); err != nil {
		return nil, err
	}
	p := newTracker(progress)
	p.set(10)

	// 1. 每次都重新鉴权
	token, err := o.login(ctx, s)
	if err != nil {
		return nil, err
	}
	p.set(40)

	key, err := o.storage.FetchEncryptionKey(ctx, token, cid)
	if err != nil {
		return nil, core.StorageError("fetch key", err)
	}
	p.set(60)

	// 2. 下载 + 解密
	ciphertext, err := o.storage.Download(ctx, token, cid)
	if err != nil {
		return nil, core.StorageError("download", err)
	}
	plain, err := vault.Decrypt(key, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", cid, err)
	}
	p.set(75)

	rec, _ := core.Find(s.Files(), cid)
	info, ierr := o.storage.FileInfo(ctx, cid)
	if ierr != nil {
		o.log.Debug("file info unavailable", zap.String("cid", cid.String()), zap.Error(ierr))
	}
	name := firstNonEmpty(rec.Name, info.Name, cid.String())
	mimeType := resolveMimeType(info.MimeType, rec.MimeType, name, plain)

	p.set(90)

	// 3. 临时资源
	res, err = o.writeTemp(name, plain)
	if err != nil {
		return nil, err
	}
	res.MimeType = mimeType
	p.set(100)
	return res, nil
}

func (o *Orchestrator) writeTemp(name string, data []byte) (*Resource, error) {
	dir, err := os.MkdirTemp(o.cfg.TempDir, "sealdrive-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		base = "download"
	}
	path := filepath.Join(dir, base)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	return &Resource{Path: path, Name: name, Size: int64(len(data)), dir: dir}, nil
}

// resolveMimeType 存储元数据 -> 记录声明的类型 -> 扩展名 -> 内容探测 -> application/octet-stream
func resolveMimeType(stored, declared, name string, data []byte) string {
	if stored != "" {
		return stored
	}
	if declared != "" {
		return declared
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}
	return defaultMimeType
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
