package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sealdrive/pkg/core"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/session"
	"sealdrive/pkg/vault"

	"go.uber.org/zap"
)

var ErrEmptyName = errors.New("file name cannot be empty")

// UploadRequest 待上传的明文文件
type UploadRequest struct {
	Name     string
	MimeType string
	Data     []byte
}

// Upload 加密上传并登记到注册表
//
// 进度: 10 开始, 30 已鉴权, 30-70 上传中, 75 已解析写入地址, 80 提交交易, 90 交易确认, 100 列表已更新
func (o *Orchestrator) Upload(ctx context.Context, s *session.Session, req UploadRequest, progress Progress) (rec core.FileRecord, err error) {
	defer observe("upload", time.Now(), &err)
	if err := s.Err(); err != nil {
		return core.FileRecord{}, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return core.FileRecord{}, ErrEmptyName
	}
	if len(req.Data) > MaxFileSize {
		return core.FileRecord{}, ErrFileTooLarge
	}
	p := newTracker(progress)
	p.set(10)

	// 1. 存储网络会话
	token, err := o.login(ctx, s)
	if err != nil {
		return core.FileRecord{}, err
	}
	p.set(30)

	// 2. 加密上传
	up, err := o.storage.UploadEncrypted(ctx, token, vault.File{
		Name:     req.Name,
		MimeType: req.MimeType,
		Data:     req.Data,
	}, p.band(30, 70))
	if err != nil {
		return core.FileRecord{}, core.StorageError("upload", err)
	}
	p.set(70)
	o.log.Info("encrypted upload stored", zap.String("cid", up.ContentID.String()), zap.String("name", req.Name))

	// 3. 写入地址
	id := o.owner(ctx, s)
	p.set(75)

	// 4. 注册表登记 (代付优先，失败回退)
	call, err := registry.UploadCall(o.cfg.Registry, up.ContentID, req.Name)
	if err != nil {
		return core.FileRecord{}, err
	}
	guard := o.guardFor(ctx, id.Query, up.ContentID, true)
	p.set(80)
	outcome, err := o.exec.Execute(ctx, s.Account, call,
		o.bind(registry.MethodUpload, up.ContentID.String(), req.Name), guard...)
	if err != nil {
		return core.FileRecord{}, fmt.Errorf("register %s: %w", up.ContentID, err)
	}
	p.set(90)

	// 5. 更新列表
	rec = core.FileRecord{
		ContentID: up.ContentID,
		Name:      req.Name,
		Size:      int64(len(req.Data)),
		MimeType:  req.MimeType,
		Owner:     id.Query,
		CreatedAt: o.now().UTC(),
		Encrypted: true,
		TxHash:    outcome.Hash,
		Sponsored: outcome.Sponsored,
	}
	o.persist(ctx, s, id, core.Prepend(rec, s.Files()))
	p.set(100)
	return rec, nil
}
