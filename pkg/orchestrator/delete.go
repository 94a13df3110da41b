package orchestrator

import (
	"context"
	"fmt"
	"time"

	"sealdrive/pkg/core"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/session"
	"sealdrive/pkg/types"
	"sealdrive/pkg/vault"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Delete 取消固定并从注册表删除
//
// 进度: 10 开始, 30 已鉴权, 50 找到记录, 70 已取消固定, 80 提交交易, 90 交易确认, 100 列表已更新
func (o *Orchestrator) Delete(ctx context.Context, s *session.Session, cid types.ContentID, progress Progress) (err error) {
	defer observe("delete", time.Now(), &err)
	if err := s.Err(); err != nil {
		return err
	}
	p := newTracker(progress)
	p.set(10)

	token, err := o.login(ctx, s)
	if err != nil {
		return err
	}
	p.set(30)

	// 1. cid -> 存储记录 ID
	// 线性扫描上传列表，记录很多时是 O(n)
	uploads, err := o.storage.Uploads(ctx, token)
	if err != nil {
		return core.StorageError("list uploads", err)
	}
	id := o.owner(ctx, s)
	up, ok := findUpload(uploads, cid)
	if !ok && !o.registered(ctx, id.Query, cid) {
		return fmt.Errorf("%w: %s", core.ErrNotFound, cid)
	}
	p.set(50)

	// 2. 取消固定，失败可容忍
	// 存储记录已经不在 (上次删除只完成了一半) 时直接跳过
	if !ok {
		o.log.Warn("storage record missing, continuing with registry delete", zap.String("cid", cid.String()))
	} else if err := o.storage.DeleteFile(ctx, token, up.ID); err != nil {
		o.log.Warn("unpin failed, continuing with registry delete",
			zap.String("cid", cid.String()), zap.String("record", up.ID.String()), zap.Error(err))
	}
	p.set(70)

	// 3. 注册表删除，失败则文件保持在列表中
	call, err := registry.DeleteCall(o.cfg.Registry, cid)
	if err != nil {
		return err
	}
	guard := o.guardFor(ctx, id.Query, cid, false)
	p.set(80)
	if _, err := o.exec.Execute(ctx, s.Account, call, o.bind(registry.MethodDelete, cid.String()), guard...); err != nil {
		return fmt.Errorf("unregister %s: %w", cid, err)
	}
	p.set(90)

	// 4. 更新列表
	o.persist(ctx, s, id, core.Without(s.Files(), cid))
	p.set(100)
	return nil
}

// registered 注册表里是否还有这条记录，读取失败按不存在处理
func (o *Orchestrator) registered(ctx context.Context, owner common.Address, cid types.ContentID) bool {
	exists, err := o.reader.FileExistsForUser(ctx, owner, cid)
	if err != nil {
		o.log.Warn("registry lookup failed", zap.String("cid", cid.String()), zap.Error(err))
		return false
	}
	return exists
}

func findUpload(uploads []vault.Upload, cid types.ContentID) (vault.Upload, bool) {
	for _, u := range uploads {
		if u.ContentID == cid {
			return u, true
		}
	}
	return vault.Upload{}, false
}
