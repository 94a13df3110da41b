// Package session 持有一次登录期间的上下文：签名者、派生账户句柄、身份与当前文件列表
package session

import (
	"errors"
	"io"
	"sync"

	"sealdrive/pkg/core"
	"sealdrive/pkg/wallet"
)

var ErrClosed = errors.New("session closed")

// Session 传给每一次编排调用
// files 是最后写入者胜出；mu 只保护切片头，不保证操作之间的顺序
type Session struct {
	Signer   wallet.Signer
	Account  core.SmartAccount // nil: 没有派生账户
	Identity core.Identity

	mu     sync.Mutex
	files  []core.FileRecord
	closed bool
}

func New(signer wallet.Signer, acct core.SmartAccount, id core.Identity) *Session {
	return &Session{Signer: signer, Account: acct, Identity: id, files: []core.FileRecord{}}
}

// Files 返回当前列表的副本
func (s *Session) Files() []core.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.FileRecord, len(s.files))
	copy(out, s.files)
	return out
}

func (s *Session) SetFiles(recs []core.FileRecord) {
	if recs == nil {
		recs = []core.FileRecord{}
	}
	s.mu.Lock()
	s.files = recs
	s.mu.Unlock()
}

// Err 会话已关闭时返回 ErrClosed
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close 释放派生账户连接，可重复调用
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.files = nil
	s.mu.Unlock()

	if c, ok := s.Account.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
