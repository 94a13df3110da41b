// Package identity 把签名身份与派生账户解析成统一的查询地址
package identity

import (
	"context"

	"sealdrive/pkg/core"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Resolver 地址解析器
type Resolver struct {
	signer common.Address
	log    *zap.Logger
}

func NewResolver(signer common.Address, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{signer: signer, log: log}
}

// Signer 返回签名身份地址
func (r *Resolver) Signer() common.Address { return r.signer }

// Resolve 返回主查询地址
// 没有派生账户，或者读取派生地址失败，都回落到签名身份。永不失败。
func (r *Resolver) Resolve(ctx context.Context, acct core.SmartAccount) common.Address {
	if acct == nil {
		return r.signer
	}
	addr, err := acct.AccountAddress(ctx)
	if err != nil {
		r.log.Warn("derived account address unavailable, using signing identity",
			zap.String("signer", r.signer.Hex()), zap.Error(err))
		return r.signer
	}
	if addr == (common.Address{}) {
		return r.signer
	}
	return addr
}

// Identity 一次性解析出完整身份 (Signing + Query)
func (r *Resolver) Identity(ctx context.Context, acct core.SmartAccount) core.Identity {
	return core.Identity{Signing: r.signer, Query: r.Resolve(ctx, acct)}
}
