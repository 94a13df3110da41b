// Package txexec 执行注册表状态变更：优先走代付 (sponsored) 路径，失败后回退到自付费路径
package txexec

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"sealdrive/pkg/core"
	"sealdrive/pkg/metrics"
	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// FeeOracle 提供当前 EIP-1559 费用
type FeeOracle interface {
	FeeData(ctx context.Context) (maxFee, tip *big.Int, err error)
}

// DirectSender 自付费路径：估算 gas 后由签名身份直接广播
type DirectSender interface {
	Send(ctx context.Context, call core.Call) (core.PendingTx, error)
}

// Guard 回退前的检查：返回 true 表示赞助交易其实已经生效，不应再提交一次
type Guard func(ctx context.Context) (applied bool, err error)

type Option func(*options)

type options struct {
	guard Guard
}

// WithGuard 安装回退前检查
func WithGuard(g Guard) Option {
	return func(o *options) { o.guard = g }
}

var errNoReceipt = errors.New("transaction receipt not received")

// Executor 交易执行器
type Executor struct {
	fees   FeeOracle
	direct DirectSender
	log    *zap.Logger
}

func NewExecutor(fees FeeOracle, direct DirectSender, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{fees: fees, direct: direct, log: log}
}

// Execute 执行一次状态变更
//
//  1. 没有派生账户 -> 直接自付费
//  2. 代付提交，等待临时哈希和回执
//  3. 失败: 用户拒绝直接返回；其余情况 (可选的 guard 检查后) 回退到自付费
//
// direct 为预先绑定好的合约调用，可为 nil (此时用 DirectSender 发送 call)
func (e *Executor) Execute(ctx context.Context, acct core.SmartAccount, call core.Call, direct core.DirectFunc, opts ...Option) (core.Outcome, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if acct == nil {
		return e.selfFunded(ctx, call, direct, metrics.PathSelfFunded)
	}

	hash, err := e.sponsored(ctx, acct, call)
	if err == nil {
		metrics.TxTotal.WithLabelValues(metrics.PathSponsored, "ok").Inc()
		return core.Outcome{Succeeded: true, Hash: types.TxHash(hash.Hex()), Sponsored: true}, nil
	}
	metrics.TxTotal.WithLabelValues(metrics.PathSponsored, "error").Inc()

	class := Classify(err)
	if !class.Fallback() {
		e.log.Info("sponsored transaction rejected by user", zap.Error(err))
		return core.Outcome{}, core.ErrUserRejected
	}

	e.log.Warn("sponsored transaction failed, falling back to self-funded",
		zap.String("class", class.String()), zap.Error(err))

	if o.guard != nil {
		applied, gerr := o.guard(ctx)
		switch {
		case gerr != nil:
			e.log.Warn("pre-fallback check failed, resubmitting anyway", zap.Error(gerr))
		case applied:
			e.log.Info("sponsored write already applied, skipping fallback",
				zap.String("provisional_hash", hashString(hash)))
			metrics.TxTotal.WithLabelValues(metrics.PathGuarded, "ok").Inc()
			return core.Outcome{Succeeded: true, Hash: types.TxHash(hashString(hash)), Sponsored: true}, nil
		}
	}

	return e.selfFunded(ctx, call, direct, metrics.PathSelfFunded)
}

// sponsored 走中继提交
// 即使失败，也返回已拿到的临时哈希 (guard 命中时使用)
func (e *Executor) sponsored(ctx context.Context, acct core.SmartAccount, call core.Call) (common.Hash, error) {
	if len(call.Data) == 0 || call.To == (common.Address{}) {
		return common.Hash{}, errors.New("invalid transaction structure")
	}
	if e.fees == nil {
		return common.Hash{}, errors.New("gas estimator unavailable")
	}

	maxFee, tip, err := e.fees.FeeData(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fee data: %w", err)
	}

	op, err := acct.SendTransaction(ctx, core.SponsoredTx{
		To:                   call.To,
		Data:                 call.Data,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tip,
		Mode:                 core.SponsorshipMode,
	})
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := op.WaitForTxHash(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	if hash == (common.Hash{}) {
		return common.Hash{}, errors.New("no transaction hash received")
	}

	receipt, err := op.Wait(ctx)
	if err != nil {
		return hash, err
	}
	if receipt == nil {
		return hash, errNoReceipt
	}
	if receipt.Status != core.ReceiptStatusSuccessful {
		return hash, fmt.Errorf("sponsored operation %s failed on chain", hash.Hex())
	}
	return hash, nil
}

// selfFunded 自付费路径
func (e *Executor) selfFunded(ctx context.Context, call core.Call, direct core.DirectFunc, path string) (core.Outcome, error) {
	out, err := e.sendDirect(ctx, call, direct)
	metrics.TxTotal.WithLabelValues(path, metrics.Result(err)).Inc()
	if err != nil {
		e.log.Error("self-funded transaction failed", zap.Error(err))
		return core.Outcome{}, directFailure(err)
	}
	return out, nil
}

func (e *Executor) sendDirect(ctx context.Context, call core.Call, direct core.DirectFunc) (core.Outcome, error) {
	var (
		pending core.PendingTx
		err     error
	)
	switch {
	case direct != nil:
		pending, err = direct(ctx)
	case e.direct != nil:
		pending, err = e.direct.Send(ctx, call)
	default:
		err = errors.New("no direct sender configured")
	}
	if err != nil {
		return core.Outcome{}, err
	}

	receipt, err := pending.Wait(ctx)
	if err != nil {
		return core.Outcome{}, err
	}
	if receipt == nil {
		return core.Outcome{}, errNoReceipt
	}
	if receipt.Status != core.ReceiptStatusSuccessful {
		return core.Outcome{}, fmt.Errorf("transaction %s reverted", receipt.TxHash.Hex())
	}

	hash := receipt.TxHash
	if hash == (common.Hash{}) {
		hash = pending.Hash()
	}
	return core.Outcome{Succeeded: true, Hash: types.TxHash(hash.Hex()), Sponsored: false}, nil
}

func hashString(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}
