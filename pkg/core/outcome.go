package core

import (
	"context"
	"math/big"

	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum/common"
)

// Call 是一个准备好的状态变更调用 (target + calldata)
type Call struct {
	To   common.Address
	Data []byte
}

// Outcome (TransactionOutcome) 一次状态变更尝试的结果
// 每次操作构造一次，之后不再修改，由 Orchestrator 立即消费
type Outcome struct {
	Succeeded bool
	Hash      types.TxHash // 只有 Succeeded 时才有值
	Sponsored bool         // false: 发生了回退，或根本没有赞助句柄
}

// Receipt 是两条执行路径共用的最小回执
type Receipt struct {
	TxHash      common.Hash
	Status      uint64 // 1 成功, 0 回滚
	BlockNumber uint64
}

const (
	ReceiptStatusFailed     uint64 = 0
	ReceiptStatusSuccessful uint64 = 1
)

// SponsorshipMode 赞助模式标记
const SponsorshipMode = "SPONSORED"

// SponsoredTx 是提交给中继的交易 ({to, data} + 费用字段 + 赞助模式)
type SponsoredTx struct {
	To                   common.Address
	Data                 []byte
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Mode                 string
}

// UserOp 是中继接收后返回的句柄：先拿到临时哈希，再等待确认回执
type UserOp interface {
	WaitForTxHash(ctx context.Context) (common.Hash, error)
	Wait(ctx context.Context) (*Receipt, error)
}

// SmartAccount 是派生账户句柄 (赞助句柄)
// nil 表示没有派生账户，只能走自付费路径
type SmartAccount interface {
	AccountAddress(ctx context.Context) (common.Address, error)
	SendTransaction(ctx context.Context, tx SponsoredTx) (UserOp, error)
}

// PendingTx 自付费路径上已广播的交易
type PendingTx interface {
	Hash() common.Hash
	Wait(ctx context.Context) (*Receipt, error)
}

// DirectFunc 预先绑定好的合约调用 (自付费路径的回调)
type DirectFunc func(ctx context.Context) (PendingTx, error)
