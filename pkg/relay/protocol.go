// Package relay 代付中继：基于 JSON-RPC 的派生账户 (smart account) 客户端与本地服务端
package relay

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// JSON-RPC 命名空间与方法
const (
	Namespace = "relay"

	methodChainID      = "relay_chainId"
	methodAccount      = "relay_getSmartAccountAddress"
	methodPrepare      = "relay_prepareUserOperation"
	methodSend         = "relay_sendUserOperation"
	methodStatus       = "relay_getUserOperationStatus"
	apiKeyHeader       = "x-api-key"
	modeSponsored      = "SPONSORED"
	derivedAccountSalt = 0
)

// 用户操作状态
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// PaymasterServiceData 赞助参数
type PaymasterServiceData struct {
	Mode string `json:"mode"`
}

// UserOperation 提交给中继的交易
// 费用字段按 hex 编码 (0x...)
type UserOperation struct {
	Owner                common.Address       `json:"owner"`
	Sender               common.Address       `json:"sender"`
	To                   common.Address       `json:"to"`
	Data                 hexutil.Bytes        `json:"data"`
	MaxFeePerGas         *hexutil.Big         `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big         `json:"maxPriorityFeePerGas"`
	PaymasterServiceData PaymasterServiceData `json:"paymasterServiceData"`
}

// OperationStatus relay_getUserOperationStatus 的返回
type OperationStatus struct {
	Status          string          `json:"status"`
	TransactionHash *common.Hash    `json:"transactionHash,omitempty"`
	BlockNumber     *hexutil.Uint64 `json:"blockNumber,omitempty"`
	Reason          string          `json:"reason,omitempty"`
}

// DeriveAddress 派生账户地址 (确定性，不依赖链上状态)
func DeriveAddress(owner common.Address) common.Address {
	return crypto.CreateAddress(owner, derivedAccountSalt)
}

// PreparedOperation relay_prepareUserOperation 的返回：操作 ID 与待签名摘要
type PreparedOperation struct {
	ID   string      `json:"id"`
	Hash common.Hash `json:"hash"`
}

// OperationHash 用户需要签名的摘要
func OperationHash(chainID *big.Int, nonce uint64, op UserOperation) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(chainID.Bytes(), 32),
		new(big.Int).SetUint64(nonce).FillBytes(make([]byte, 8)),
		op.Sender.Bytes(),
		op.To.Bytes(),
		op.Data,
		common.LeftPadBytes(bigOf(op.MaxFeePerGas).Bytes(), 32),
		common.LeftPadBytes(bigOf(op.MaxPriorityFeePerGas).Bytes(), 32),
		[]byte(op.PaymasterServiceData.Mode),
	)
}

func bigOf(b *hexutil.Big) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b.ToInt()
}
