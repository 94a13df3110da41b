package ledger

import (
	"context"
	"fmt"
	"math/big"

	"sealdrive/pkg/core"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	devTip     = big.NewInt(1_000_000_000)
	devBaseFee = big.NewInt(1_000_000_000)
)

const devGasLimit = 200_000

// FeeData 固定费用: tip = 1 gwei, maxFee = 2*baseFee + tip
func (d *Devnet) FeeData(context.Context) (*big.Int, *big.Int, error) {
	maxFee := new(big.Int).Mul(devBaseFee, big.NewInt(2))
	maxFee.Add(maxFee, devTip)
	return maxFee, new(big.Int).Set(devTip), nil
}

// Sender devnet 上的自付费路径
// 交易由签名身份签名 (会经过钱包确认)，再按恢复出的发送方执行
type Sender struct {
	net    *Devnet
	signer wallet.Signer
}

func NewSender(net *Devnet, signer wallet.Signer) *Sender {
	return &Sender{net: net, signer: signer}
}

func (s *Sender) Send(ctx context.Context, call core.Call) (core.PendingTx, error) {
	nonce, err := s.net.repo.NextNonce(ctx, nil, s.signer.Address())
	if err != nil {
		return nil, err
	}
	maxFee, tip, _ := s.net.FeeData(ctx)

	to := call.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.net.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       devGasLimit,
		To:        &to,
		Data:      call.Data,
	})
	signed, err := s.signer.SignTx(ctx, tx, s.net.chainID)
	if err != nil {
		return nil, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(s.net.chainID), signed)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}

	receipt, err := s.net.Apply(ctx, from, call)
	if err != nil {
		return nil, err
	}
	return &minedTx{receipt: receipt}, nil
}

// Bind 预先绑定合约调用，作为执行器的 direct 回调
func (s *Sender) Bind(method string, args ...any) core.DirectFunc {
	return func(ctx context.Context) (core.PendingTx, error) {
		data, err := registry.ABI().Pack(method, args...)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		return s.Send(ctx, core.Call{To: s.net.registry, Data: data})
	}
}

// minedTx devnet 上交易立即出块
type minedTx struct {
	receipt *core.Receipt
}

func (m *minedTx) Hash() common.Hash { return m.receipt.TxHash }

func (m *minedTx) Wait(ctx context.Context) (*core.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.receipt, nil
}
