package txexec

import (
	"context"
	"errors"
	"math/big"

	"sealdrive/pkg/core"

	"github.com/ethereum/go-ethereum/common"
)

// codeError 模拟中继返回的 JSON-RPC 错误 (实现 rpc.Error)
type codeError struct {
	code int
	msg  string
}

func (e *codeError) Error() string  { return e.msg }
func (e *codeError) ErrorCode() int { return e.code }

type fixedFees struct{ err error }

func (f fixedFees) FeeData(context.Context) (*big.Int, *big.Int, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return big.NewInt(2_000_000_000), big.NewInt(1_000_000_000), nil
}

// spyOp 可控的 UserOp
type spyOp struct {
	hash    common.Hash
	hashErr error
	receipt *core.Receipt
	waitErr error
}

func (o *spyOp) WaitForTxHash(context.Context) (common.Hash, error) { return o.hash, o.hashErr }
func (o *spyOp) Wait(context.Context) (*core.Receipt, error)         { return o.receipt, o.waitErr }

// SpyAccount 记录所有提交的赞助交易
type SpyAccount struct {
	addr    common.Address
	op      *spyOp
	sendErr error
	sent    []core.SponsoredTx
}

func (a *SpyAccount) AccountAddress(context.Context) (common.Address, error) { return a.addr, nil }

func (a *SpyAccount) SendTransaction(_ context.Context, tx core.SponsoredTx) (core.UserOp, error) {
	a.sent = append(a.sent, tx)
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	return a.op, nil
}

type spyPending struct {
	hash    common.Hash
	receipt *core.Receipt
	err     error
}

func (p *spyPending) Hash() common.Hash                            { return p.hash }
func (p *spyPending) Wait(context.Context) (*core.Receipt, error) { return p.receipt, p.err }

// SpySender 记录自付费路径上发送的调用
type SpySender struct {
	pending *spyPending
	err     error
	calls   []core.Call
}

func (s *SpySender) Send(_ context.Context, call core.Call) (core.PendingTx, error) {
	s.calls = append(s.calls, call)
	if s.err != nil {
		return nil, s.err
	}
	return s.pending, nil
}

func okPending(h common.Hash) *spyPending {
	return &spyPending{hash: h, receipt: &core.Receipt{TxHash: h, Status: core.ReceiptStatusSuccessful}}
}

var errBoom = errors.New("boom")
