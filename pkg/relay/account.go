package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"sealdrive/pkg/core"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// HashSigner 派生账户的所有者，负责对用户操作摘要签名
type HashSigner interface {
	Address() common.Address
	SignHash(ctx context.Context, hash common.Hash) ([]byte, error)
}

// Config 中继连接参数
type Config struct {
	URL     string
	APIKey  string
	ChainID int64
}

// Account 通过中继提交交易的派生账户 (实现 core.SmartAccount)
type Account struct {
	client *rpc.Client
	owner  HashSigner
	poll   time.Duration

	mu   sync.Mutex
	addr common.Address
}

type AccountOption func(*Account)

// WithPollInterval 状态轮询间隔
func WithPollInterval(d time.Duration) AccountOption {
	return func(a *Account) { a.poll = d }
}

func NewAccount(client *rpc.Client, owner HashSigner, opts ...AccountOption) *Account {
	a := &Account{client: client, owner: owner, poll: time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect 创建派生账户句柄
// 凭证缺失、链 ID 不匹配、或者任何创建失败，都返回 nil (调用方走自付费路径)
func Connect(ctx context.Context, cfg Config, networkChainID *big.Int, owner HashSigner, log *zap.Logger, opts ...AccountOption) core.SmartAccount {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.URL == "" || cfg.APIKey == "" {
		log.Warn("relay credentials missing, sponsored transactions disabled")
		return nil
	}
	if networkChainID == nil || networkChainID.Int64() != cfg.ChainID {
		log.Warn("wrong network for sponsored transactions",
			zap.Int64("expected", cfg.ChainID), zap.Stringer("actual", networkChainID))
		return nil
	}

	client, err := rpc.DialOptions(ctx, cfg.URL, rpc.WithHeader(apiKeyHeader, cfg.APIKey))
	if err != nil {
		log.Warn("relay dial failed", zap.Error(err))
		return nil
	}

	acct, err := Attach(ctx, client, cfg.ChainID, owner, opts...)
	if err != nil {
		log.Warn("smart account creation failed", zap.Error(err))
		client.Close()
		return nil
	}
	return acct
}

// Attach 在已有的 rpc 连接上创建派生账户，并校验中继的链 ID 与账户地址
func Attach(ctx context.Context, client *rpc.Client, chainID int64, owner HashSigner, opts ...AccountOption) (*Account, error) {
	var remote hexutil.Big
	if err := client.CallContext(ctx, &remote, methodChainID); err != nil {
		return nil, fmt.Errorf("relay chain id: %w", err)
	}
	if remote.ToInt().Int64() != chainID {
		return nil, fmt.Errorf("relay serves chain %s, want %d", remote.ToInt(), chainID)
	}

	acct := NewAccount(client, owner, opts...)
	if _, err := acct.AccountAddress(ctx); err != nil {
		return nil, err
	}
	return acct, nil
}

// AccountAddress 派生账户地址，首次成功后缓存
func (a *Account) AccountAddress(ctx context.Context) (common.Address, error) {
	a.mu.Lock()
	cached := a.addr
	a.mu.Unlock()
	if cached != (common.Address{}) {
		return cached, nil
	}

	var addr common.Address
	if err := a.client.CallContext(ctx, &addr, methodAccount, a.owner.Address()); err != nil {
		return common.Address{}, err
	}
	if addr == (common.Address{}) {
		return common.Address{}, errors.New("no address returned")
	}

	a.mu.Lock()
	a.addr = addr
	a.mu.Unlock()
	return addr, nil
}

// SendTransaction 准备、签名并提交一笔用户操作
func (a *Account) SendTransaction(ctx context.Context, tx core.SponsoredTx) (core.UserOp, error) {
	sender, err := a.AccountAddress(ctx)
	if err != nil {
		return nil, err
	}

	op := UserOperation{
		Owner:                a.owner.Address(),
		Sender:               sender,
		To:                   tx.To,
		Data:                 tx.Data,
		MaxFeePerGas:         (*hexutil.Big)(tx.MaxFeePerGas),
		MaxPriorityFeePerGas: (*hexutil.Big)(tx.MaxPriorityFeePerGas),
		PaymasterServiceData: PaymasterServiceData{Mode: tx.Mode},
	}

	// 1. 中继计算待签名摘要
	var prepared PreparedOperation
	if err := a.client.CallContext(ctx, &prepared, methodPrepare, op); err != nil {
		return nil, err
	}

	// 2. 所有者签名 (用户可能在这里拒绝)
	sig, err := a.owner.SignHash(ctx, prepared.Hash)
	if err != nil {
		return nil, err
	}

	// 3. 提交
	var id string
	if err := a.client.CallContext(ctx, &id, methodSend, prepared.ID, hexutil.Bytes(sig)); err != nil {
		return nil, err
	}
	return &userOp{client: a.client, id: id, poll: a.poll}, nil
}

// Close 关闭 rpc 连接
func (a *Account) Close() error {
	a.client.Close()
	return nil
}

var _ core.SmartAccount = (*Account)(nil)

// userOp 已提交的用户操作，通过轮询状态等待结果
type userOp struct {
	client *rpc.Client
	id     string
	poll   time.Duration
}

func (o *userOp) status(ctx context.Context) (*OperationStatus, error) {
	var st OperationStatus
	if err := o.client.CallContext(ctx, &st, methodStatus, o.id); err != nil {
		return nil, err
	}
	if st.Status == StatusFailed {
		return &st, &OperationError{ID: o.id, Reason: st.Reason}
	}
	return &st, nil
}

// await 轮询直到 done 返回 true
func (o *userOp) await(ctx context.Context, done func(*OperationStatus) bool) (*OperationStatus, error) {
	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()
	for {
		st, err := o.status(ctx)
		if err != nil {
			return st, err
		}
		if done(st) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *userOp) WaitForTxHash(ctx context.Context) (common.Hash, error) {
	st, err := o.await(ctx, func(s *OperationStatus) bool { return s.TransactionHash != nil })
	if err != nil {
		return common.Hash{}, err
	}
	return *st.TransactionHash, nil
}

func (o *userOp) Wait(ctx context.Context) (*core.Receipt, error) {
	st, err := o.await(ctx, func(s *OperationStatus) bool { return s.Status == StatusConfirmed })
	if err != nil {
		return nil, err
	}
	r := &core.Receipt{Status: core.ReceiptStatusSuccessful}
	if st.TransactionHash != nil {
		r.TxHash = *st.TransactionHash
	}
	if st.BlockNumber != nil {
		r.BlockNumber = uint64(*st.BlockNumber)
	}
	return r, nil
}
