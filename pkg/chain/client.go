// Package chain 真实链上的读写：费用估算、自付费交易与合约绑定
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"sealdrive/pkg/core"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Backend 节点能力的最小集合 (ethclient 与模拟链都满足)
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ethereum.ChainIDReader
}

// Client 面向注册表的链客户端
type Client struct {
	backend  Backend
	chainID  *big.Int
	signer   wallet.Signer
	registry common.Address
	contract *bind.BoundContract
	log      *zap.Logger
	closer   func()
}

// Dial 连接节点
func Dial(ctx context.Context, url string, registryAddr common.Address, signer wallet.Signer, log *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	c, err := New(ctx, eth, registryAddr, signer, log)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.closer = eth.Close
	return c, nil
}

// New 基于任意 Backend 构建 (测试中使用模拟链)
func New(ctx context.Context, backend Backend, registryAddr common.Address, signer wallet.Signer, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return &Client{
		backend:  backend,
		chainID:  chainID,
		signer:   signer,
		registry: registryAddr,
		contract: bind.NewBoundContract(registryAddr, registry.ABI(), backend, backend, backend),
		log:      log,
	}, nil
}

func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

func (c *Client) Registry() common.Address { return c.registry }

// Caller 用于 registry.NewContract 的只读调用
func (c *Client) Caller() ethereum.ContractCaller { return c.backend }

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// FeeData EIP-1559 费用: maxFee = 2*baseFee + tip
func (c *Client) FeeData(ctx context.Context) (*big.Int, *big.Int, error) {
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("latest header: %w", err)
	}
	if head.BaseFee == nil {
		return nil, nil, errors.New("chain does not support EIP-1559")
	}
	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return maxFee, tip, nil
}

// Send 自付费路径: 估算 gas 与费用后由签名身份直接发送
func (c *Client) Send(ctx context.Context, call core.Call) (core.PendingTx, error) {
	from := c.signer.Address()

	maxFee, tip, err := c.FeeData(ctx)
	if err != nil {
		return nil, err
	}
	to := call.To
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: call.Data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gas,
		To:        &to,
		Data:      call.Data,
	})
	signed, err := c.signer.SignTx(ctx, tx, c.chainID)
	if err != nil {
		return nil, err
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	c.log.Debug("self-funded transaction sent", zap.String("tx", signed.Hash().Hex()))
	return &pendingTx{tx: signed, backend: c.backend}, nil
}

// Bind 预先绑定的注册表调用 (自付费路径的 direct 回调)
func (c *Client) Bind(method string, args ...any) core.DirectFunc {
	return func(ctx context.Context) (core.PendingTx, error) {
		opts := &bind.TransactOpts{
			From:    c.signer.Address(),
			Context: ctx,
			Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
				if addr != c.signer.Address() {
					return nil, bind.ErrNotAuthorized
				}
				return c.signer.SignTx(ctx, tx, c.chainID)
			},
		}
		tx, err := c.contract.Transact(opts, method, args...)
		if err != nil {
			return nil, err
		}
		return &pendingTx{tx: tx, backend: c.backend}, nil
	}
}

// pendingTx 已广播、等待打包的交易
type pendingTx struct {
	tx      *types.Transaction
	backend bind.DeployBackend
}

func (p *pendingTx) Hash() common.Hash { return p.tx.Hash() }

func (p *pendingTx) Wait(ctx context.Context) (*core.Receipt, error) {
	r, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	var block uint64
	if r.BlockNumber != nil {
		block = r.BlockNumber.Uint64()
	}
	return &core.Receipt{TxHash: r.TxHash, Status: r.Status, BlockNumber: block}, nil
}
