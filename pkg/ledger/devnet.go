package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"sealdrive/pkg/core"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultRegistry devnet 上注册表的固定地址
var DefaultRegistry = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// Devnet 进程内的单节点链：只承载注册表合约
// 写操作串行执行，一笔交易一个区块
type Devnet struct {
	repo     *Repository
	registry common.Address
	chainID  *big.Int
	deployer common.Address
	now      func() time.Time
	log      *zap.Logger

	mu sync.Mutex
}

type DevnetOption func(*Devnet)

// WithClock 替换区块时间来源 (测试用)
func WithClock(now func() time.Time) DevnetOption {
	return func(d *Devnet) { d.now = now }
}

// WithDeployer 设置合约 owner()
func WithDeployer(addr common.Address) DevnetOption {
	return func(d *Devnet) { d.deployer = addr }
}

func NewDevnet(repo *Repository, chainID int64, log *zap.Logger, opts ...DevnetOption) *Devnet {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Devnet{
		repo:     repo,
		registry: DefaultRegistry,
		chainID:  big.NewInt(chainID),
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Devnet) Registry() common.Address { return d.registry }

func (d *Devnet) ChainID() *big.Int { return new(big.Int).Set(d.chainID) }

func (d *Devnet) Repository() *Repository { return d.repo }

// Apply 以 from 的身份执行一笔交易
// revert 时返回 *registry.RevertError，且不产生任何状态变化
func (d *Devnet) Apply(ctx context.Context, from common.Address, call core.Call) (*core.Receipt, error) {
	if call.To != d.registry {
		return nil, fmt.Errorf("devnet: no contract at %s", call.To.Hex())
	}
	if len(call.Data) < 4 {
		return nil, errors.New("devnet: calldata too short")
	}
	abi := registry.ABI()
	method, err := abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, fmt.Errorf("devnet: %w", err)
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("devnet: decode %s: %w", method.Name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var receipt *core.Receipt
	err = d.repo.Transaction(ctx, func(tx *gorm.DB) error {
		ts := d.now()

		// 1. 合约逻辑
		switch method.Name {
		case registry.MethodUpload:
			if err := d.repo.UploadFile(ctx, tx, from, types.ContentID(args[0].(string)), args[1].(string), ts); err != nil {
				return err
			}
		case registry.MethodDelete:
			if err := d.repo.DeleteFile(ctx, tx, from, types.ContentID(args[0].(string))); err != nil {
				return err
			}
		default:
			return fmt.Errorf("devnet: %s is not a transaction", method.Name)
		}

		// 2. 打包交易
		nonce, err := d.repo.NextNonce(ctx, tx, from)
		if err != nil {
			return err
		}
		hash := txHash(d.chainID, from, nonce, call.Data)
		block, err := d.repo.RecordTx(ctx, tx, &TxModel{
			Hash:   hash.Hex(),
			From:   from.Hex(),
			To:     call.To.Hex(),
			Method: method.Name,
			Nonce:  nonce,
			Status: core.ReceiptStatusSuccessful,
		})
		if err != nil {
			return err
		}

		// 3. 事件
		switch method.Name {
		case registry.MethodUpload:
			err = d.repo.EmitEvent(ctx, tx, registry.EventFileUploaded, from, hash, block, map[string]any{
				"cid": args[0], "name": args[1], "timestamp": ts.Unix(),
			})
		case registry.MethodDelete:
			err = d.repo.EmitEvent(ctx, tx, registry.EventFileDeleted, from, hash, block, map[string]any{
				"cid": args[0],
			})
		}
		if err != nil {
			return err
		}

		receipt = &core.Receipt{TxHash: hash, Status: core.ReceiptStatusSuccessful, BlockNumber: block}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.log.Debug("devnet transaction applied",
		zap.String("method", method.Name),
		zap.String("from", from.Hex()),
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber))
	return receipt, nil
}

// CallContract 实现 ethereum.ContractCaller，用于 view 调用
func (d *Devnet) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || *msg.To != d.registry {
		return nil, nil
	}
	if len(msg.Data) < 4 {
		return nil, errors.New("devnet: calldata too short")
	}
	abi := registry.ABI()
	method, err := abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case registry.MethodGetFiles:
		entries, err := d.repo.GetFiles(ctx, args[0].(common.Address))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(registry.Tuples(entries))
	case registry.MethodExists:
		ok, err := d.repo.FileExists(ctx, args[0].(common.Address), types.ContentID(args[1].(string)))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(ok)
	case registry.MethodCount:
		n, err := d.repo.FileCount(ctx, args[0].(common.Address))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(n))
	case registry.MethodOwner:
		return method.Outputs.Pack(d.deployer)
	}
	return nil, fmt.Errorf("devnet: %s is not a view function", method.Name)
}

func txHash(chainID *big.Int, from common.Address, nonce uint64, data []byte) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(chainID.Bytes(), 32),
		from.Bytes(),
		new(big.Int).SetUint64(nonce).FillBytes(make([]byte, 8)),
		data,
	)
}

var _ ethereum.ContractCaller = (*Devnet)(nil)
