package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Reader 注册表只读查询
type Reader interface {
	GetFiles(ctx context.Context, owner common.Address) ([]Entry, error)
	FileExistsForUser(ctx context.Context, owner common.Address, cid types.ContentID) (bool, error)
	GetFileCount(ctx context.Context, owner common.Address) (uint64, error)
}

// Contract 通过 eth_call 读取注册表
// caller 可以是 ethclient，也可以是本地 devnet 账本
type Contract struct {
	address common.Address
	caller  ethereum.ContractCaller
}

func NewContract(address common.Address, caller ethereum.ContractCaller) *Contract {
	return &Contract{address: address, caller: caller}
}

func (c *Contract) Address() common.Address { return c.address }

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := c.address
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if reason, ok := RevertReason(err); ok {
			return nil, &RevertError{Reason: reason}
		}
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return out, nil
}

func (c *Contract) GetFiles(ctx context.Context, owner common.Address) ([]Entry, error) {
	out, err := c.call(ctx, MethodGetFiles, owner)
	if err != nil {
		return nil, err
	}
	tuples := *abi.ConvertType(out[0], new([]FileTuple)).(*[]FileTuple)

	entries := make([]Entry, 0, len(tuples))
	for _, t := range tuples {
		entries = append(entries, fromTuple(t))
	}
	return entries, nil
}

func (c *Contract) FileExistsForUser(ctx context.Context, owner common.Address, cid types.ContentID) (bool, error) {
	out, err := c.call(ctx, MethodExists, owner, cid.String())
	if err != nil {
		return false, err
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, errors.New("fileExistsForUser: unexpected result type")
	}
	return ok, nil
}

func (c *Contract) GetFileCount(ctx context.Context, owner common.Address) (uint64, error) {
	out, err := c.call(ctx, MethodCount, owner)
	if err != nil {
		return 0, err
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.New("getFileCount: unexpected result type")
	}
	return n.Uint64(), nil
}

var _ Reader = (*Contract)(nil)
