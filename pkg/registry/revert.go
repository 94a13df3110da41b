package registry

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// revertSelector = keccak256("Error(string)")[:4]
var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// RevertError 合约 require 失败
// 实现 rpc.Error / rpc.DataError，与节点返回的 revert 错误形状一致
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string { return "execution reverted: " + e.Reason }

// ErrorCode 节点对 revert 使用的 JSON-RPC 错误码
func (e *RevertError) ErrorCode() int { return 3 }

func (e *RevertError) ErrorData() interface{} {
	return hexutil.Encode(EncodeRevert(e.Reason))
}

// IsRevert 判断错误是否是某个 revert 原因
func IsRevert(err error, reason string) bool {
	var re *RevertError
	if errors.As(err, &re) {
		return re.Reason == reason
	}
	if r, ok := RevertReason(err); ok {
		return r == reason
	}
	return false
}

// EncodeRevert 编码 Error(string) 返回数据
func EncodeRevert(reason string) []byte {
	strType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: strType}}.Pack(reason)
	if err != nil {
		panic(fmt.Sprintf("encode revert: %v", err))
	}
	return append(append([]byte{}, revertSelector...), packed...)
}

// RevertReason 从 rpc.DataError 里解出 revert 原因
func RevertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", false
	}
	var raw []byte
	switch d := dataErr.ErrorData().(type) {
	case string:
		b, derr := hexutil.Decode(d)
		if derr != nil {
			return "", false
		}
		raw = b
	case []byte:
		raw = d
	default:
		return "", false
	}
	reason, uerr := abi.UnpackRevert(raw)
	if uerr != nil {
		return "", false
	}
	return reason, true
}
