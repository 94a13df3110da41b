// Package registry 链上文件注册表：ABI、调用构造与只读查询
package registry

import (
	"fmt"
	"strings"

	"sealdrive/pkg/core"
	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ABIJSON 注册表合约 ABI
const ABIJSON = `[
  {"type":"function","name":"uploadFile","stateMutability":"nonpayable",
   "inputs":[{"name":"cid","type":"string"},{"name":"name","type":"string"}],"outputs":[]},
  {"type":"function","name":"deleteFile","stateMutability":"nonpayable",
   "inputs":[{"name":"cid","type":"string"}],"outputs":[]},
  {"type":"function","name":"getFiles","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"cid","type":"string"},
     {"name":"name","type":"string"},
     {"name":"owner","type":"address"},
     {"name":"timestamp","type":"uint256"}]}]},
  {"type":"function","name":"fileExistsForUser","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"},{"name":"cid","type":"string"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getFileCount","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"owner","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"FileUploaded","anonymous":false,
   "inputs":[{"name":"owner","type":"address","indexed":true},
             {"name":"cid","type":"string","indexed":false},
             {"name":"name","type":"string","indexed":false},
             {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"FileDeleted","anonymous":false,
   "inputs":[{"name":"owner","type":"address","indexed":true},
             {"name":"cid","type":"string","indexed":false}]}
]`

// 方法名
const (
	MethodUpload      = "uploadFile"
	MethodDelete      = "deleteFile"
	MethodGetFiles    = "getFiles"
	MethodExists      = "fileExistsForUser"
	MethodCount       = "getFileCount"
	MethodOwner       = "owner"
	EventFileUploaded = "FileUploaded"
	EventFileDeleted  = "FileDeleted"
)

// 合约 revert 原因
const (
	ReasonEmptyCID        = "CID cannot be empty"
	ReasonEmptyName       = "Name cannot be empty"
	ReasonAlreadyUploaded = "File already uploaded"
	ReasonNotExist        = "File does not exist"
)

var parsed = mustParse(ABIJSON)

func mustParse(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("registry abi: %v", err))
	}
	return a
}

// ABI 返回解析好的合约 ABI
func ABI() abi.ABI { return parsed }

// UploadCall 构造 uploadFile(cid, name)
func UploadCall(registry common.Address, cid types.ContentID, name string) (core.Call, error) {
	data, err := parsed.Pack(MethodUpload, cid.String(), name)
	if err != nil {
		return core.Call{}, fmt.Errorf("pack %s: %w", MethodUpload, err)
	}
	return core.Call{To: registry, Data: data}, nil
}

// DeleteCall 构造 deleteFile(cid)
func DeleteCall(registry common.Address, cid types.ContentID) (core.Call, error) {
	data, err := parsed.Pack(MethodDelete, cid.String())
	if err != nil {
		return core.Call{}, fmt.Errorf("pack %s: %w", MethodDelete, err)
	}
	return core.Call{To: registry, Data: data}, nil
}
