package core

import (
	"errors"
	"fmt"
)

// 错误分类 (Taxonomy)
var (
	// ErrUserRejected 用户明确拒绝了签名/交易提示，操作被放弃
	ErrUserRejected = errors.New("transaction rejected by user")

	// ErrSponsorshipUnavailable 赞助路径失败 (非致命，触发回退)
	ErrSponsorshipUnavailable = errors.New("sponsorship unavailable")

	// ErrTransactionFailed 回退之后仍然失败，对当前操作是致命的
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrStorageUnavailable 存储网络不可用
	ErrStorageUnavailable = errors.New("storage network unavailable")

	// ErrNotFound 删除一个未被追踪的 ContentID
	ErrNotFound = errors.New("file not found")

	// 自付费路径上的细分原因 (总是包在 ErrTransactionFailed 里)
	ErrInsufficientFunds = errors.New("insufficient funds for gas")
	ErrNetwork           = errors.New("network error, please try again")
)

// TxError 携带底层错误信息的 ErrTransactionFailed
type TxError struct {
	Reason error // ErrInsufficientFunds / ErrNetwork / nil
	Err    error // 底层错误
}

func (e *TxError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%s: %s: %v", ErrTransactionFailed, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrTransactionFailed, e.Err)
}

// Is 让 errors.Is(err, ErrTransactionFailed) 以及细分原因都成立
func (e *TxError) Is(target error) bool {
	if target == ErrTransactionFailed {
		return true
	}
	return e.Reason != nil && target == e.Reason
}

func (e *TxError) Unwrap() error { return e.Err }

// StorageError 包装存储网络错误
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
