package txexec

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"sealdrive/pkg/core"

	"github.com/ethereum/go-ethereum/rpc"
)

// Class 赞助路径失败的分类
type Class int

const (
	ClassUnknown Class = iota
	ClassUserRejected
	ClassRateLimited
	ClassServer
	ClassRelay
	ClassSponsorship
	ClassGasEstimation
)

func (c Class) String() string {
	switch c {
	case ClassUserRejected:
		return "user_rejected"
	case ClassRateLimited:
		return "rate_limited"
	case ClassServer:
		return "server"
	case ClassRelay:
		return "relay"
	case ClassSponsorship:
		return "sponsorship"
	case ClassGasEstimation:
		return "gas_estimation"
	default:
		return "unknown"
	}
}

// Fallback 除了用户明确拒绝，其余一律回退到自付费路径
func (c Class) Fallback() bool { return c != ClassUserRejected }

// JSON-RPC / EIP-1193 错误码
const (
	CodeUserRejected  = 4001
	CodeLimitExceeded = -32005
	CodeInternal      = -32603
	CodeParse         = -32700
)

// Classify 对赞助路径的错误分类
// 顺序: 哨兵错误 -> JSON-RPC 错误码 -> HTTP 状态码 -> 文本匹配 (兜底)
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, core.ErrUserRejected) {
		return ClassUserRejected
	}

	// 1. 结构化的 JSON-RPC 错误码
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if c, ok := classifyCode(rpcErr.ErrorCode()); ok {
			return c
		}
	}

	// 2. HTTP 层错误
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return ClassRateLimited
		case httpErr.StatusCode >= 500:
			return ClassServer
		case httpErr.StatusCode >= 400:
			return ClassRelay
		}
	}

	// 3. 最后才看错误文本
	return classifyText(err.Error())
}

func classifyCode(code int) (Class, bool) {
	switch {
	case code == CodeUserRejected:
		return ClassUserRejected, true
	case code == CodeLimitExceeded:
		return ClassRateLimited, true
	case code == CodeInternal:
		return ClassServer, true
	case code == CodeParse:
		return ClassRelay, true
	case code <= -32000 && code >= -32099:
		// 实现方自定义的服务端错误
		return ClassRelay, true
	}
	return ClassUnknown, false
}

var textRules = []struct {
	class   Class
	needles []string
}{
	{ClassUserRejected, []string{"user rejected", "user denied"}},
	{ClassRateLimited, []string{"429", "rate limit", "too many requests"}},
	{ClassServer, []string{"500", "520", "internal server"}},
	{ClassSponsorship, []string{"paymaster", "sponsor"}},
	{ClassGasEstimation, []string{"gas estimator", "maxfeepergas"}},
	{ClassRelay, []string{"400", "bundler", "relay", "parse error"}},
}

func classifyText(msg string) Class {
	msg = strings.ToLower(msg)
	for _, rule := range textRules {
		for _, n := range rule.needles {
			if strings.Contains(msg, n) {
				return rule.class
			}
		}
	}
	return ClassUnknown
}

// directFailure 把自付费路径的错误映射到错误分类
func directFailure(err error) error {
	if isUserRejection(err) {
		return core.ErrUserRejected
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return &core.TxError{Reason: core.ErrInsufficientFunds, Err: err}
	case isNetwork(err, msg):
		return &core.TxError{Reason: core.ErrNetwork, Err: err}
	default:
		return &core.TxError{Err: err}
	}
}

func isUserRejection(err error) bool {
	if errors.Is(err, core.ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == CodeUserRejected {
		return true
	}
	return classifyText(err.Error()) == ClassUserRejected
}

func isNetwork(err error, msg string) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(msg, "failed to fetch") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host")
}
