package relay

import "fmt"

// JSON-RPC 错误码
const (
	CodeInvalidParams = -32602
	CodeLimitExceeded = -32005
	CodeSponsorship   = -32010
)

// CodeError 带错误码的中继错误 (实现 rpc.Error)
// 服务端返回后，客户端收到的错误同样携带该错误码
type CodeError struct {
	Code    int
	Message string
}

func (e *CodeError) Error() string  { return e.Message }
func (e *CodeError) ErrorCode() int { return e.Code }

func codeErrorf(code int, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// OperationError 用户操作在中继侧执行失败
type OperationError struct {
	ID     string
	Reason string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("relay operation %s failed: %s", e.ID, e.Reason)
}
