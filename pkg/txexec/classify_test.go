package txexec

import (
	"errors"
	"fmt"
	"testing"

	"sealdrive/pkg/core"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassUnknown},
		{"sentinel", fmt.Errorf("wrap: %w", core.ErrUserRejected), ClassUserRejected},
		{"code 4001", &codeError{code: 4001, msg: "x"}, ClassUserRejected},
		{"code -32005", &codeError{code: -32005, msg: "x"}, ClassRateLimited},
		{"code -32603", &codeError{code: -32603, msg: "x"}, ClassServer},
		{"code -32010", &codeError{code: -32010, msg: "x"}, ClassRelay},
		// 结构化错误码优先于文本
		{"code beats text", &codeError{code: 4001, msg: "paymaster 500"}, ClassUserRejected},
		{"http 429", rpc.HTTPError{StatusCode: 429}, ClassRateLimited},
		{"http 502", rpc.HTTPError{StatusCode: 502}, ClassServer},
		{"http 400", rpc.HTTPError{StatusCode: 400}, ClassRelay},
		{"text rate", errors.New("Too many requests"), ClassRateLimited},
		{"text server", errors.New("Internal Server Error"), ClassServer},
		{"text sponsor", errors.New("sponsor policy rejected"), ClassSponsorship},
		{"text gas", errors.New("gas estimator failed"), ClassGasEstimation},
		{"text bundler", errors.New("Bundler parse error"), ClassRelay},
		{"text user", errors.New("user denied transaction signature"), ClassUserRejected},
		{"unknown", errors.New("???"), ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestClassFallback(t *testing.T) {
	assert.False(t, ClassUserRejected.Fallback())
	for _, c := range []Class{ClassUnknown, ClassRateLimited, ClassServer, ClassRelay, ClassSponsorship, ClassGasEstimation} {
		assert.True(t, c.Fallback(), c.String())
	}
}
