package relay

import (
	"context"
	"crypto/subtle"
	"math/big"
	"net/http"
	"sync"

	"sealdrive/pkg/core"
	"sealdrive/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend 中继把用户操作落到链上的地方
type Backend interface {
	ChainID() *big.Int
	Apply(ctx context.Context, from common.Address, call core.Call) (*core.Receipt, error)
}

// Service 本地中继 (devnet 与测试使用)
// 以 "relay" 命名空间注册到 go-ethereum 的 rpc.Server 上
type Service struct {
	backend Backend
	log     *zap.Logger
	quota   int // 每个派生账户可被赞助的操作数，0 表示不限

	mu     sync.Mutex
	nonces map[common.Address]uint64
	used   map[common.Address]int
	ops    map[string]*operation
}

type operation struct {
	req    UserOperation
	hash   common.Hash
	status OperationStatus
}

type ServiceOption func(*Service)

// WithQuota 限制每个派生账户的赞助次数，超出后返回 CodeLimitExceeded
func WithQuota(n int) ServiceOption {
	return func(s *Service) { s.quota = n }
}

func NewService(backend Backend, log *zap.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		backend: backend,
		log:     log,
		nonces:  make(map[common.Address]uint64),
		used:    make(map[common.Address]int),
		ops:     make(map[string]*operation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChainId -> relay_chainId
func (s *Service) ChainId() *hexutil.Big {
	return (*hexutil.Big)(s.backend.ChainID())
}

// GetSmartAccountAddress -> relay_getSmartAccountAddress
func (s *Service) GetSmartAccountAddress(owner common.Address) common.Address {
	return DeriveAddress(owner)
}

// PrepareUserOperation -> relay_prepareUserOperation
func (s *Service) PrepareUserOperation(op UserOperation) (*PreparedOperation, error) {
	if op.PaymasterServiceData.Mode != modeSponsored {
		return nil, codeErrorf(CodeSponsorship, "paymaster: unsupported mode %q", op.PaymasterServiceData.Mode)
	}
	if op.Sender != DeriveAddress(op.Owner) {
		return nil, codeErrorf(CodeInvalidParams, "sender %s is not the smart account of %s", op.Sender.Hex(), op.Owner.Hex())
	}
	if len(op.Data) == 0 {
		return nil, codeErrorf(CodeInvalidParams, "empty calldata")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 && s.used[op.Sender] >= s.quota {
		return nil, codeErrorf(CodeLimitExceeded, "rate limit exceeded for %s", op.Sender.Hex())
	}

	nonce := s.nonces[op.Sender]
	s.nonces[op.Sender] = nonce + 1

	id := uuid.NewString()
	hash := OperationHash(s.backend.ChainID(), nonce, op)
	s.ops[id] = &operation{req: op, hash: hash, status: OperationStatus{Status: StatusPending}}
	return &PreparedOperation{ID: id, Hash: hash}, nil
}

// SendUserOperation -> relay_sendUserOperation
// 校验所有者签名后立即执行
func (s *Service) SendUserOperation(ctx context.Context, id string, sig hexutil.Bytes) (string, error) {
	s.mu.Lock()
	op, ok := s.ops[id]
	if ok && op.status.Status != StatusPending {
		s.mu.Unlock()
		return "", codeErrorf(CodeInvalidParams, "operation %s already submitted", id)
	}
	if ok {
		op.status.Status = StatusSubmitted
		s.used[op.req.Sender]++
	}
	s.mu.Unlock()

	if !ok {
		return "", codeErrorf(CodeInvalidParams, "unknown operation %s", id)
	}
	if !wallet.VerifySignature(op.req.Owner, op.hash.Bytes(), sig) {
		s.setStatus(op, OperationStatus{Status: StatusFailed, Reason: "invalid signature"})
		return "", codeErrorf(CodeInvalidParams, "invalid signature for operation %s", id)
	}

	receipt, err := s.backend.Apply(ctx, op.req.Sender, core.Call{To: op.req.To, Data: op.req.Data})
	if err != nil {
		s.log.Warn("sponsored operation failed", zap.String("id", id), zap.Error(err))
		s.setStatus(op, OperationStatus{Status: StatusFailed, Reason: err.Error()})
		return id, nil
	}

	block := hexutil.Uint64(receipt.BlockNumber)
	txHash := receipt.TxHash
	s.setStatus(op, OperationStatus{Status: StatusConfirmed, TransactionHash: &txHash, BlockNumber: &block})
	s.log.Debug("sponsored operation confirmed", zap.String("id", id), zap.String("tx", txHash.Hex()))
	return id, nil
}

// GetUserOperationStatus -> relay_getUserOperationStatus
func (s *Service) GetUserOperationStatus(id string) (*OperationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, codeErrorf(CodeInvalidParams, "unknown operation %s", id)
	}
	st := op.status
	return &st, nil
}

func (s *Service) setStatus(op *operation, st OperationStatus) {
	s.mu.Lock()
	op.status = st
	s.mu.Unlock()
}

// NewServer 创建注册了中继服务的 rpc.Server
func NewServer(svc *Service) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(Namespace, svc); err != nil {
		return nil, err
	}
	return srv, nil
}

// DialInProc 进程内连接 (devnet)
func DialInProc(svc *Service) (*rpc.Client, error) {
	srv, err := NewServer(svc)
	if err != nil {
		return nil, err
	}
	return rpc.DialInProc(srv), nil
}

// Handler 通过 HTTP 暴露中继，要求 x-api-key 头
func Handler(svc *Service, apiKey string) (http.Handler, error) {
	srv, err := NewServer(svc)
	if err != nil {
		return nil, err
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(apiKeyHeader)
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		srv.ServeHTTP(w, r)
	}), nil
}
