package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sealdrive/pkg/core"
	"sealdrive/pkg/ledger"
	"sealdrive/pkg/registry"
	"sealdrive/pkg/txexec"
	"sealdrive/pkg/types"
	"sealdrive/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const ownerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func setupDevnet(t *testing.T) *ledger.Devnet {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	ldb := ledger.NewWithConn(db)
	require.NoError(t, ldb.Migrate())
	return ledger.NewDevnet(ledger.NewRepository(ldb), 1337, nil)
}

func newOwner(t *testing.T, confirm wallet.Confirmer) *wallet.KeySigner {
	s, err := wallet.NewKeySigner(ownerKey, confirm)
	require.NoError(t, err)
	return s
}

func attachInProc(t *testing.T, net *ledger.Devnet, owner HashSigner, opts ...ServiceOption) *Account {
	client, err := DialInProc(NewService(net, nil, opts...))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	acct, err := Attach(context.Background(), client, 1337, owner, WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	return acct
}

func sponsoredUpload(t *testing.T, net *ledger.Devnet, cid, name string) core.SponsoredTx {
	call, err := registry.UploadCall(net.Registry(), types.ContentID(cid), name)
	require.NoError(t, err)
	maxFee, tip, _ := net.FeeData(context.Background())
	return core.SponsoredTx{To: call.To, Data: call.Data, MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip, Mode: core.SponsorshipMode}
}

func TestAccount_SponsoredUpload(t *testing.T) {
	net := setupDevnet(t)
	owner := newOwner(t, nil)
	acct := attachInProc(t, net, owner)
	ctx := context.Background()

	addr, err := acct.AccountAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, DeriveAddress(owner.Address()), addr)
	assert.NotEqual(t, owner.Address(), addr)

	op, err := acct.SendTransaction(ctx, sponsoredUpload(t, net, "QmRelay1", "relay.pdf"))
	require.NoError(t, err)

	hash, err := op.WaitForTxHash(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)

	receipt, err := op.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, hash, receipt.TxHash)
	assert.Equal(t, core.ReceiptStatusSuccessful, receipt.Status)

	// 记录在派生地址下，而不是签名地址
	exists, err := net.Repository().FileExists(ctx, addr, "QmRelay1")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = net.Repository().FileExists(ctx, owner.Address(), "QmRelay1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAccount_QuotaReturnsRateLimitCode(t *testing.T) {
	net := setupDevnet(t)
	acct := attachInProc(t, net, newOwner(t, nil), WithQuota(1))
	ctx := context.Background()

	op, err := acct.SendTransaction(ctx, sponsoredUpload(t, net, "QmA", "a.pdf"))
	require.NoError(t, err)
	_, err = op.Wait(ctx)
	require.NoError(t, err)

	_, err = acct.SendTransaction(ctx, sponsoredUpload(t, net, "QmB", "b.pdf"))
	require.Error(t, err)

	var rpcErr rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeLimitExceeded, rpcErr.ErrorCode())
	assert.Equal(t, txexec.ClassRateLimited, txexec.Classify(err))
}

func TestAccount_OwnerDeclines(t *testing.T) {
	net := setupDevnet(t)
	decline := &wallet.TerminalConfirm{In: strings.NewReader("n\n"), Out: &bytes.Buffer{}}
	acct := attachInProc(t, net, newOwner(t, decline))

	_, err := acct.SendTransaction(context.Background(), sponsoredUpload(t, net, "QmA", "a.pdf"))
	assert.ErrorIs(t, err, core.ErrUserRejected)
	assert.Equal(t, txexec.ClassUserRejected, txexec.Classify(err))
}

func TestAccount_RevertSurfacesAsOperationError(t *testing.T) {
	net := setupDevnet(t)
	acct := attachInProc(t, net, newOwner(t, nil))
	ctx := context.Background()

	op, err := acct.SendTransaction(ctx, sponsoredUpload(t, net, "QmDup", "a.pdf"))
	require.NoError(t, err)
	_, err = op.Wait(ctx)
	require.NoError(t, err)

	op, err = acct.SendTransaction(ctx, sponsoredUpload(t, net, "QmDup", "a.pdf"))
	require.NoError(t, err)
	_, err = op.WaitForTxHash(ctx)

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Contains(t, opErr.Reason, registry.ReasonAlreadyUploaded)
}

func TestService_RejectsUnsponsoredMode(t *testing.T) {
	net := setupDevnet(t)
	svc := NewService(net, nil)
	owner := newOwner(t, nil)

	tx := sponsoredUpload(t, net, "QmA", "a.pdf")
	_, err := svc.PrepareUserOperation(UserOperation{
		Owner:  owner.Address(),
		Sender: DeriveAddress(owner.Address()),
		To:     tx.To,
		Data:   tx.Data,
		PaymasterServiceData: PaymasterServiceData{Mode: "ERC20"},
	})
	require.Error(t, err)
	assert.Equal(t, txexec.ClassRelay, txexec.Classify(err))
}

func TestService_RejectsBadSignature(t *testing.T) {
	net := setupDevnet(t)
	svc := NewService(net, nil)
	owner := newOwner(t, nil)
	tx := sponsoredUpload(t, net, "QmA", "a.pdf")

	prep, err := svc.PrepareUserOperation(UserOperation{
		Owner:                owner.Address(),
		Sender:               DeriveAddress(owner.Address()),
		To:                   tx.To,
		Data:                 tx.Data,
		PaymasterServiceData: PaymasterServiceData{Mode: modeSponsored},
	})
	require.NoError(t, err)

	_, err = svc.SendUserOperation(context.Background(), prep.ID, make([]byte, 65))
	assert.Error(t, err)

	st, err := svc.GetUserOperationStatus(prep.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, st.Status)
}

func TestConnect_Gate(t *testing.T) {
	net := setupDevnet(t)
	handler, err := Handler(NewService(net, nil), "secret")
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	owner := newOwner(t, nil)
	ctx := context.Background()
	chain := big.NewInt(1337)

	tests := []struct {
		name    string
		cfg     Config
		network *big.Int
		wantNil bool
	}{
		{"missing url", Config{APIKey: "secret", ChainID: 1337}, chain, true},
		{"missing key", Config{URL: srv.URL, ChainID: 1337}, chain, true},
		{"wrong network", Config{URL: srv.URL, APIKey: "secret", ChainID: 1337}, big.NewInt(1), true},
		{"bad key", Config{URL: srv.URL, APIKey: "nope", ChainID: 1337}, chain, true},
		{"relay on other chain", Config{URL: srv.URL, APIKey: "secret", ChainID: 1}, big.NewInt(1), true},
		{"ok", Config{URL: srv.URL, APIKey: "secret", ChainID: 1337}, chain, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := Connect(ctx, tt.cfg, tt.network, owner, nil)
			if tt.wantNil {
				assert.Nil(t, acct)
				return
			}
			require.NotNil(t, acct)
			addr, err := acct.AccountAddress(ctx)
			require.NoError(t, err)
			assert.Equal(t, DeriveAddress(owner.Address()), addr)
			_ = acct.(*Account).Close()
		})
	}
}

func TestOperationHash_DependsOnNonce(t *testing.T) {
	op := UserOperation{Data: []byte{1}}
	assert.NotEqual(t, OperationHash(big.NewInt(1), 0, op), OperationHash(big.NewInt(1), 1, op))
}
