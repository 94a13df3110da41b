// Package wallet 签名身份：私钥 / keystore 签名，以及交互式确认
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer 签名身份
type Signer interface {
	Address() common.Address
	// SignMessage EIP-191 personal_sign
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
	// SignHash 对 32 字节摘要做 personal_sign
	SignHash(ctx context.Context, hash common.Hash) ([]byte, error)
	// SignTx 对交易签名 (自付费路径)
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner 持有私钥的本地签名者
// 每次签名前都会经过 Confirmer，用户拒绝时返回 core.ErrUserRejected
type KeySigner struct {
	key     *ecdsa.PrivateKey
	addr    common.Address
	confirm Confirmer
}

// NewKeySigner 从 hex 私钥构建 (可带 0x 前缀)
func NewKeySigner(hexKey string, confirm Confirmer) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return FromKey(key, confirm), nil
}

// FromKey 直接用 ecdsa 私钥构建
func FromKey(key *ecdsa.PrivateKey, confirm Confirmer) *KeySigner {
	if confirm == nil {
		confirm = AutoConfirm{}
	}
	return &KeySigner{
		key:     key,
		addr:    crypto.PubkeyToAddress(key.PublicKey),
		confirm: confirm,
	}
}

// FromKeystore 解密 keystore v3 JSON 文件
func FromKeystore(path, passphrase string, confirm Confirmer) (*KeySigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	k, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return FromKey(k.PrivateKey, confirm), nil
}

func (s *KeySigner) Address() common.Address { return s.addr }

func (s *KeySigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return s.sign(ctx, fmt.Sprintf("Sign message for %s:\n%s", s.addr.Hex(), msg), msg)
}

// SignHash 对摘要 (中继的 userOp 哈希) 做 personal_sign
func (s *KeySigner) SignHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return s.sign(ctx, fmt.Sprintf("Approve sponsored operation %s from %s", hash.Hex(), s.addr.Hex()), hash.Bytes())
}

func (s *KeySigner) sign(ctx context.Context, prompt string, msg []byte) ([]byte, error) {
	if err := s.confirm.Confirm(ctx, prompt); err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, err
	}
	// 转成以太坊惯例的 V = 27/28
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (s *KeySigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	prompt := fmt.Sprintf("Send transaction from %s", s.addr.Hex())
	if to := tx.To(); to != nil {
		prompt += " to " + to.Hex()
	}
	if err := s.confirm.Confirm(ctx, prompt); err != nil {
		return nil, err
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// RecoverAddress 从 personal_sign 签名恢复地址
func RecoverAddress(msg, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.New("invalid signature length")
	}
	cp := make([]byte, len(sig))
	copy(cp, sig)
	if cp[crypto.RecoveryIDOffset] >= 27 {
		cp[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), cp)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature 校验签名是否出自 addr
func VerifySignature(addr common.Address, msg, sig []byte) bool {
	got, err := RecoverAddress(msg, sig)
	return err == nil && got == addr
}

var _ Signer = (*KeySigner)(nil)
