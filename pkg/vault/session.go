package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sealdrive/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrNoChallenge  = errors.New("no pending auth challenge for address")
	ErrBadSignature = errors.New("auth signature does not match address")
	ErrUnauthorized = errors.New("invalid or expired session token")
)

const issuer = "sealdrive-vault"

// AuthMessage 为地址生成一次性挑战消息，调用方用私钥做 personal_sign
// 同一地址重复请求会覆盖上一个挑战
func (v *Vault) AuthMessage(_ context.Context, addr common.Address) (string, error) {
	nonce := uuid.NewString()
	msg := fmt.Sprintf("Sign this message to access your SealDrive files.\n\nAddress: %s\nNonce: %s",
		addr.Hex(), nonce)

	v.mu.Lock()
	v.challenges[addr] = msg
	v.mu.Unlock()
	return msg, nil
}

// Authenticate 校验挑战签名，签发会话令牌 (HS256 JWT)
// 挑战只能使用一次，无论成功与否
func (v *Vault) Authenticate(_ context.Context, addr common.Address, sig []byte) (string, error) {
	v.mu.Lock()
	msg, ok := v.challenges[addr]
	delete(v.challenges, addr)
	v.mu.Unlock()
	if !ok {
		return "", ErrNoChallenge
	}
	if !wallet.VerifySignature(addr, []byte(msg), sig) {
		return "", ErrBadSignature
	}

	now := v.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   addr.Hex(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.tokenKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// owner 解析令牌，返回会话所属地址
func (v *Vault) owner(token string) (common.Address, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(token, "Bearer "), claims,
		func(*jwt.Token) (any, error) { return v.tokenKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !common.IsHexAddress(claims.Subject) {
		return common.Address{}, ErrUnauthorized
	}
	return common.HexToAddress(claims.Subject), nil
}
