package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/hkdf"
)

const keySize = 32

var ErrDecrypt = errors.New("decryption failed")

// derive 从主密钥派生一段定长材料 (HKDF-SHA256)
func derive(secret, salt []byte, info string, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}

// seal 收敛加密: 数据密钥与 nonce 由 (明文摘要, 所有者) 派生
// 同一所有者上传相同内容得到相同的密文，也就得到相同的 ContentID
func seal(secret []byte, owner common.Address, plain []byte) (dataKey, ciphertext []byte, err error) {
	digest := sha256.Sum256(plain)
	material, err := derive(secret, digest[:], "sealdrive/data/"+owner.Hex(), keySize+12)
	if err != nil {
		return nil, nil, err
	}
	dataKey, nonce := material[:keySize], material[keySize:]

	gcm, err := newGCM(dataKey)
	if err != nil {
		return nil, nil, err
	}
	// 密文格式: nonce || gcm(plain)
	ciphertext = gcm.Seal(append([]byte{}, nonce...), nonce, plain, nil)
	return dataKey, ciphertext, nil
}

// Decrypt 用数据密钥解密 blob
func Decrypt(dataKey, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(dataKey)
	if err != nil {
		return nil, err
	}
	ns := gcm.NonceSize()
	if len(ciphertext) < ns+gcm.Overhead() {
		return nil, ErrDecrypt
	}
	plain, err := gcm.Open(nil, ciphertext[:ns], ciphertext[ns:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// wrapKey 用 (cid, owner) 派生的 KEK 包裹数据密钥
func wrapKey(secret []byte, cid string, owner common.Address, dataKey []byte) ([]byte, error) {
	kek, err := derive(secret, []byte(cid), "sealdrive/kek/"+owner.Hex(), keySize+12)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(kek[:keySize])
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, kek[keySize:], dataKey, nil), nil
}

func unwrapKey(secret []byte, cid string, owner common.Address, wrapped []byte) ([]byte, error) {
	kek, err := derive(secret, []byte(cid), "sealdrive/kek/"+owner.Hex(), keySize+12)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(kek[:keySize])
	if err != nil {
		return nil, err
	}
	key, err := gcm.Open(nil, kek[keySize:], wrapped, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return cipher.NewGCM(block)
}
