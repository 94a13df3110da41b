package vault

import (
	"context"
	"sync"
	"testing"
	"time"

	"sealdrive/pkg/storage"
	"sealdrive/pkg/storage/disk"
	"sealdrive/pkg/types"
	"sealdrive/pkg/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	bobKey   = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

func setupVault(t *testing.T, opts ...Option) (*Vault, storage.Store) {
	store, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	v, err := New(context.Background(), store, Config{Secret: "test-secret"}, nil, opts...)
	require.NoError(t, err)
	return v, store
}

func signer(t *testing.T, hexKey string) *wallet.KeySigner {
	s, err := wallet.NewKeySigner(hexKey, wallet.AutoConfirm{})
	require.NoError(t, err)
	return s
}

func login(t *testing.T, v *Vault, s wallet.Signer) string {
	ctx := context.Background()
	msg, err := v.AuthMessage(ctx, s.Address())
	require.NoError(t, err)
	sig, err := s.SignMessage(ctx, []byte(msg))
	require.NoError(t, err)
	token, err := v.Authenticate(ctx, s.Address(), sig)
	require.NoError(t, err)
	return token
}

func upload(t *testing.T, v *Vault, token, name string, data []byte) Upload {
	up, err := v.UploadEncrypted(context.Background(), token, File{Name: name, MimeType: "application/pdf", Data: data}, nil)
	require.NoError(t, err)
	return up
}

func TestAuthenticate(t *testing.T) {
	v, _ := setupVault(t)
	alice, bob := signer(t, aliceKey), signer(t, bobKey)
	ctx := context.Background()

	t.Run("Valid signature", func(t *testing.T) {
		token := login(t, v, alice)
		owner, err := v.owner(token)
		require.NoError(t, err)
		assert.Equal(t, alice.Address(), owner)
	})

	t.Run("Challenge is single use", func(t *testing.T) {
		msg, err := v.AuthMessage(ctx, alice.Address())
		require.NoError(t, err)
		sig, err := alice.SignMessage(ctx, []byte(msg))
		require.NoError(t, err)

		_, err = v.Authenticate(ctx, alice.Address(), sig)
		require.NoError(t, err)
		_, err = v.Authenticate(ctx, alice.Address(), sig)
		assert.ErrorIs(t, err, ErrNoChallenge)
	})

	t.Run("Signature from another key", func(t *testing.T) {
		msg, err := v.AuthMessage(ctx, alice.Address())
		require.NoError(t, err)
		sig, err := bob.SignMessage(ctx, []byte(msg))
		require.NoError(t, err)

		_, err = v.Authenticate(ctx, alice.Address(), sig)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("Garbage token", func(t *testing.T) {
		_, err := v.Uploads(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestSessionExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, _ := setupVault(t, WithClock(func() time.Time { return now }))
	token := login(t, v, signer(t, aliceKey))

	_, err := v.Uploads(context.Background(), token)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = v.Uploads(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUploadAndDecrypt(t *testing.T) {
	v, store := setupVault(t)
	alice := signer(t, aliceKey)
	token := login(t, v, alice)
	ctx := context.Background()
	plain := []byte("%PDF-1.7 quarterly report")

	var calls [][2]int64
	up, err := v.UploadEncrypted(ctx, token, File{Name: "report.pdf", MimeType: "application/pdf", Data: plain},
		func(done, total int64) { calls = append(calls, [2]int64{done, total}) })
	require.NoError(t, err)

	// 1. CIDv0
	assert.True(t, up.ContentID.IsV0(), "got %s", up.ContentID)
	assert.Equal(t, alice.Address(), up.Owner)
	assert.False(t, up.ID.IsZero())

	// 2. 进度回调单调收尾
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	assert.Equal(t, last[0], last[1])

	// 3. 存的是密文
	cipher, err := v.Download(ctx, token, up.ContentID)
	require.NoError(t, err)
	assert.NotContains(t, string(cipher), "quarterly")
	ok, err := store.Has(ctx, "objects/"+up.ContentID.String())
	require.NoError(t, err)
	assert.True(t, ok)

	// 4. 所有者取密钥并解密
	key, err := v.FetchEncryptionKey(ctx, token, up.ContentID)
	require.NoError(t, err)
	got, err := Decrypt(key, cipher)
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	// 5. 元数据
	info, err := v.FileInfo(ctx, up.ContentID)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", info.MimeType)
	assert.Equal(t, int64(len(plain)), info.Size)
}

func TestUpload_Empty(t *testing.T) {
	v, _ := setupVault(t)
	_, err := v.UploadEncrypted(context.Background(), login(t, v, signer(t, aliceKey)), File{Name: "x"}, nil)
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestFetchEncryptionKey_OwnerOnly(t *testing.T) {
	v, _ := setupVault(t)
	aliceToken := login(t, v, signer(t, aliceKey))
	bobToken := login(t, v, signer(t, bobKey))
	up := upload(t, v, aliceToken, "secret.pdf", []byte("alice only"))

	_, err := v.FetchEncryptionKey(context.Background(), bobToken, up.ContentID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestContentID_Convergent(t *testing.T) {
	v, _ := setupVault(t)
	aliceToken := login(t, v, signer(t, aliceKey))
	bobToken := login(t, v, signer(t, bobKey))
	data := []byte("same bytes")

	a1 := upload(t, v, aliceToken, "a.pdf", data)
	a2 := upload(t, v, aliceToken, "a.pdf", data)
	b1 := upload(t, v, bobToken, "a.pdf", data)

	assert.Equal(t, a1.ContentID, a2.ContentID, "同一所有者同内容应得到同一个 cid")
	assert.NotEqual(t, a1.ID, a2.ID)
	assert.NotEqual(t, a1.ContentID, b1.ContentID, "不同所有者的密文不同")
}

func TestUploadsAndDelete(t *testing.T) {
	v, store := setupVault(t)
	aliceToken := login(t, v, signer(t, aliceKey))
	bobToken := login(t, v, signer(t, bobKey))
	ctx := context.Background()

	first := upload(t, v, aliceToken, "a.pdf", []byte("shared"))
	second := upload(t, v, aliceToken, "a.pdf", []byte("shared"))
	other := upload(t, v, aliceToken, "b.pdf", []byte("other"))
	upload(t, v, bobToken, "bob.pdf", []byte("bob"))

	list, err := v.Uploads(ctx, aliceToken)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	// 1. 非所有者不能删
	assert.ErrorIs(t, v.DeleteFile(ctx, bobToken, first.ID), ErrForbidden)

	// 2. 还有另一条记录引用同一 cid，blob 保留
	require.NoError(t, v.DeleteFile(ctx, aliceToken, first.ID))
	ok, err := store.Has(ctx, "objects/"+first.ContentID.String())
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = v.FetchEncryptionKey(ctx, aliceToken, first.ContentID)
	assert.NoError(t, err)

	// 3. 最后一条引用删除后 blob 与密钥一起删除
	require.NoError(t, v.DeleteFile(ctx, aliceToken, second.ID))
	ok, err = store.Has(ctx, "objects/"+first.ContentID.String())
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = v.FetchEncryptionKey(ctx, aliceToken, first.ContentID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = v.FileInfo(ctx, first.ContentID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 4. 重复删除
	assert.ErrorIs(t, v.DeleteFile(ctx, aliceToken, first.ID), ErrRecordNotFound)

	list, err = v.Uploads(ctx, aliceToken)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ContentID, list[0].ContentID)
}

func TestGeneratedSecretPersists(t *testing.T) {
	store, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	alice := signer(t, aliceKey)

	v1, err := New(ctx, store, Config{}, nil)
	require.NoError(t, err)
	up := upload(t, v1, login(t, v1, alice), "a.pdf", []byte("persist me"))

	// 重新打开同一个存储，密钥仍可解包
	v2, err := New(ctx, store, Config{}, nil)
	require.NoError(t, err)
	_, err = v2.FetchEncryptionKey(ctx, login(t, v2, alice), up.ContentID)
	assert.NoError(t, err)
}

func TestConcurrentChallenges(t *testing.T) {
	v, _ := setupVault(t)
	alice := signer(t, aliceKey)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = v.AuthMessage(context.Background(), alice.Address())
		}()
	}
	wg.Wait()
	// 最后一个挑战有效
	assert.NotEmpty(t, login(t, v, alice))
}

func TestDecrypt_Tampered(t *testing.T) {
	key := make([]byte, keySize)
	_, err := Decrypt(key, []byte("short"))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, ct, err := seal([]byte("s"), signer(t, aliceKey).Address(), []byte("hello"))
	require.NoError(t, err)
	_, err = Decrypt(key, ct)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestContentID(t *testing.T) {
	cid, err := ContentID([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, types.ContentID("QmaozNR7DZHQK1ZcU9p7QdrshMvXqWK6gpu5rmrkPdT3L4"), cid)
}
