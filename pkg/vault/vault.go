// Package vault 是加密存储网络：挑战签名鉴权、加密上传、按所有者取密钥、上传记录管理
//
// 对象布局 (storage.Store 键):
//
//	objects/<cid>          密文 blob
//	keys/<cid>/<owner>     被 KEK 包裹的数据密钥 (只有所有者能取)
//	info/<cid>             FileInfo (JSON)
//	records/<id>.json      上传记录 (一次上传一条)
//	system/secret          主密钥 (未配置时自动生成)
package vault

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"sealdrive/pkg/storage"
	"sealdrive/pkg/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/multiformats/go-multihash"
	"go.uber.org/zap"
)

var (
	ErrForbidden      = errors.New("not the owner of this content")
	ErrRecordNotFound = errors.New("upload record not found")
	ErrEmptyUpload    = errors.New("upload is empty")
)

const (
	prefixObjects = "objects/"
	prefixKeys    = "keys/"
	prefixInfo    = "info/"
	prefixRecords = "records/"
	secretKey     = "system/secret"

	defaultInfoCacheSize = 1024
	defaultInfoTTL       = 10 * time.Minute
)

// FileInfo 存储网络记录的文件元数据
type FileInfo struct {
	ContentID types.ContentID `json:"cid"`
	Name      string          `json:"name"`
	MimeType  string          `json:"mimeType"`
	Size      int64           `json:"size"`
	Encrypted bool            `json:"encrypted"`
}

// Upload 一条上传记录 (record id + cid)
type Upload struct {
	ID        types.RecordID  `json:"id"`
	ContentID types.ContentID `json:"cid"`
	Owner     common.Address  `json:"owner"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"createdAt"`
}

// File 待上传的明文
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Progress 上传进度回调 (已上传字节, 总字节)
type Progress func(uploaded, total int64)

type Config struct {
	Secret     string        // 主密钥；为空时从 system/secret 读取或生成
	SessionTTL time.Duration // 会话令牌有效期
	InfoTTL    time.Duration
}

type Vault struct {
	store    storage.Store
	secret   []byte
	tokenKey []byte
	ttl      time.Duration
	info     *expirable.LRU[types.ContentID, FileInfo]
	now      func() time.Time
	log      *zap.Logger

	mu         sync.Mutex
	challenges map[common.Address]string
}

type Option func(*Vault)

// WithClock 替换时间源 (测试用)
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

func New(ctx context.Context, store storage.Store, cfg Config, log *zap.Logger, opts ...Option) (*Vault, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.InfoTTL <= 0 {
		cfg.InfoTTL = defaultInfoTTL
	}

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		var err error
		if secret, err = loadOrCreateSecret(ctx, store, log); err != nil {
			return nil, err
		}
	}
	tokenKey, err := derive(secret, nil, "sealdrive/session", keySize)
	if err != nil {
		return nil, err
	}

	v := &Vault{
		store:      store,
		secret:     secret,
		tokenKey:   tokenKey,
		ttl:        cfg.SessionTTL,
		info:       expirable.NewLRU[types.ContentID, FileInfo](defaultInfoCacheSize, nil, cfg.InfoTTL),
		now:        time.Now,
		log:        log,
		challenges: make(map[common.Address]string),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func loadOrCreateSecret(ctx context.Context, store storage.Store, log *zap.Logger) ([]byte, error) {
	secret, err := readAll(ctx, store, secretKey)
	if err == nil && len(secret) > 0 {
		return secret, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load vault secret: %w", err)
	}

	secret = make([]byte, keySize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	if err := store.Put(ctx, secretKey, secret, "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("persist vault secret: %w", err)
	}
	log.Info("generated vault secret", zap.String("key", secretKey))
	return secret, nil
}

// ContentID 计算 CIDv0: base58(sha2-256 multihash)
func ContentID(data []byte) (types.ContentID, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("multihash: %w", err)
	}
	return types.ContentID(mh.B58String()), nil
}

// UploadEncrypted 加密并存储文件，返回内容 ID 和上传记录
func (v *Vault) UploadEncrypted(ctx context.Context, token string, f File, progress Progress) (Upload, error) {
	owner, err := v.owner(token)
	if err != nil {
		return Upload{}, err
	}
	if len(f.Data) == 0 {
		return Upload{}, ErrEmptyUpload
	}
	if progress == nil {
		progress = func(int64, int64) {}
	}

	// 1. 加密 + 计算内容地址
	dataKey, ciphertext, err := seal(v.secret, owner, f.Data)
	if err != nil {
		return Upload{}, err
	}
	cid, err := ContentID(ciphertext)
	if err != nil {
		return Upload{}, err
	}
	total := int64(len(ciphertext))
	progress(0, total)

	// 2. 写 blob (同内容覆盖写是幂等的)
	if err := v.store.Put(ctx, prefixObjects+cid.String(), ciphertext, "application/octet-stream"); err != nil {
		return Upload{}, fmt.Errorf("put object: %w", err)
	}
	progress(total, total)

	// 3. 密钥 + 元数据
	wrapped, err := wrapKey(v.secret, cid.String(), owner, dataKey)
	if err != nil {
		return Upload{}, err
	}
	if err := v.store.Put(ctx, keyPath(cid, owner), wrapped, "application/octet-stream"); err != nil {
		return Upload{}, fmt.Errorf("put key: %w", err)
	}

	info := FileInfo{
		ContentID: cid,
		Name:      f.Name,
		MimeType:  f.MimeType,
		Size:      int64(len(f.Data)),
		Encrypted: true,
	}
	if err := v.putJSON(ctx, prefixInfo+cid.String(), info); err != nil {
		return Upload{}, err
	}
	v.info.Add(cid, info)

	// 4. 上传记录
	rec := Upload{
		ID:        types.RecordID(uuid.NewString()),
		ContentID: cid,
		Owner:     owner,
		Name:      f.Name,
		CreatedAt: v.now().UTC(),
	}
	if err := v.putJSON(ctx, recordPath(rec.ID), rec); err != nil {
		return Upload{}, err
	}

	v.log.Debug("stored encrypted upload",
		zap.String("cid", cid.String()), zap.String("record", rec.ID.String()), zap.Int64("bytes", total))
	return rec, nil
}

// FetchEncryptionKey 返回数据密钥，只有上传者本人可以取
func (v *Vault) FetchEncryptionKey(ctx context.Context, token string, cid types.ContentID) ([]byte, error) {
	owner, err := v.owner(token)
	if err != nil {
		return nil, err
	}
	wrapped, err := readAll(ctx, v.store, keyPath(cid, owner))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}
	return unwrapKey(v.secret, cid.String(), owner, wrapped)
}

// Download 返回密文 blob
func (v *Vault) Download(ctx context.Context, token string, cid types.ContentID) ([]byte, error) {
	if _, err := v.owner(token); err != nil {
		return nil, err
	}
	return readAll(ctx, v.store, prefixObjects+cid.String())
}

// FileInfo 返回文件元数据 (带过期的 LRU 缓存)
func (v *Vault) FileInfo(ctx context.Context, cid types.ContentID) (FileInfo, error) {
	if info, ok := v.info.Get(cid); ok {
		return info, nil
	}
	var info FileInfo
	if err := v.getJSON(ctx, prefixInfo+cid.String(), &info); err != nil {
		return FileInfo{}, err
	}
	v.info.Add(cid, info)
	return info, nil
}

// Uploads 列出会话所有者的上传记录
func (v *Vault) Uploads(ctx context.Context, token string) ([]Upload, error) {
	owner, err := v.owner(token)
	if err != nil {
		return nil, err
	}
	all, err := v.records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Upload, 0, len(all))
	for _, r := range all {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteFile 按记录 ID 删除 (取消固定)
// 没有其他记录引用该 cid 时才真正删除 blob 与元数据
func (v *Vault) DeleteFile(ctx context.Context, token string, id types.RecordID) error {
	owner, err := v.owner(token)
	if err != nil {
		return err
	}
	var rec Upload
	if err := v.getJSON(ctx, recordPath(id), &rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	if rec.Owner != owner {
		return ErrForbidden
	}
	if err := v.store.Delete(ctx, recordPath(id)); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	// 引用计数
	rest, err := v.records(ctx)
	if err != nil {
		return err
	}
	ownerRefs, anyRefs := 0, 0
	for _, r := range rest {
		if r.ContentID != rec.ContentID {
			continue
		}
		anyRefs++
		if r.Owner == owner {
			ownerRefs++
		}
	}
	if ownerRefs == 0 {
		v.deleteQuiet(ctx, keyPath(rec.ContentID, owner))
	}
	if anyRefs == 0 {
		v.deleteQuiet(ctx, prefixObjects+rec.ContentID.String())
		v.deleteQuiet(ctx, prefixInfo+rec.ContentID.String())
		v.info.Remove(rec.ContentID)
	}
	return nil
}

func (v *Vault) records(ctx context.Context) ([]Upload, error) {
	keys, err := v.store.List(ctx, prefixRecords)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	out := make([]Upload, 0, len(keys))
	for _, k := range keys {
		var r Upload
		if err := v.getJSON(ctx, k, &r); err != nil {
			// 并发删除
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (v *Vault) deleteQuiet(ctx context.Context, key string) {
	if err := v.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		v.log.Warn("vault cleanup failed", zap.String("key", key), zap.Error(err))
	}
}

func (v *Vault) putJSON(ctx context.Context, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if err := v.store.Put(ctx, key, data, "application/json"); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (v *Vault) getJSON(ctx context.Context, key string, dst any) error {
	data, err := readAll(ctx, v.store, key)
	if err != nil {
		return err
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func readAll(ctx context.Context, store storage.Store, key string) ([]byte, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func keyPath(cid types.ContentID, owner common.Address) string {
	return path.Join(prefixKeys, cid.String(), strings.ToLower(owner.Hex()))
}

func recordPath(id types.RecordID) string {
	return prefixRecords + id.String() + ".json"
}
