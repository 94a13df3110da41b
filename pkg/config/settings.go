package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

var envReplacer = strings.NewReplacer(".", "_")

// Settings 是 viper 配置的强类型快照
type Settings struct {
	Chain  ChainSettings
	Relay  RelaySettings
	Wallet WalletSettings
	Vault  VaultSettings
	Cache  CacheSettings
	Ledger LedgerSettings
	Log    LogSettings
	Server ServerSettings
}

type ChainSettings struct {
	RPCURL          string
	ID              int64
	RegistryAddress string
	Devnet          bool
}

type RelaySettings struct {
	Enabled bool
	URL     string
	APIKey  string
}

// Configured 中继凭证是否齐全
func (r RelaySettings) Configured() bool {
	return r.Enabled && r.URL != "" && r.APIKey != ""
}

type WalletSettings struct {
	Keystore   string
	PrivateKey string
	Confirm    bool
}

type VaultSettings struct {
	Backend    string // disk | s3
	Path       string
	S3         S3Settings
	RedisURL   string // 可选: 对象存在性缓存
	JWTSecret  string
	SessionTTL time.Duration
}

type S3Settings struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type CacheSettings struct {
	Type     string // badger | redis | memory
	Path     string
	RedisURL string
}

type LedgerSettings struct {
	Driver string // sqlite | postgres
	DSN    string
}

type LogSettings struct {
	Level string
	File  string
}

type ServerSettings struct {
	HTTPAddr string
	GRPCAddr string
}

// Current 从全局 viper 读取当前配置
func Current() Settings {
	ttl := viper.GetDuration("vault.session_ttl")
	if ttl <= 0 {
		ttl = time.Hour
	}
	return Settings{
		Chain: ChainSettings{
			RPCURL:          viper.GetString("chain.rpc_url"),
			ID:              viper.GetInt64("chain.id"),
			RegistryAddress: viper.GetString("chain.registry_address"),
			Devnet:          viper.GetBool("chain.devnet"),
		},
		Relay: RelaySettings{
			Enabled: viper.GetBool("relay.enabled"),
			URL:     viper.GetString("relay.url"),
			APIKey:  viper.GetString("relay.api_key"),
		},
		Wallet: WalletSettings{
			Keystore:   viper.GetString("wallet.keystore"),
			PrivateKey: viper.GetString("wallet.private_key"),
			Confirm:    viper.GetBool("wallet.confirm"),
		},
		Vault: VaultSettings{
			Backend: viper.GetString("vault.backend"),
			Path:    viper.GetString("vault.path"),
			S3: S3Settings{
				Endpoint:  viper.GetString("vault.s3.endpoint"),
				Region:    viper.GetString("vault.s3.region"),
				Bucket:    viper.GetString("vault.s3.bucket"),
				AccessKey: viper.GetString("vault.s3.access_key_id"),
				SecretKey: viper.GetString("vault.s3.secret_access_key"),
			},
			RedisURL:   viper.GetString("vault.redis_url"),
			JWTSecret:  viper.GetString("vault.jwt_secret"),
			SessionTTL: ttl,
		},
		Cache: CacheSettings{
			Type:     viper.GetString("cache.type"),
			Path:     viper.GetString("cache.path"),
			RedisURL: viper.GetString("cache.redis_url"),
		},
		Ledger: LedgerSettings{
			Driver: viper.GetString("ledger.driver"),
			DSN:    viper.GetString("ledger.dsn"),
		},
		Log: LogSettings{
			Level: viper.GetString("log.level"),
			File:  viper.GetString("log.file"),
		},
		Server: ServerSettings{
			HTTPAddr: viper.GetString("server.http_addr"),
			GRPCAddr: viper.GetString("server.grpc_addr"),
		},
	}
}
