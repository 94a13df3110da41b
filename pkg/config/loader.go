package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DirName 本地工作目录名
const DirName = ".sealdrive"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序: 当前目录 -> ./.sealdrive -> ~/.sealdrive
		viper.AddConfigPath(".")
		viper.AddConfigPath(DirName)
		viper.AddConfigPath(filepath.Join(home, DirName))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// 3. 读取环境变量 (SD_RELAY_API_KEY 等)
	viper.SetEnvPrefix("SD")
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，可能全靠环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return nil
}

// UsedFile 返回实际加载的配置文件 (可能为空)
func UsedFile() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	wd, _ := os.Getwd()
	base := filepath.Join(wd, DirName)

	// 链
	viper.SetDefault("chain.id", int64(1337))
	viper.SetDefault("chain.devnet", true)
	viper.SetDefault("chain.rpc_url", "")
	viper.SetDefault("chain.registry_address", "")

	// 代付中继
	viper.SetDefault("relay.enabled", true)
	viper.SetDefault("relay.url", "")
	viper.SetDefault("relay.api_key", "")

	// 钱包
	viper.SetDefault("wallet.keystore", "")
	viper.SetDefault("wallet.private_key", "")
	viper.SetDefault("wallet.confirm", true)

	// 加密存储网络
	viper.SetDefault("vault.backend", "disk")
	viper.SetDefault("vault.path", filepath.Join(base, "vault"))
	viper.SetDefault("vault.s3.endpoint", "")
	viper.SetDefault("vault.s3.region", "us-east-1")
	viper.SetDefault("vault.s3.bucket", "sealdrive")
	viper.SetDefault("vault.s3.access_key_id", "")
	viper.SetDefault("vault.s3.secret_access_key", "")
	viper.SetDefault("vault.redis_url", "")
	viper.SetDefault("vault.jwt_secret", "")
	viper.SetDefault("vault.session_ttl", "1h")

	// 列表缓存
	viper.SetDefault("cache.type", "badger")
	viper.SetDefault("cache.path", filepath.Join(base, "cache"))
	viper.SetDefault("cache.redis_url", "redis://localhost:6379/0")

	// 本地链账本 (devnet)
	viper.SetDefault("ledger.driver", "sqlite")
	viper.SetDefault("ledger.dsn", filepath.Join(base, "ledger.db"))

	// 日志
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")

	// 网关
	viper.SetDefault("server.http_addr", ":8080")
	viper.SetDefault("server.grpc_addr", ":8081")
}
