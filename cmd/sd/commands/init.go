package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"sealdrive/pkg/config"
	"sealdrive/pkg/wallet"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const configTemplate = `# SealDrive configuration
chain:
  devnet: true
  id: 1337
  # rpc_url: https://rpc.example.org
  # registry_address: 0x...
relay:
  enabled: true
  # url: https://relay.example.org
  # api_key: ...
wallet:
  keystore: %q
  confirm: true
vault:
  backend: disk
  path: %q
cache:
  type: badger
  path: %q
ledger:
  driver: sqlite
  dsn: %q
log:
  level: info
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a SealDrive workspace",
	Long:  `Create a .sealdrive directory with a devnet configuration and a new encrypted wallet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		base := filepath.Join(wd, config.DirName)
		cfgPath := filepath.Join(base, "config.yaml")

		// 1. 已存在则跳过
		if _, err := os.Stat(cfgPath); err == nil {
			pterm.Warning.Printfln("SealDrive workspace already exists in %s", base)
			return nil
		}
		if err := os.MkdirAll(base, 0o700); err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}

		// 2. 新钱包 (keystore v3)
		pass, err := wallet.ReadPassphrase("New wallet passphrase: ")
		if err != nil {
			return err
		}
		ks := keystore.NewKeyStore(filepath.Join(base, "keystore"), keystore.StandardScryptN, keystore.StandardScryptP)
		acct, err := ks.NewAccount(pass)
		if err != nil {
			return fmt.Errorf("failed to create wallet: %w", err)
		}

		// 3. 配置文件
		content := fmt.Sprintf(configTemplate,
			acct.URL.Path,
			filepath.Join(base, "vault"),
			filepath.Join(base, "cache"),
			filepath.Join(base, "ledger.db"),
		)
		if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
			return err
		}

		pterm.Success.Printfln("Initialized SealDrive workspace in %s", base)
		pterm.Info.Printfln("Wallet address: %s", acct.Address.Hex())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
