package commands

import (
	"context"
	"fmt"

	"sealdrive/pkg/app"
	"sealdrive/pkg/config"
	"sealdrive/pkg/logging"
	"sealdrive/pkg/session"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// 带此注解的命令只需要配置，不组装 App
const annotationNoSession = "sd/no-session"

var (
	cfgFile string

	// 全局应用实例与会话，供子命令使用
	SD      *app.App
	Session *session.Session
	Log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "sd",
	Short:         "SealDrive: encrypted file storage with an on-chain registry",
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE 在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init 负责创建环境，不需要 App
		if cmd.Name() == "init" || cmd.Name() == "help" {
			return nil
		}
		if err := config.Load(cfgFile); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if cmd.Annotations[annotationNoSession] == "true" {
			return nil
		}
		return setup(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sealdrive/config.yaml)")

	// 常用配置项可以用 flag 覆盖
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-relay", false, "disable sponsored transactions")
	mustBind("log.level", "log-level")
}

func mustBind(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
	}
}

// setup 组装 App 并打开会话
func setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Current()
	if noRelay, _ := cmd.Root().PersistentFlags().GetBool("no-relay"); noRelay {
		cfg.Relay.Enabled = false
	}

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	Log = log

	signer, err := app.LoadSigner(cfg.Wallet)
	if err != nil {
		return fmt.Errorf("%w\n(Did you run 'sd init'?)", err)
	}

	SD, err = app.NewApp(ctx, cfg, signer, log)
	if err != nil {
		return fmt.Errorf("failed to initialize sealdrive: %w", err)
	}

	Session, err = SD.OpenSession(ctx)
	if err != nil {
		_ = teardown()
		return err
	}
	return nil
}

func teardown() error {
	var err error
	if Session != nil {
		err = Session.Close()
		Session = nil
	}
	if SD != nil {
		if cerr := SD.Close(); err == nil {
			err = cerr
		}
		SD = nil
	}
	if Log != nil {
		_ = Log.Sync()
	}
	return err
}

func requireSession() error {
	if SD == nil || Session == nil {
		return fmt.Errorf("app not initialized")
	}
	return nil
}
