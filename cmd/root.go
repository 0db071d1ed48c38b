package cmd

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lockbridge/walletrun/internal/config"
	"github.com/lockbridge/walletrun/internal/observability"
)

// NewRootCommand builds a fresh root command. A new instance per invocation
// keeps flag state from leaking between test runs.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:     "walletrun",
		Short:   "End-to-end scenario harness for the Lockbridge Wallet browser extension.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A local .env is developer convenience only; absence is fine.
			_ = godotenv.Load()

			v := viper.New()
			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}

			loaded, err := config.NewConfigFromViper(v)
			if err != nil {
				// Fall back to a console logger so the error itself is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "walletrun"})
				return err
			}
			*cfg = *loaded

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting walletrun",
				zap.String("version", Version),
				zap.String("browser", cfg.Browser.Vendor))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// initializeConfig loads defaults, the optional config file, and env vars.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WALLETRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}
	return nil
}
