package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tcheukueppo/WWW-Mechanize/internal/config"
	"github.com/tcheukueppo/WWW-Mechanize/internal/observability"
)

// Version is stamped at build time.
var Version = "dev"

var (
	cfgFile    string
	quietFlag  bool
	agentFlag  string
	headerFlag []string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "mech",
	Short:   "mech is a scripted web-browsing client.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			basicLogger, _ := zap.NewDevelopment()
			basicLogger.Error("Failed to initialize configuration", zap.Error(err))
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		var cfg config.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "mech"})
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			observability.InitializeLogger(cfg.Logger)
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if quietFlag {
			cfg.Browse.Quiet = true
		}
		if agentFlag != "" {
			cfg.Browse.UserAgent = agentFlag
		}
		if cfg.Network.Headers == nil {
			cfg.Network.Headers = make(map[string]string)
		}
		for _, entry := range headerFlag {
			name, value, found := strings.Cut(entry, "=")
			if !found || name == "" {
				return fmt.Errorf("invalid --header entry %q, want name=value", entry)
			}
			cfg.Network.Headers[name] = value
		}

		config.Set(&cfg)
		observability.InitializeLogger(cfg.Logger)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it with the
// context passed from main for graceful shutdown.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			if ctx.Err() == nil {
				logger.Error("Command execution failed", zap.Error(err))
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress non-fatal warnings")
	rootCmd.PersistentFlags().StringVar(&agentFlag, "user-agent", "", "override the User-Agent string")
	rootCmd.PersistentFlags().StringArrayVar(&headerFlag, "header", nil, "extra header (name=value), repeatable")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(formsCmd)
	rootCmd.AddCommand(followCmd)
}

// initializeConfig reads in the config file and environment variables if set.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MECH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
