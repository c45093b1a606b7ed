// Package main contains the onething CLI commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/do-one-thing/internal/api"
	"github.com/Veraticus/do-one-thing/internal/blocker"
	"github.com/Veraticus/do-one-thing/internal/cache"
	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/config"
	"github.com/Veraticus/do-one-thing/internal/engine"
	"github.com/Veraticus/do-one-thing/internal/llm"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "onething",
		Short: "🎯 Do one thing: block everything that isn't your focus",
		Long: `onething keeps a browsing session on a single stated goal.

Start a focus session with what you want to get done; every page you open is
then judged against that goal using your allow and deny lists, recent verdicts
and, when needed, an AI model. Irrelevant pages are blocked.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/onething/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("db", "", "database path (default: $HOME/.local/share/onething/onething.db)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))

	// Add commands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(dataCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.consent", false)
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", 500*time.Millisecond)
	v.SetDefault("llm.rate_limit", 60)

	v.SetDefault("engine.cache_ttl", cache.DefaultTTL)
	v.SetDefault("engine.cache_max_entries", cache.DefaultMaxEntries)
	v.SetDefault("engine.cache_low_watermark", cache.DefaultLowWatermark)
	v.SetDefault("engine.coalesce", engine.DefaultConfig().Coalesce)
	v.SetDefault("engine.batch_workers", engine.DefaultConfig().BatchWorkers)

	v.SetDefault("server.addr", api.DefaultAddr)
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", filepath.Join(config.DefaultConfigDir(), "certs"))
	v.SetDefault("blocker.page", blocker.DefaultBlockedPage)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.interval", 30*time.Second)
}

func initConfig(_ *cobra.Command, _ []string) error {
	setDefaults(viper.GetViper())

	// Set up config file
	if cfgFile != "" {
		viper.SetConfigFile(config.ExpandPath(cfgFile))
	} else {
		viper.AddConfigPath(config.DefaultConfigDir())
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables: llm.consent is ONETHING_LLM_CONSENT
	viper.SetEnvPrefix("ONETHING")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := setupLogging(); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func setupLogging() error {
	level, err := common.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return err
	}
	return common.SetupLogger(level, viper.GetString("logging.format"))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "onething %s\n", version)
		},
	}
}
