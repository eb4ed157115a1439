// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the kb-engine CLI.
// Article storage and indexing, live answers, feedback, content health,
// and the batch insight jobs are subcommands; serve, mcp, and consume run
// the long-lived surfaces.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/kb-engine/internal/config"
	"github.com/pdiddy/kb-engine/internal/engine"
	"github.com/pdiddy/kb-engine/internal/secrets"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the kb-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "kb-engine",
	Short: "Knowledge-base intelligence for customer support",
	Long: `kb-engine keeps a support knowledge base searchable and healthy. It indexes
articles for semantic search, answers questions with cited sources, tracks
reader feedback, flags weak or stale articles, and mines support tickets and
conversations for missing articles and FAQ entries.

Configuration comes from ./kb-engine.yaml (or --config), KB_ENGINE_*
environment variables, a .env file, and credential files in .secrets/.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(verbose)

		s, err := secrets.Load(secrets.DefaultDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			slog.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./kb-engine.yaml or ~/.config/kb-engine/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory holding kb.db and exports/ (default: kb-data)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	_ = viper.BindPFlag("store.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("kb-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "kb-engine"))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig unmarshals and validates the engine configuration.
func loadConfig() (types.EngineConfig, error) {
	return config.Load(viper.GetViper(), loadedSecrets)
}

// openEngine loads configuration and opens the engine. The caller closes it.
func openEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.Open(ctx, cfg)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to n runes for table output.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
