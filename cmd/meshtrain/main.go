// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the meshtrain CLI: it trains and
// evaluates a mesh classifier from .npz mesh records and manages the
// checkpoints and metrics a run produces.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/mesh-classifier/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the meshtrain CLI.
var rootCmd = &cobra.Command{
	Use:   "meshtrain",
	Short: "Train and evaluate mesh classifiers on anatomical surface meshes",
	Long: `meshtrain prepares triangulated surface meshes (.npz records holding
per-face features and neighbor indices) as fixed-size tensors and drives a
train/evaluate loop that tracks accuracy and retrieval mAP per epoch.

Subcommands: train runs the epoch loop and writes checkpoints, eval scores a
checkpoint on the evaluation split, inspect shows how a record is prepared,
and metrics lists and exports the scalars recorded for past runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/", slog.Default())
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
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./meshtrain.yaml or ~/.config/meshtrain/meshtrain.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("meshtrain")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "meshtrain"))
		}
	}

	viper.SetEnvPrefix("MESHTRAIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
