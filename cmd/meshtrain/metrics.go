// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mesh-classifier/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List, show, and export recorded training runs",
	Long: `Metrics reads the SQLite database that train records per-epoch scalars
into (data/train_loss, data/train_acc, data/test_loss, data/test_acc,
data/test_map). A run is referenced by its ID, its name, or "latest".`,
}

// --- runs subcommand ---

var metricsRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, most recent first",
	RunE:  runMetricsRuns,
}

func runMetricsRuns(cmd *cobra.Command, args []string) error {
	store, err := openMetrics(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	for _, r := range runs {
		status := "running"
		if !r.FinishedAt.IsZero() {
			status = "finished in " + r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("%s  %s  started %s  %s\n", r.ID, r.Name, r.StartedAt.Local().Format(time.DateTime), status)
	}
	return nil
}

// --- show subcommand ---

var metricsShowCmd = &cobra.Command{
	Use:   "show <run>",
	Short: "Print a run's scalars",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetricsShow,
}

func runMetricsShow(cmd *cobra.Command, args []string) error {
	store, err := openMetrics(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	run, err := store.FindRun(ctx, args[0])
	if err != nil {
		return err
	}
	tag, _ := cmd.Flags().GetString("tag")
	scalars, err := store.Scalars(ctx, run.ID, tag)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s)\n", run.Name, run.ID)
	current := ""
	for _, sc := range scalars {
		if sc.Tag != current {
			current = sc.Tag
			fmt.Printf("\n%s\n", current)
		}
		fmt.Printf("  %4d  %.4f\n", sc.Step, sc.Value)
	}
	return nil
}

// --- export subcommand ---

var metricsExportCmd = &cobra.Command{
	Use:   "export <run>",
	Short: "Export a run's scalars as YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetricsExport,
}

func runMetricsExport(cmd *cobra.Command, args []string) error {
	store, err := openMetrics(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	run, err := store.FindRun(ctx, args[0])
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return store.Export(ctx, run, format, out)
}

func openMetrics(cmd *cobra.Command) (*metrics.Store, error) {
	cfg, _, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	return metrics.NewStore(cfg.Metrics)
}

func init() {
	metricsCmd.PersistentFlags().String("metrics-db", "", "SQLite database for per-epoch scalars")

	metricsShowCmd.Flags().String("tag", "", "only show this tag")
	metricsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	metricsExportCmd.Flags().String("output", "", "write to this file instead of stdout")

	metricsCmd.AddCommand(metricsRunsCmd)
	metricsCmd.AddCommand(metricsShowCmd)
	metricsCmd.AddCommand(metricsExportCmd)
	rootCmd.AddCommand(metricsCmd)
}
