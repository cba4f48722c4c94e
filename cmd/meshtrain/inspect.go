// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mesh-classifier/internal/dataset"
	"github.com/pdiddy/mesh-classifier/pkg/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <record.npz>...",
	Short: "Show how mesh records are read and prepared",
	Long: `Inspect reads each .npz record, reports its face count and neighbor
fan-out, and prepares it the way the evaluation phase does (no jitter,
deterministic padding) to show the fixed-size result.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

// recordInfo summarizes one inspected record.
type recordInfo struct {
	Path        string `json:"path"`
	Faces       int    `json:"faces"`
	FanOut      int    `json:"fan_out"`
	Prepared    int    `json:"prepared_faces"`
	Padded      int    `json:"padded"`
	Truncated   int    `json:"truncated"`
	MaxNeighbor int64  `json:"max_neighbor"`
	Error       string `json:"error,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	loader, err := dataset.NewLoader(nil, dataset.Config{
		MaxFaces: cfg.Dataset.MaxFaces,
		Phase:    types.PhaseEval,
		Seed:     cfg.Dataset.Seed,
	})
	if err != nil {
		return err
	}
	source := dataset.NewSource(types.PhaseEval, cfg.Dataset.Seed)

	var infos []recordInfo
	var failed int
	for i, path := range args {
		info := recordInfo{Path: path}
		raw, err := dataset.ReadRecord(path)
		if err == nil {
			info.Faces, info.FanOut = raw.Len(), raw.FanOut()
			var t types.PreparedTensor
			t, err = loader.Prepare(raw, 0, source.ForSample(i))
			if err == nil {
				info.Prepared = t.Faces()
				info.Padded = max(info.Prepared-info.Faces, 0)
				info.Truncated = max(info.Faces-info.Prepared, 0)
				for _, row := range t.NeighborIndex {
					for _, nb := range row {
						info.MaxNeighbor = max(info.MaxNeighbor, nb)
					}
				}
			}
		}
		if err != nil {
			info.Error = err.Error()
			failed++
		}
		infos = append(infos, info)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Println(string(data))
	} else {
		for _, info := range infos {
			if info.Error != "" {
				fmt.Printf("%s\n  error: %s\n", info.Path, info.Error)
				continue
			}
			fmt.Printf("%s\n  faces: %d  fan-out: %d\n  prepared: %d faces (%d padded, %d truncated)  max neighbor index: %d\n",
				info.Path, info.Faces, info.FanOut, info.Prepared, info.Padded, info.Truncated, info.MaxNeighbor)
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d record(s) could not be prepared\n", failed, len(args))
		return fmt.Errorf("%d record(s) failed", failed)
	}
	return nil
}

func init() {
	inspectCmd.Flags().Int("max-faces", 0, "fixed face count to prepare records at")
	inspectCmd.Flags().Int64("seed", 0, "padding seed")
	inspectCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(inspectCmd)
}
