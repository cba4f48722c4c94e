// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// ExportRun holds a run and its scalars grouped by tag.
type ExportRun struct {
	Run     Run                `json:"run" yaml:"run"`
	Scalars map[string][]Point `json:"scalars" yaml:"scalars"`
}

// Point is one step of a scalar series.
type Point struct {
	Step  int     `json:"step" yaml:"step"`
	Value float64 `json:"value" yaml:"value"`
}

// Export writes the run and its scalars to w as "yaml" or "json".
func (s *Store) Export(ctx context.Context, run Run, format string, w io.Writer) error {
	scalars, err := s.Scalars(ctx, run.ID, "")
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	out := ExportRun{Run: run, Scalars: make(map[string][]Point)}
	for _, sc := range scalars {
		out.Scalars[sc.Tag] = append(out.Scalars[sc.Tag], Point{Step: sc.Step, Value: sc.Value})
	}

	var data []byte
	switch format {
	case "yaml", "":
		data, err = yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
	case "json":
		data, err = json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown export format %q: use yaml or json", format)
	}
	_, err = w.Write(data)
	return err
}
