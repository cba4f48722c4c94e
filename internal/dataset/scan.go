// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

const recordExt = ".npz"

// ScanDirectory lists the mesh records under root/<category>/<split>/ and
// resolves each category through labels. Hidden entries are ignored. An
// unknown category aborts the scan.
func ScanDirectory(root, split string, labels LabelMap) ([]types.LabeledSample, error) {
	categories, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading data root %s: %w", root, err)
	}

	var samples []types.LabeledSample
	for _, cat := range categories {
		if !cat.IsDir() || strings.HasPrefix(cat.Name(), ".") {
			continue
		}
		target, err := labels.Index(cat.Name())
		if err != nil {
			return nil, err
		}

		splitDir := filepath.Join(root, cat.Name(), split)
		entries, err := os.ReadDir(splitDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading split directory %s: %w", splitDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
				continue
			}
			samples = append(samples, types.LabeledSample{
				Path:   filepath.Join(splitDir, entry.Name()),
				Label:  cat.Name(),
				Target: target,
			})
		}
	}
	return samples, nil
}

// ManifestOptions selects the manifest columns used by ScanManifest.
type ManifestOptions struct {
	FileColumn  string
	LabelColumn string

	// SplitColumn and Split, when both set, keep only rows whose split
	// column equals Split.
	SplitColumn string
	Split       string
}

// ScanManifest reads a CSV manifest with a header row. Relative file paths
// are resolved against the manifest's directory.
func ScanManifest(path string, opts ManifestOptions, labels LabelMap) ([]types.LabeledSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()
	return readManifest(f, filepath.Dir(path), opts, labels)
}

func readManifest(r io.Reader, baseDir string, opts ManifestOptions, labels LabelMap) ([]types.LabeledSample, error) {
	if opts.FileColumn == "" {
		opts.FileColumn = "file"
	}
	if opts.LabelColumn == "" {
		opts.LabelColumn = "label"
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading manifest header: %w", err)
	}

	fileIdx, labelIdx, splitIdx := -1, -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case opts.FileColumn:
			fileIdx = i
		case opts.LabelColumn:
			labelIdx = i
		case opts.SplitColumn:
			if opts.SplitColumn != "" {
				splitIdx = i
			}
		}
	}
	if fileIdx < 0 {
		return nil, fmt.Errorf("manifest has no %q column", opts.FileColumn)
	}
	if labelIdx < 0 {
		return nil, fmt.Errorf("manifest has no %q column", opts.LabelColumn)
	}
	if opts.SplitColumn != "" && splitIdx < 0 {
		return nil, fmt.Errorf("manifest has no %q column", opts.SplitColumn)
	}

	var samples []types.LabeledSample
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading manifest line %d: %w", line, err)
		}
		if splitIdx >= 0 && opts.Split != "" && strings.TrimSpace(row[splitIdx]) != opts.Split {
			continue
		}

		file := strings.TrimSpace(row[fileIdx])
		if file == "" {
			continue
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		label := strings.TrimSpace(row[labelIdx])
		target, err := labels.Index(label)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", line, err)
		}
		samples = append(samples, types.LabeledSample{Path: file, Label: label, Target: target})
	}
	return samples, nil
}
