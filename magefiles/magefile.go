//go:build mage

// Package main contains Mage build targets for meshtrain developer tooling.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories a training run expects.
var projectDirs = []string{
	"dataset",
	"ckpt_root",
	"runs",
	".secrets",
}

// Init creates the project directory structure for training runs.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "meshtrain"
	cmdPkg  = "./cmd/meshtrain"
)

// Build compiles the CLI binary into bin/, stamping the version from git.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || version == "" {
		version = "dev"
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Train builds the CLI and runs a training pass with meshtrain.yaml.
func Train() error {
	mg.Deps(Init, Build)
	return sh.RunV(filepath.Join(binDir, binName), "train")
}

// Eval builds the CLI and scores the best checkpoint.
func Eval() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "eval")
}

// Stats prints project metrics: Go production/test LOC and the number of
// mesh records per category and split under dataset/.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}
	records, err := countRecords("dataset")
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	if len(records) == 0 {
		fmt.Println("Mesh records:                   none")
		return nil
	}
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("Mesh records:")
	for _, k := range keys {
		fmt.Printf("  %-28s %d\n", k, records[k])
	}
	return nil
}

// countGoLines walks the directory tree and counts non-blank lines in Go files.
// If testOnly is true, count only _test.go files; otherwise count non-test .go files.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			if len(bytes.TrimSpace(sc.Bytes())) > 0 {
				total++
			}
		}
		return sc.Err()
	})
	return total, err
}

// countRecords counts .npz files under root/<category>/<split>/, keyed by
// "<category>/<split>". A missing root counts as empty.
func countRecords(root string) (map[string]int, error) {
	counts := make(map[string]int)
	matches, err := filepath.Glob(filepath.Join(root, "*", "*", "*.npz"))
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		rel, err := filepath.Rel(root, filepath.Dir(m))
		if err != nil {
			return nil, err
		}
		counts[filepath.ToSlash(rel)]++
	}
	return counts, nil
}
