// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   Secrets
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "s3-access-key", "  AKIA123  \n")
				writeFile(t, dir, "s3-secret-key", "s3cr3t\n")
				return dir
			},
			want: Secrets{
				"s3-access-key": "AKIA123",
				"s3-secret-key": "s3cr3t",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "s3-access-key", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: Secrets{
				"s3-access-key": "valid-key",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "s3-secret-key", "real")
				return dir
			},
			want: Secrets{
				"s3-secret-key": "real",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "s3-access-key", "ak_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: Secrets{
				"s3-access-key": "ak_123",
			},
		},
		{
			name: "returns error when path is a file",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "plain", "x")
				return filepath.Join(dir, "plain")
			},
			errMsg: "reading secrets directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir, nil)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	var logs bytes.Buffer
	got, err := Load(dir, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	assert.Equal(t, "value123", got["good-key"])
	assert.NotContains(t, got, "bad-key")
	assert.Contains(t, logs.String(), "could not read secret")
}

func TestRequire(t *testing.T) {
	s := Secrets{"s3-access-key": "a", "s3-secret-key": "b"}
	got, err := s.Require("s3-access-key", "s3-secret-key")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = Secrets{"s3-access-key": "a"}.Require("s3-access-key", "s3-secret-key", "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3-secret-key, other")
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
