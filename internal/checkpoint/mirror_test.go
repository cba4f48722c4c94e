// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// TestMinioMirrorIntegration requires a running MinIO instance.
// Skip if not available.
func TestMinioMirrorIntegration(t *testing.T) {
	cfg := types.RemoteConfig{Endpoint: "localhost:9000", Bucket: "test-meshtrain", Prefix: "runs/test"}
	m, err := NewMinioMirror(cfg, "minioadmin", "minioadmin")
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := m.client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	require.NoError(t, m.EnsureBucket(ctx))

	want := sampleCheckpoint(30)
	data, err := Encode(want, CodecZstd)
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, "30.ckpt", data))

	got, err := m.Fetch(ctx, "30.ckpt")
	require.NoError(t, err)
	assert.Equal(t, want.Params, got.Params)
}

func TestMinioMirrorKey(t *testing.T) {
	m := &MinioMirror{prefix: "runs/exp1"}
	assert.Equal(t, "runs/exp1/MeshNet_best.ckpt", m.key("MeshNet_best.ckpt"))
}
