// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// Secret file names holding the object store credentials.
const (
	AccessKeySecret = "s3-access-key"
	SecretKeySecret = "s3-secret-key"
)

// MinioMirror copies checkpoints to a MinIO or S3-compatible bucket.
type MinioMirror struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioMirror connects to the endpoint in cfg with static credentials.
func NewMinioMirror(cfg types.RemoteConfig, accessKey, secretKey string) (*MinioMirror, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return &MinioMirror{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (m *MinioMirror) key(name string) string {
	return path.Join(m.prefix, name)
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioMirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Put uploads data as name under the mirror prefix.
func (m *MinioMirror) Put(ctx context.Context, name string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

// Fetch downloads and decodes a mirrored checkpoint.
func (m *MinioMirror) Fetch(ctx context.Context, name string) (Checkpoint, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.key(name), minio.GetObjectOptions{})
	if err != nil {
		return Checkpoint{}, fmt.Errorf("fetching %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("fetching %s: %w", name, err)
	}
	return Decode(data)
}
