package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/rowantree/go-chunkvault/internal/config"
	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
)

// MinIOBlobStore stores chunk blobs in a MinIO (or any S3-compatible)
// bucket, one object per content hash, narrowed to the put/has/open
// surface a content-addressed store actually needs.
type MinIOBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOBlobStore constructs a MinIOBlobStore and ensures the configured
// bucket exists.
func NewMinIOBlobStore(ctx context.Context, cfg *config.MinIOConfig) (*MinIOBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("blobstore: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("blobstore: create bucket: %w", err)
		}
		logger.Info("blobstore: minio bucket created", zap.String("bucket", cfg.BucketName))
	}

	return &MinIOBlobStore{client: client, bucket: cfg.BucketName}, nil
}

func (s *MinIOBlobStore) Put(ctx context.Context, hash string, r io.Reader, size int64) error {
	exists, err := s.Has(ctx, hash)
	if err != nil {
		return err
	}
	if exists {
		_, _ = io.Copy(io.Discard, r)
		return nil
	}

	_, err = s.client.PutObject(ctx, s.bucket, key(hash), r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("blobstore: minio put %s: %w", hash, err)
	}
	return nil
}

func (s *MinIOBlobStore) Has(ctx context.Context, hash string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key(hash), minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("blobstore: minio stat %s: %w", hash, err)
	}
	return true, nil
}

func (s *MinIOBlobStore) Len(ctx context.Context, hash string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key(hash), minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("blobstore: minio stat %s: %w", hash, err)
	}
	return info.Size, nil
}

func (s *MinIOBlobStore) OpenRead(ctx context.Context, hash string, rng *Range) (io.ReadCloser, int64, error) {
	opts := minio.GetObjectOptions{}
	if rng != nil {
		if err := opts.SetRange(rng.Start, rng.End); err != nil {
			return nil, 0, fmt.Errorf("blobstore: invalid range: %w", err)
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key(hash), opts)
	if err != nil {
		return nil, 0, fmt.Errorf("blobstore: minio get %s: %w", hash, err)
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, fmt.Errorf("blobstore: minio stat after get %s: %w", hash, err)
	}
	return obj, stat.Size, nil
}

var _ BlobStore = (*MinIOBlobStore)(nil)
