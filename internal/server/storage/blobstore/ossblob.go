package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/rowantree/go-chunkvault/internal/config"
)

// OSSBlobStore is the Aliyun OSS-backed BlobStore, narrowed the same way
// MinIOBlobStore narrows its MinIO counterpart.
type OSSBlobStore struct {
	bucket *oss.Bucket
}

// NewOSSBlobStore constructs an OSSBlobStore and ensures the configured
// bucket exists.
func NewOSSBlobStore(cfg *config.AliyunOSSConfig) (*OSSBlobStore, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("blobstore: init oss client: %w", err)
	}

	exists, err := client.IsBucketExist(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("blobstore: check oss bucket: %w", err)
	}
	if !exists {
		if err := client.CreateBucket(cfg.BucketName); err != nil {
			return nil, fmt.Errorf("blobstore: create oss bucket: %w", err)
		}
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("blobstore: get oss bucket: %w", err)
	}
	return &OSSBlobStore{bucket: bucket}, nil
}

func (s *OSSBlobStore) Put(ctx context.Context, hash string, r io.Reader, size int64) error {
	exists, err := s.Has(ctx, hash)
	if err != nil {
		return err
	}
	if exists {
		_, _ = io.Copy(io.Discard, r)
		return nil
	}

	if err := s.bucket.PutObject(key(hash), r, oss.ContentType("application/octet-stream")); err != nil {
		return fmt.Errorf("blobstore: oss put %s: %w", hash, err)
	}
	return nil
}

func (s *OSSBlobStore) Has(ctx context.Context, hash string) (bool, error) {
	return s.bucket.IsObjectExist(key(hash))
}

func (s *OSSBlobStore) Len(ctx context.Context, hash string) (int64, error) {
	meta, err := s.bucket.GetObjectDetailedMeta(key(hash))
	if err != nil {
		return 0, fmt.Errorf("blobstore: oss meta %s: %w", hash, err)
	}
	var size int64
	if v := meta.Get(oss.HTTPHeaderContentLength); v != "" {
		fmt.Sscanf(v, "%d", &size)
	}
	return size, nil
}

func (s *OSSBlobStore) OpenRead(ctx context.Context, hash string, rng *Range) (io.ReadCloser, int64, error) {
	var opts []oss.Option
	if rng != nil {
		opts = append(opts, oss.Range(rng.Start, rng.End))
	}

	reader, err := s.bucket.GetObject(key(hash), opts...)
	if err != nil {
		return nil, 0, fmt.Errorf("blobstore: oss get %s: %w", hash, err)
	}

	size, err := s.Len(ctx, hash)
	if err != nil {
		reader.Close()
		return nil, 0, err
	}
	if rng != nil {
		size = rng.End - rng.Start + 1
	}
	return reader, size, nil
}

var _ BlobStore = (*OSSBlobStore)(nil)
