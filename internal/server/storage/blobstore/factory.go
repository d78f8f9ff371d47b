package blobstore

import (
	"context"
	"fmt"

	"github.com/rowantree/go-chunkvault/internal/config"
)

// New selects a BlobStore backend by cfg.Storage.Type.
func New(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.Storage.Type {
	case "minio":
		return NewMinIOBlobStore(ctx, &cfg.MinIO)
	case "aliyun_oss":
		return NewOSSBlobStore(&cfg.AliyunOSS)
	case "s3":
		return NewS3BlobStore(ctx, &cfg.S3)
	default:
		return nil, fmt.Errorf("blobstore: unknown storage type %q", cfg.Storage.Type)
	}
}
