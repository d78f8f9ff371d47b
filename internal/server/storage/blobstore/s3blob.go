package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/rowantree/go-chunkvault/internal/config"
)

// S3BlobStore is a third BlobStore backend over aws-sdk-go-v2, grounded on
// dmitrijs2005-gophkeeper's S3Client construction (static credentials +
// optional BaseEndpoint override for S3-compatible stores) — gives this
// tree a non-MinIO/non-OSS backend option without inventing new wiring.
type S3BlobStore struct {
	client *s3.Client
	bucket string
}

// NewS3BlobStore constructs an S3BlobStore targeting cfg.BucketName. A
// non-empty cfg.Endpoint overrides the default AWS endpoint, for
// S3-compatible self-hosted stores (the same pattern gophkeeper's
// EntryService uses for MinIO-as-S3).
func NewS3BlobStore(ctx context.Context, cfg *config.S3Config) (*S3BlobStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{client: client, bucket: cfg.BucketName}, nil
}

func (s *S3BlobStore) Put(ctx context.Context, hash string, r io.Reader, size int64) error {
	exists, err := s.Has(ctx, hash)
	if err != nil {
		return err
	}
	if exists {
		_, _ = io.Copy(io.Discard, r)
		return nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key(hash)),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("blobstore: s3 put %s: %w", hash, err)
	}
	return nil
}

func (s *S3BlobStore) Has(ctx context.Context, hash string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(hash)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if ok := asAPIError(err, &apiErr); ok && apiErr.ErrorCode() == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("blobstore: s3 head %s: %w", hash, err)
	}
	return true, nil
}

func (s *S3BlobStore) Len(ctx context.Context, hash string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(hash)),
	})
	if err != nil {
		return 0, fmt.Errorf("blobstore: s3 head %s: %w", hash, err)
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

func (s *S3BlobStore) OpenRead(ctx context.Context, hash string, rng *Range) (io.ReadCloser, int64, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(hash)),
	}
	if rng != nil {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End))
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, 0, fmt.Errorf("blobstore: s3 get %s: %w", hash, err)
	}

	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// asAPIError unwraps err into target if it carries an AWS smithy API error.
func asAPIError(err error, target *smithy.APIError) bool {
	for e := err; e != nil; {
		if ae, ok := e.(smithy.APIError); ok {
			*target = ae
			return true
		}
		unwrapper, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = unwrapper.Unwrap()
	}
	return false
}

var _ BlobStore = (*S3BlobStore)(nil)
