// Package tokenstore tracks issued UploadTokens server-side so a token can
// be revoked (e.g. on mergeFile success) before its JWT expiry, and so a
// replayed token can be rejected even while still cryptographically valid.
// Built on a cache-backed session bookkeeping pattern, generalized from
// user sessions to upload tokens.
package tokenstore

import (
	"context"
	"time"

	"github.com/rowantree/go-chunkvault/internal/pkg/cache"
	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
)

// Entry is the bookkeeping record kept per issued token.
type Entry struct {
	FileID    string    `json:"fileId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store tracks issued UploadTokens and their revocation state.
type Store interface {
	// Track records a freshly issued token, keyed by its raw string, so it
	// can later be revoked independent of JWT verification.
	Track(ctx context.Context, token string, fileID string, ttl time.Duration) error

	// IsRevoked reports whether token has been explicitly revoked (e.g.
	// after a successful mergeFile) or was never tracked.
	IsRevoked(ctx context.Context, token string) (bool, error)

	// Revoke marks token unusable for further adapter calls.
	Revoke(ctx context.Context, token string) error
}

// RedisStore is the cache.Cache-backed Store, using a Redis
// session-key pattern (GenerateUploadTokenKey).
type RedisStore struct {
	cache cache.Cache
}

func NewRedisStore(c cache.Cache) *RedisStore {
	return &RedisStore{cache: c}
}

func (s *RedisStore) Track(ctx context.Context, token string, fileID string, ttl time.Duration) error {
	key := cache.GenerateUploadTokenKey(token)
	entry := Entry{FileID: fileID, ExpiresAt: time.Now().Add(ttl)}
	if err := s.cache.Set(ctx, key, entry, ttl); err != nil {
		return xerr.NewCodeError(xerr.StorageErrorCode, xerr.ErrStorageError)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	key := cache.GenerateUploadTokenKey(token)
	exists, err := s.cache.Exists(ctx, key)
	if err != nil {
		return false, xerr.NewCodeError(xerr.StorageErrorCode, xerr.ErrStorageError)
	}
	return !exists, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	key := cache.GenerateUploadTokenKey(token)
	if err := s.cache.Del(ctx, key); err != nil {
		return xerr.NewCodeError(xerr.StorageErrorCode, xerr.ErrStorageError)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
