// Package uploadservice implements the server half of the four-call wire
// contract (createFile/verifyHash/uploadChunk/mergeFile) plus ranged file
// reads, tying together blobstore.BlobStore, metastore.MetadataStore and
// tokenstore.Store: an interface, a struct holding its collaborators, and
// a constructor.
package uploadservice

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rowantree/go-chunkvault/internal/config"
	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/protocol"
	"github.com/rowantree/go-chunkvault/internal/server/storage/blobstore"
	"github.com/rowantree/go-chunkvault/internal/server/storage/metastore"
	"github.com/rowantree/go-chunkvault/internal/server/storage/tokenstore"
)

// FileStream is the result of a ranged or full read, returned to the
// handler for it to set response headers and status.
type FileStream struct {
	Body          io.ReadCloser
	MimeType      string
	TotalSize     int64
	ContentLength int64
	Partial       bool
	RangeStart    int64
	RangeEnd      int64
}

// Service is the server upload capability consumed by internal/server/handlers.
type Service interface {
	CreateFile(ctx context.Context, req protocol.CreateFileRequest) (*protocol.CreateFileResponse, error)
	VerifyHash(ctx context.Context, req protocol.VerifyHashRequest) (*protocol.VerifyHashResponse, error)
	UploadChunk(ctx context.Context, token string, chunkIndex int, chunkHash string, r io.Reader, size int64) (*protocol.UploadChunkResponse, error)
	MergeFile(ctx context.Context, req protocol.MergeFileRequest) (*protocol.MergeFileResponse, error)
	GetFileStream(ctx context.Context, fileID string, rangeHeader string) (*FileStream, error)
	StartExpirySweep(ctx context.Context, interval time.Duration)
}

type service struct {
	blobs   blobstore.BlobStore
	meta    metastore.MetadataStore
	tokens  tokenstore.Store
	signer  *protocol.TokenSigner
	chunk   config.ChunkConfig
}

func New(blobs blobstore.BlobStore, meta metastore.MetadataStore, tokens tokenstore.Store, signer *protocol.TokenSigner, chunkCfg config.ChunkConfig) Service {
	return &service{blobs: blobs, meta: meta, tokens: tokens, signer: signer, chunk: chunkCfg}
}

// negotiateChunkSize clamps the client's preference into [minSize,
// maxSize], falling back to the server's configured initial size when the
// client expressed no preference.
func (s *service) negotiateChunkSize(preferred int64) int64 {
	if preferred <= 0 {
		return s.chunk.InitialSize
	}
	if preferred < s.chunk.MinSize {
		return s.chunk.MinSize
	}
	if preferred > s.chunk.MaxSize {
		return s.chunk.MaxSize
	}
	return preferred
}

func (s *service) CreateFile(ctx context.Context, req protocol.CreateFileRequest) (*protocol.CreateFileResponse, error) {
	fileID := uuid.NewString()
	negotiated := s.negotiateChunkSize(req.PreferredChunkSize)

	_, err := s.meta.CreatePendingManifest(ctx, metastore.NewManifestParams{
		FileID:    fileID,
		FileName:  req.FileName,
		MimeType:  req.FileType,
		TotalSize: req.FileSize,
		ChunkSize: negotiated,
		ExpiresIn: s.signer.ExpiresIn,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.signer.Issue(fileID, negotiated)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.InternalServerErrorCode, xerr.ErrInternalServer)
	}
	if err := s.tokens.Track(ctx, token, fileID, s.signer.ExpiresIn); err != nil {
		logger.Warn("uploadservice: token tracking failed, continuing stateless", zap.Error(err))
	}

	return &protocol.CreateFileResponse{
		UploadToken:         token,
		NegotiatedChunkSize: negotiated,
	}, nil
}

// verifyToken parses token, confirms it has not been explicitly revoked,
// and returns the fileID it is scoped to.
func (s *service) verifyToken(ctx context.Context, token string) (*protocol.Claims, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.tokens.IsRevoked(ctx, token)
	if err == nil && revoked {
		return nil, xerr.NewCodeError(xerr.TokenInvalidCode, xerr.ErrTokenInvalid)
	}
	return claims, nil
}

func (s *service) VerifyHash(ctx context.Context, req protocol.VerifyHashRequest) (*protocol.VerifyHashResponse, error) {
	if _, err := s.verifyToken(ctx, req.UploadToken); err != nil {
		return nil, err
	}

	resp := &protocol.VerifyHashResponse{}

	if req.FileHash != "" {
		m, err := s.meta.GetCompletedManifestByFileHash(ctx, req.FileHash)
		if err != nil {
			return nil, err
		}
		if m != nil {
			resp.FileExists = true
			resp.FileURL = fileURL(m.FileID)
			return resp, nil
		}
	}

	if len(req.ChunkHashes) == 0 {
		return resp, nil
	}

	for i, hash := range req.ChunkHashes {
		exists, err := s.blobs.Has(ctx, hash)
		if err != nil {
			return nil, xerr.NewCodeError(xerr.StorageErrorCode, xerr.ErrStorageError)
		}
		if exists {
			resp.ExistingChunks = append(resp.ExistingChunks, i)
		} else {
			resp.MissingChunks = append(resp.MissingChunks, i)
		}
	}
	return resp, nil
}

func (s *service) UploadChunk(ctx context.Context, token string, chunkIndex int, chunkHash string, r io.Reader, size int64) (*protocol.UploadChunkResponse, error) {
	claims, err := s.verifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	hasher := md5.New()
	buf, err := io.ReadAll(io.TeeReader(r, hasher))
	if err != nil {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}
	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != chunkHash {
		return nil, xerr.NewCodeError(xerr.IntegrityErrorCode, xerr.ErrIntegrityError)
	}

	if err := s.blobs.Put(ctx, chunkHash, bytes.NewReader(buf), int64(len(buf))); err != nil {
		return nil, xerr.NewCodeError(xerr.StorageErrorCode, xerr.ErrStorageError)
	}

	if err := s.meta.RecordChunk(ctx, claims.FileID, metastore.ChunkRef{
		Index: chunkIndex,
		Hash:  chunkHash,
		Size:  int64(len(buf)),
	}); err != nil {
		return nil, err
	}

	return &protocol.UploadChunkResponse{Success: true, ChunkHash: chunkHash}, nil
}

func (s *service) MergeFile(ctx context.Context, req protocol.MergeFileRequest) (*protocol.MergeFileResponse, error) {
	claims, err := s.verifyToken(ctx, req.UploadToken)
	if err != nil {
		return nil, err
	}

	manifest, err := s.meta.GetManifestByFileID(ctx, claims.FileID)
	if err != nil {
		return nil, err
	}

	if err := verifyChunkOrder(manifest, req.ChunkHashes); err != nil {
		return nil, err
	}

	completed, err := s.meta.CompleteManifest(ctx, claims.FileID, req.FileHash)
	if err != nil {
		return nil, err
	}

	if _, err := s.meta.NextFileVersion(ctx, completed.FileName, completed.ID); err != nil {
		logger.Warn("uploadservice: file versioning failed, merge still succeeded",
			zap.String("fileId", completed.FileID), zap.Error(err))
	}

	_ = s.tokens.Revoke(ctx, req.UploadToken)

	return &protocol.MergeFileResponse{
		Success: true,
		FileURL: fileURL(completed.FileID),
		FileID:  completed.FileID,
	}, nil
}

// verifyChunkOrder checks that the manifest has received every chunk index
// the client claims to have sent, and that the received hashes equal the
// supplied list bit-exact, in order.
func verifyChunkOrder(m *metastore.Manifest, chunkHashes []string) error {
	byIndex := make(map[int]string, len(m.Chunks))
	for _, c := range m.Chunks {
		byIndex[c.ChunkIndex] = c.ChunkHash
	}

	if len(byIndex) != len(chunkHashes) {
		return xerr.NewCodeError(xerr.ManifestIncompleteCode, xerr.ErrManifestIncomplete)
	}

	for i, want := range chunkHashes {
		got, ok := byIndex[i]
		if !ok || got != want {
			return xerr.NewCodeError(xerr.ManifestIncompleteCode, xerr.ErrManifestIncomplete)
		}
	}
	return nil
}

func fileURL(fileID string) string {
	return fmt.Sprintf("/files/%s", fileID)
}
