// Package adapter defines the RequestAdapter capability: the four
// protocol calls an Upload Task makes against a server, independent of
// transport. internal/adapter/httpadapter is the reference implementation
// against a concrete HTTP wire surface.
package adapter

import (
	"context"

	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// RequestAdapter is injected into an Upload Task at construction. Each
// method is idempotent on identical inputs. Implementations own
// transport-level retry, timeouts, and serialization; the engine itself
// only layers application-level chunk retry on top of UploadChunk.
type RequestAdapter interface {
	CreateFile(ctx context.Context, req protocol.CreateFileRequest) (protocol.CreateFileResponse, error)
	VerifyHash(ctx context.Context, req protocol.VerifyHashRequest) (protocol.VerifyHashResponse, error)
	UploadChunk(ctx context.Context, uploadToken string, chunkIndex int, chunkHash string, chunk []byte) (protocol.UploadChunkResponse, error)
	MergeFile(ctx context.Context, req protocol.MergeFileRequest) (protocol.MergeFileResponse, error)
}
