// Package protocol defines the wire contract shared by the client adapter
// (internal/adapter) and the server upload service (internal/server/
// uploadservice): the four request/response pairs, the FileInfo/ChunkInfo/
// UploadRecord data model, and the TaskStatus enum.
//
// Generalized from a three-call upload flow to a four-call flow
// (create/verify/uploadChunk/merge) and from MinIO-native multipart
// upload to content-addressed chunk dedup.
package protocol

import "time"

// FileInfo is immutable after construction except FileHash, which is set
// exactly once when hashing completes.
type FileInfo struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType,omitempty"`
	LastModified int64  `json:"lastModified"`
	FileHash     string `json:"fileHash,omitempty"`
}

// ChunkInfo is a dense, 0-based plan entry. Within a task,
// chunks[i].End == chunks[i+1].Start, chunks[0].Start == 0, and
// chunks[last].End == fileSize.
type ChunkInfo struct {
	Index int    `json:"index"`
	Hash  string `json:"hash,omitempty"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// Size returns End-Start, the byte length of this chunk's range.
func (c ChunkInfo) Size() int64 { return c.End - c.Start }

// TaskStatus is the closed set of states a client Upload Task can be in.
// Encoded as a string enum rather than modeled with inheritance.
type TaskStatus string

const (
	StatusIdle      TaskStatus = "idle"
	StatusHashing   TaskStatus = "hashing"
	StatusUploading TaskStatus = "uploading"
	StatusPaused    TaskStatus = "paused"
	StatusSuccess   TaskStatus = "success"
	StatusError     TaskStatus = "error"
	StatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// transitions enumerates every legal (prev -> next) pair in the task state
// diagram. prev == next is always legal (a no-op refresh) and is checked
// separately by CanTransition.
var transitions = map[TaskStatus]map[TaskStatus]bool{
	StatusIdle: {
		StatusHashing:   true,
		StatusUploading: true,
	},
	StatusHashing: {
		StatusUploading: true,
		StatusError:     true,
		StatusCancelled: true,
	},
	StatusUploading: {
		StatusPaused:    true,
		StatusSuccess:   true,
		StatusError:     true,
		StatusCancelled: true,
	},
	StatusPaused: {
		StatusUploading: true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether next is a legal successor of prev: every
// observed (prev -> next) pair must be in the transition table or equal.
func CanTransition(prev, next TaskStatus) bool {
	if prev == next {
		return true
	}
	return transitions[prev][next]
}

// CreateFileRequest is POST /upload/create's body.
type CreateFileRequest struct {
	FileName            string `json:"fileName"`
	FileSize            int64  `json:"fileSize"`
	FileType            string `json:"fileType"`
	PreferredChunkSize  int64  `json:"preferredChunkSize,omitempty"`
}

// CreateFileResponse is POST /upload/create's response.
type CreateFileResponse struct {
	UploadToken        string `json:"uploadToken"`
	NegotiatedChunkSize int64  `json:"negotiatedChunkSize"`
}

// VerifyHashRequest is POST /upload/verify's body. Exactly one of FileHash
// or ChunkHashes is expected to carry the caller's intent, but both may be
// present.
type VerifyHashRequest struct {
	UploadToken string   `json:"uploadToken"`
	FileHash    string   `json:"fileHash,omitempty"`
	ChunkHashes []string `json:"chunkHashes,omitempty"`
}

// VerifyHashResponse is POST /upload/verify's response. ExistingChunks and
// MissingChunks index into the client's supplied ChunkHashes order — the
// server has no authoritative chunk plan of its own.
type VerifyHashResponse struct {
	FileExists     bool   `json:"fileExists"`
	FileURL        string `json:"fileUrl,omitempty"`
	ExistingChunks []int  `json:"existingChunks,omitempty"`
	MissingChunks  []int  `json:"missingChunks,omitempty"`
}

// UploadChunkResponse is POST /upload/chunk's response (the request itself
// is multipart form data: uploadToken, chunkIndex, chunkHash, chunk).
type UploadChunkResponse struct {
	Success   bool   `json:"success"`
	ChunkHash string `json:"chunkHash"`
}

// MergeFileRequest is POST /upload/merge's body.
type MergeFileRequest struct {
	UploadToken string   `json:"uploadToken"`
	FileHash    string   `json:"fileHash"`
	ChunkHashes []string `json:"chunkHashes"`
}

// MergeFileResponse is POST /upload/merge's response.
type MergeFileResponse struct {
	Success bool   `json:"success"`
	FileURL string `json:"fileUrl"`
	FileID  string `json:"fileId"`
}

// UploadRecord is the only state that crosses a client restart. Everything
// else about a task is reconstructable from it plus a re-selected file.
type UploadRecord struct {
	TaskID         string    `json:"taskId"`
	File           FileInfo  `json:"file"`
	UploadedChunks []int     `json:"uploadedChunks"`
	UploadToken    string    `json:"uploadToken"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Progress is the snapshot returned by Task.GetProgress.
type Progress struct {
	UploadedBytes  int64         `json:"uploadedBytes"`
	TotalBytes     int64         `json:"totalBytes"`
	Percentage     float64       `json:"percentage"`
	SpeedBps       float64       `json:"speed"`
	RemainingTime  time.Duration `json:"remainingTime"`
	UploadedChunks int           `json:"uploadedChunks"`
	TotalChunks    int           `json:"totalChunks"`
}
