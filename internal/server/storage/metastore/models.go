// Package metastore implements the server's manifest/chunk-reference
// metadata store, GORM/MySQL-backed, using standard GORM tagging
// conventions (autoCreateTime/autoUpdateTime, soft-delete via
// gorm.DeletedAt, explicit TableName overrides) generalized to
// fileId-keyed, content-addressed Manifests shared across all uploaders.
package metastore

import (
	"time"

	"gorm.io/gorm"
)

// ManifestStatus mirrors a Manifest's completion status.
type ManifestStatus string

const (
	ManifestPending   ManifestStatus = "pending"
	ManifestCompleted ManifestStatus = "completed"
)

// Manifest is fileId -> ordered chunk hashes + metadata + status
// Its Chunks association carries the ordered chunk-hash
// list; GORM loads it sorted by ChunkIndex via the repository's Preload.
type Manifest struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement"`
	FileID     string         `gorm:"type:varchar(64);uniqueIndex;not null"`
	FileName   string         `gorm:"type:varchar(255);not null"`
	MimeType   string         `gorm:"type:varchar(128)"`
	TotalSize  int64          `gorm:"not null"`
	ChunkSize  int64          `gorm:"not null"`
	FileHash   string         `gorm:"type:varchar(32);index:idx_manifest_file_hash"`
	Status     ManifestStatus `gorm:"type:varchar(16);not null;default:'pending';index"`
	ExpiresAt  time.Time      `gorm:"index"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`

	Chunks []ManifestChunk `gorm:"foreignKey:ManifestID"`
}

func (Manifest) TableName() string { return "manifests" }

// ManifestChunk is one (index -> chunk hash) entry of a Manifest's ordered
// plan, populated as uploadChunk calls arrive. It has no back-reference to
// its StoredChunk blob; StoredChunks have no back-reference.
type ManifestChunk struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	ManifestID  uint64 `gorm:"not null;uniqueIndex:idx_manifest_chunk_index,priority:1"`
	ChunkIndex  int    `gorm:"not null;uniqueIndex:idx_manifest_chunk_index,priority:2"`
	ChunkHash   string `gorm:"type:varchar(32);not null"`
	Size        int64  `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (ManifestChunk) TableName() string { return "manifest_chunks" }

// FileVersion covers the case where mergeFile targets a fileName that
// already has a completed Manifest: a new FileVersion row is appended
// instead of silently overwriting, with fileVersionRepo/FindLatestVersion
// style bookkeeping.
type FileVersion struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	FileName   string    `gorm:"type:varchar(255);not null;index:idx_file_version_name"`
	Version    int       `gorm:"not null"`
	ManifestID uint64    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (FileVersion) TableName() string { return "file_versions" }
