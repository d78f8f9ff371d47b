package metastore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
)

// GormStore is the GORM/MySQL-backed MetadataStore, following a
// repository-plus-TransactionManager pattern: reads go straight through
// db, writes that touch more than one table go through tm.WithTransaction.
type GormStore struct {
	db *gorm.DB
	tm TransactionManager
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, tm: NewTransactionManager(db)}
}

// AutoMigrate creates/updates the manifests, manifest_chunks and
// file_versions tables via db.AutoMigrate(&models.X{}, ...) for each
// owned model.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&Manifest{}, &ManifestChunk{}, &FileVersion{})
}

func (s *GormStore) CreatePendingManifest(ctx context.Context, p NewManifestParams) (*Manifest, error) {
	m := &Manifest{
		FileID:    p.FileID,
		FileName:  p.FileName,
		MimeType:  p.MimeType,
		TotalSize: p.TotalSize,
		ChunkSize: p.ChunkSize,
		Status:    ManifestPending,
		ExpiresAt: time.Now().Add(p.ExpiresIn),
	}

	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, xerr.ErrFileAlreadyExists
		}
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
	}
	return m, nil
}

func (s *GormStore) GetManifestByFileID(ctx context.Context, fileID string) (*Manifest, error) {
	var m Manifest
	err := s.db.WithContext(ctx).
		Preload("Chunks", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("manifest_chunks.chunk_index ASC")
		}).
		Where("file_id = ?", fileID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.ErrFileNotFound
	}
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
	}
	return &m, nil
}

func (s *GormStore) GetCompletedManifestByFileHash(ctx context.Context, fileHash string) (*Manifest, error) {
	var m Manifest
	err := s.db.WithContext(ctx).
		Where("file_hash = ? AND status = ?", fileHash, ManifestCompleted).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
	}
	return &m, nil
}

func (s *GormStore) RecordChunk(ctx context.Context, fileID string, chunk ChunkRef) error {
	return s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		var m Manifest
		if err := tx.Where("file_id = ?", fileID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return xerr.ErrFileNotFound
			}
			return xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
		}

		mc := ManifestChunk{
			ManifestID: m.ID,
			ChunkIndex: chunk.Index,
			ChunkHash:  chunk.Hash,
			Size:       chunk.Size,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "manifest_id"}, {Name: "chunk_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"chunk_hash", "size"}),
		}).Create(&mc).Error
		if err != nil {
			return xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
		}
		return nil
	})
}

func (s *GormStore) ReceivedChunkIndices(ctx context.Context, fileID string) (map[int]bool, error) {
	var m Manifest
	if err := s.db.WithContext(ctx).Select("id").Where("file_id = ?", fileID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound
		}
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
	}

	var indices []int
	if err := s.db.WithContext(ctx).Model(&ManifestChunk{}).
		Where("manifest_id = ?", m.ID).
		Pluck("chunk_index", &indices).Error; err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
	}

	out := make(map[int]bool, len(indices))
	for _, idx := range indices {
		out[idx] = true
	}
	return out, nil
}

func (s *GormStore) CompleteManifest(ctx context.Context, fileID string, fileHash string) (*Manifest, error) {
	var completed Manifest

	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		var m Manifest
		if err := tx.Where("file_id = ?", fileID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return xerr.ErrFileNotFound
			}
			return xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
		}

		var received int64
		if err := tx.Model(&ManifestChunk{}).Where("manifest_id = ?", m.ID).Count(&received).Error; err != nil {
			return xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
		}

		wantChunks := (m.TotalSize + m.ChunkSize - 1) / m.ChunkSize
		if received < wantChunks {
			return xerr.NewCodeError(xerr.ManifestIncompleteCode, xerr.ErrManifestIncomplete)
		}

		m.Status = ManifestCompleted
		m.FileHash = fileHash
		if err := tx.Save(&m).Error; err != nil {
			return xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
		}
		completed = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &completed, nil
}

func (s *GormStore) NextFileVersion(ctx context.Context, fileName string, manifestID uint64) (int, error) {
	version := 0
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		var maxVersion int
		err := tx.Model(&FileVersion{}).
			Where("file_name = ?", fileName).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error
		if err != nil {
			return xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
		}

		version = maxVersion + 1
		fv := FileVersion{FileName: fileName, Version: version, ManifestID: manifestID}
		if err := tx.Create(&fv).Error; err != nil {
			return xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *GormStore) SweepExpiredPendingManifests(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", ManifestPending, now).
		Delete(&Manifest{})
	if res.Error != nil {
		return 0, xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
	}
	return res.RowsAffected, nil
}

// isDuplicateKeyErr recognizes MySQL's duplicate-key error without
// importing the mysql driver's error type directly, since the driver is
// wired only at the sql.DB level.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "1062")
}

var _ MetadataStore = (*GormStore)(nil)
