package progressstore

import (
	"context"
	"sync"
	"time"

	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// MemStore is an in-memory Store, used in tests and as the manager's
// degraded-mode fallback when a durable backend reports StorageUnavailable.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]protocol.UploadRecord
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]protocol.UploadRecord)}
}

func (s *MemStore) Init(ctx context.Context) error { return nil }

func (s *MemStore) SaveRecord(ctx context.Context, record protocol.UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.TaskID] = record
	return nil
}

func (s *MemStore) GetRecord(ctx context.Context, taskID string) (protocol.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[taskID]
	if !ok {
		return protocol.UploadRecord{}, xerr.NewCodeError(xerr.OperationFailedCode, xerr.ErrOperationFailed)
	}
	return record, nil
}

func (s *MemStore) UpdateRecord(ctx context.Context, taskID string, patch RecordPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[taskID]
	if !ok {
		return xerr.NewCodeError(xerr.OperationFailedCode, xerr.ErrOperationFailed)
	}
	if patch.UploadedChunks != nil {
		record.UploadedChunks = patch.UploadedChunks
	}
	if patch.UploadToken != nil {
		record.UploadToken = *patch.UploadToken
	}
	record.UpdatedAt = time.Now()
	s.records[taskID] = record
	return nil
}

func (s *MemStore) DeleteRecord(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, taskID)
	return nil
}

func (s *MemStore) GetAllRecords(ctx context.Context) ([]protocol.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.UploadRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *MemStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]protocol.UploadRecord)
	return nil
}

func (s *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
