package uploadtask

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rowantree/go-chunkvault/internal/digest"
	"github.com/rowantree/go-chunkvault/internal/eventbus"
	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/progressstore"
	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// Start begins the upload: requests a session, builds the chunk plan, and
// launches the hashing and chunk-upload activities in parallel (a
// "begin uploading immediately, hash in parallel" policy — a
// positive whole-file verifyHash short-circuits the in-flight chunk
// uploads rather than gating them). Start returns once the background work
// has been kicked off; completion is observed via On(eventbus.EventSuccess
// / EventError, ...) or GetStatus.
func (t *Task) Start(ctx context.Context) error {
	if err := t.transition(protocol.StatusHashing); err != nil {
		return err
	}
	t.bus.Emit(eventbus.EventStart, nil)

	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.startedAt = time.Now()
	t.mu.Unlock()

	go t.run(runCtx)
	return nil
}

// Pause cooperatively halts chunk submission. In-flight chunk requests are
// allowed to finish; no new ones start until Resume.
func (t *Task) Pause() error {
	if err := t.transition(protocol.StatusPaused); err != nil {
		return err
	}
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
	t.bus.Emit(eventbus.EventPause, nil)
	return nil
}

// Resume continues a Paused task from wherever its chunk loop left off.
func (t *Task) Resume() error {
	if err := t.transition(protocol.StatusUploading); err != nil {
		return err
	}
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
	t.pauseCond.Broadcast()
	t.bus.Emit(eventbus.EventResume, nil)
	return nil
}

// Cancel stops the task permanently. Queued-but-unstarted chunk requests
// are dropped; in-flight requests are abandoned via context cancellation.
func (t *Task) Cancel(ctx context.Context) error {
	if err := t.transition(protocol.StatusCancelled); err != nil {
		return err
	}
	t.mu.Lock()
	t.paused = false
	c := t.cancel
	t.mu.Unlock()
	t.pauseCond.Broadcast()
	if c != nil {
		c()
	}
	t.limiter.ClearQueue()
	if t.store != nil {
		if err := t.store.DeleteRecord(ctx, t.id); err != nil {
			logger.Warn("uploadtask: delete progress record on cancel", append(t.logFields(), zap.Error(err))...)
		}
	}
	t.bus.Emit(eventbus.EventCancel, nil)
	return nil
}

// run orchestrates one task end to end: createFile, plan chunks, run the
// hash and upload activities concurrently, then merge.
func (t *Task) run(ctx context.Context) {
	resp, err := t.adapter.CreateFile(ctx, protocol.CreateFileRequest{
		FileName:           t.file.Name,
		FileSize:           t.file.Size,
		FileType:           t.file.MimeType,
		PreferredChunkSize: t.adjuster.CurrentSize(),
	})
	if err != nil {
		t.emitError(err)
		return
	}

	t.mu.Lock()
	// A resumed task keeps the token seeded from its persisted record, so
	// its chunks land in the session that already holds the skipped ones.
	if t.uploadToken == "" {
		t.uploadToken = resp.UploadToken
	}
	t.negotiatedChunkSize = resp.NegotiatedChunkSize
	slices := digest.Plan(t.file.Size, t.negotiatedChunkSize)
	chunks := make([]protocol.ChunkInfo, len(slices))
	for i, s := range slices {
		chunks[i] = protocol.ChunkInfo{Index: s.Index, Start: s.Start, End: s.End}
	}
	t.chunks = chunks
	t.mu.Unlock()

	t.persistRecord(ctx)

	if err := t.transition(protocol.StatusUploading); err != nil {
		t.emitError(err)
		return
	}

	var (
		fileExists bool
		fileURL    string
		hashErr    error
		uploadErr  error
		wg         sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		exists, url, err := t.hashActivity(ctx)
		fileExists, fileURL, hashErr = exists, url, err
	}()
	go func() {
		defer wg.Done()
		uploadErr = t.uploadActivity(ctx)
	}()
	wg.Wait()

	t.mu.Lock()
	cancelled := t.status == protocol.StatusCancelled
	t.mu.Unlock()
	if cancelled {
		return
	}

	if hashErr != nil {
		t.emitError(hashErr)
		return
	}
	if uploadErr != nil {
		t.emitError(uploadErr)
		return
	}

	if fileExists {
		// hashActivity cancelled ctx to stop the chunk uploads.
		if t.store != nil {
			_ = t.store.DeleteRecord(context.WithoutCancel(ctx), t.id)
		}
		t.finish(fileURL)
		return
	}

	t.merge(ctx)
}

// hashActivity streams the whole file once, computing its content hash and
// reporting progress, then asks the server whether that hash is already
// known (instant upload). It never mutates per-chunk hashes.
func (t *Task) hashActivity(ctx context.Context) (fileExists bool, fileURL string, err error) {
	r := digest.RangeReader(t.source.ReaderAt(), 0, t.file.Size)
	hash, err := digest.HashFile(r, t.file.Size, func(hashed, total int64) {
		t.bus.Emit(eventbus.EventHashProgress, eventbus.ProgressPayload{Progress: ratio(hashed, total)})
	})
	if err != nil {
		return false, "", err
	}
	if ctx.Err() != nil {
		return false, "", nil
	}

	t.mu.Lock()
	t.file.FileHash = hash
	token := t.uploadToken
	t.mu.Unlock()
	t.bus.Emit(eventbus.EventHashComplete, eventbus.HashCompletePayload{Hash: hash})

	resp, err := t.adapter.VerifyHash(ctx, protocol.VerifyHashRequest{UploadToken: token, FileHash: hash})
	if err != nil {
		return false, "", err
	}
	if resp.FileExists {
		t.mu.Lock()
		c := t.cancel
		t.mu.Unlock()
		if c != nil {
			c()
		}
		t.limiter.ClearQueue()
		return true, resp.FileURL, nil
	}
	return false, "", nil
}

// uploadActivity walks the chunk plan in order, skipping indices already
// marked done (resume), uploading the rest with bounded concurrency and
// per-chunk retry.
func (t *Task) uploadActivity(ctx context.Context) error {
	t.mu.Lock()
	chunks := append([]protocol.ChunkInfo(nil), t.chunks...)
	t.mu.Unlock()

	var (
		mu      sync.Mutex
		firstErr error
		wg      sync.WaitGroup
	)

	for _, chunk := range chunks {
		t.waitWhilePaused()
		if ctx.Err() != nil {
			break
		}

		chunk := chunk
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := t.limiter.Run(ctx, func(ctx context.Context) (any, error) {
				return nil, t.uploadOneChunk(ctx, chunk)
			}); err != nil {
				if ctx.Err() != nil {
					return
				}
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// waitWhilePaused blocks the calling goroutine until the task leaves the
// paused state (Resume or Cancel).
func (t *Task) waitWhilePaused() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.paused {
		t.pauseCond.Wait()
	}
}

// uploadOneChunk hashes, uploads (with retry) and records exactly one
// chunk. It is a no-op for chunks already marked done, but it still
// computes the chunk's hash so mergeFile's ChunkHashes list is complete.
// Every failed attempt emits its own EventChunkError; the caller emits the
// task-level EventError once, after retries are exhausted.
func (t *Task) uploadOneChunk(ctx context.Context, chunk protocol.ChunkInfo) error {
	t.mu.Lock()
	alreadyDone := t.done[chunk.Index]
	token := t.uploadToken
	t.mu.Unlock()

	buf := make([]byte, chunk.Size())
	if _, err := io.ReadFull(digest.RangeReader(t.source.ReaderAt(), chunk.Start, chunk.End), buf); err != nil && chunk.Size() > 0 {
		return xerr.NewCodeError(xerr.IntegrityErrorCode, xerr.ErrIntegrityError)
	}
	hash, err := digest.HashChunk(bytes.NewReader(buf))
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.chunks[chunk.Index].Hash = hash
	t.mu.Unlock()

	if alreadyDone {
		return nil
	}

	// Chunks already queued in the limiter when Pause is called hold here
	// until Resume or Cancel, so no new request starts while paused.
	t.waitWhilePaused()
	if err := ctx.Err(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= t.retryCount; attempt++ {
		if attempt > 0 {
			delay := t.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		start := time.Now()
		_, err := t.adapter.UploadChunk(ctx, token, chunk.Index, hash, buf)
		elapsed := time.Since(start)
		if err == nil {
			t.mu.Lock()
			t.adjuster.Adjust(elapsed)
			t.mu.Unlock()
			t.markChunkDone(ctx, chunk)
			return nil
		}
		lastErr = err
		t.bus.Emit(eventbus.EventChunkError, eventbus.ChunkErrorPayload{ChunkIndex: chunk.Index, Err: err})
		if !xerr.KindOf(err).Retryable() {
			break
		}
	}
	return lastErr
}

// markChunkDone records index as uploaded, persists progress, and emits
// chunkSuccess plus a recomputed progress snapshot.
func (t *Task) markChunkDone(ctx context.Context, chunk protocol.ChunkInfo) {
	t.mu.Lock()
	t.done[chunk.Index] = true
	done := make([]int, 0, len(t.done))
	for idx := range t.done {
		done = append(done, idx)
	}
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.UpdateRecord(ctx, t.id, progressRecordPatch(done)); err != nil {
			logger.Warn("uploadtask: progress update failed", append(t.logFields(), zap.Error(err))...)
		}
	}

	t.bus.Emit(eventbus.EventChunkSuccess, eventbus.ChunkSuccessPayload{ChunkIndex: chunk.Index})
	progress := t.GetProgress()
	t.bus.Emit(eventbus.EventProgress, eventbus.ProgressPayload{Progress: progress.Percentage, Speed: progress.SpeedBps})
}

// merge assembles the ordered chunk hash list and calls mergeFile.
func (t *Task) merge(ctx context.Context) {
	t.mu.Lock()
	token := t.uploadToken
	fileHash := t.file.FileHash
	hashes := make([]string, len(t.chunks))
	for i, c := range t.chunks {
		hashes[i] = c.Hash
	}
	t.mu.Unlock()

	resp, err := t.adapter.MergeFile(ctx, protocol.MergeFileRequest{
		UploadToken: token,
		FileHash:    fileHash,
		ChunkHashes: hashes,
	})
	if err != nil {
		t.emitError(err)
		return
	}
	if t.store != nil {
		_ = t.store.DeleteRecord(ctx, t.id)
	}
	t.finish(resp.FileURL)
}

func (t *Task) finish(fileURL string) {
	if err := t.transition(protocol.StatusSuccess); err != nil {
		t.emitError(err)
		return
	}
	t.mu.Lock()
	t.fileURL = fileURL
	t.mu.Unlock()
	t.bus.Emit(eventbus.EventSuccess, eventbus.SuccessPayload{FileURL: fileURL})
}

func (t *Task) persistRecord(ctx context.Context) {
	if t.store == nil {
		return
	}
	t.mu.Lock()
	record := protocol.UploadRecord{
		TaskID:      t.id,
		File:        t.file,
		UploadToken: t.uploadToken,
		CreatedAt:   t.startedAt,
		UpdatedAt:   t.startedAt,
	}
	for idx := range t.done {
		record.UploadedChunks = append(record.UploadedChunks, idx)
	}
	t.mu.Unlock()

	if _, err := t.store.GetRecord(ctx, t.id); err == nil {
		_ = t.store.UpdateRecord(ctx, t.id, progressRecordPatch(record.UploadedChunks))
		return
	}
	if err := t.store.SaveRecord(ctx, record); err != nil {
		logger.Warn("uploadtask: save progress record failed", append(t.logFields(), zap.Error(err))...)
	}
}

func progressRecordPatch(uploadedChunks []int) progressstore.RecordPatch {
	return progressstore.RecordPatch{UploadedChunks: uploadedChunks}
}

func ratio(a, b int64) float64 {
	if b <= 0 {
		return 0
	}
	return float64(a) / float64(b) * 100
}
