package uploadservice

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/server/storage/blobstore"
	"github.com/rowantree/go-chunkvault/internal/server/storage/metastore"
)

func (s *service) GetFileStream(ctx context.Context, fileID string, rangeHeader string) (*FileStream, error) {
	manifest, err := s.meta.GetManifestByFileID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if manifest.Status != metastore.ManifestCompleted {
		return nil, xerr.NewCodeError(xerr.FileNotFoundCode, xerr.ErrFileNotFound)
	}

	total := manifest.TotalSize
	start, end, partial, err := parseRange(rangeHeader, total)
	if err != nil {
		return nil, err
	}

	body := newManifestReader(ctx, s.blobs, manifest, start, end)

	return &FileStream{
		Body:          body,
		MimeType:      manifest.MimeType,
		TotalSize:     total,
		ContentLength: end - start + 1,
		Partial:       partial,
		RangeStart:    start,
		RangeEnd:      end,
	}, nil
}

// parseRange parses an HTTP Range header of the form "bytes=start-end"
// (absolute file offsets), returning the inclusive [start,end] to serve.
// An absent or malformed-but-harmless header serves the whole file.
func parseRange(header string, total int64) (start, end int64, partial bool, err error) {
	if header == "" {
		return 0, total - 1, false, nil
	}
	if !strings.HasPrefix(header, "bytes=") {
		return 0, total - 1, false, nil
	}

	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, total - 1, false, nil
	}

	if parts[0] == "" {
		// suffix range "bytes=-N": last N bytes.
		n, perr := strconv.ParseInt(parts[1], 10, 64)
		if perr != nil {
			return 0, 0, false, xerr.NewCodeError(xerr.RangeNotSatisfiable, xerr.ErrRangeUnsatisfiable)
		}
		start = total - n
		if start < 0 {
			start = 0
		}
		return start, total - 1, true, nil
	}

	start, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false, xerr.NewCodeError(xerr.RangeNotSatisfiable, xerr.ErrRangeUnsatisfiable)
	}

	if parts[1] == "" {
		end = total - 1
	} else {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, false, xerr.NewCodeError(xerr.RangeNotSatisfiable, xerr.ErrRangeUnsatisfiable)
		}
	}

	if start < 0 || end >= total || start > end {
		return 0, 0, false, xerr.NewCodeError(xerr.RangeNotSatisfiable, xerr.ErrRangeUnsatisfiable)
	}

	return start, end, true, nil
}

// manifestReader sequentially streams the byte range [rangeStart,rangeEnd]
// of a completed Manifest's assembled file, reading only the overlapping
// slice of each chunk blob. It
// opens the next chunk lazily, holding at most one blob stream open at a
// time.
type manifestReader struct {
	ctx        context.Context
	blobs      blobstore.BlobStore
	chunks     []metastore.ManifestChunk
	chunkSize  int64
	rangeStart int64
	rangeEnd   int64

	nextChunk int
	cur       io.ReadCloser
	curRemain int64
	done      bool
}

func newManifestReader(ctx context.Context, blobs blobstore.BlobStore, m *metastore.Manifest, rangeStart, rangeEnd int64) *manifestReader {
	return &manifestReader{
		ctx:        ctx,
		blobs:      blobs,
		chunks:     m.Chunks,
		chunkSize:  m.ChunkSize,
		rangeStart: rangeStart,
		rangeEnd:   rangeEnd,
		nextChunk:  0,
	}
}

func (m *manifestReader) Read(p []byte) (int, error) {
	for {
		if m.done {
			return 0, io.EOF
		}
		if m.cur != nil {
			if m.curRemain <= 0 {
				m.cur.Close()
				m.cur = nil
				continue
			}
			toRead := p
			if int64(len(toRead)) > m.curRemain {
				toRead = toRead[:m.curRemain]
			}
			n, err := m.cur.Read(toRead)
			m.curRemain -= int64(n)
			if err != nil && err != io.EOF {
				return n, err
			}
			if n > 0 {
				return n, nil
			}
			// n == 0: chunk exhausted before curRemain hit zero (shouldn't
			// happen for well-formed blobs, but don't spin forever).
			m.cur.Close()
			m.cur = nil
			continue
		}

		if err := m.openNextOverlapping(); err != nil {
			return 0, err
		}
		if m.done {
			return 0, io.EOF
		}
	}
}

// openNextOverlapping advances nextChunk until it finds (or exhausts) a
// chunk overlapping [rangeStart,rangeEnd], opening a ranged read over the
// overlap and leaving it in m.cur/m.curRemain.
func (m *manifestReader) openNextOverlapping() error {
	for m.nextChunk < len(m.chunks) {
		idx := int64(m.nextChunk)
		chunkStart := idx * m.chunkSize
		chunkEnd := chunkStart + m.chunks[m.nextChunk].Size - 1
		m.nextChunk++

		overlapStart := max64(chunkStart, m.rangeStart)
		overlapEnd := min64(chunkEnd, m.rangeEnd)
		if overlapStart > overlapEnd {
			continue
		}

		localStart := overlapStart - chunkStart
		localEnd := overlapEnd - chunkStart

		hash := m.chunks[m.nextChunk-1].ChunkHash
		r, _, err := m.blobs.OpenRead(m.ctx, hash, &blobstore.Range{Start: localStart, End: localEnd})
		if err != nil {
			return fmt.Errorf("uploadservice: open chunk %s: %w", hash, err)
		}
		m.cur = r
		m.curRemain = overlapEnd - overlapStart + 1
		return nil
	}
	m.done = true
	return nil
}

func (m *manifestReader) Close() error {
	if m.cur != nil {
		return m.cur.Close()
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
