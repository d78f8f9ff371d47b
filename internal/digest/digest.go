// Package digest computes the content hashes a task needs — a streaming
// whole-file hash with progress reporting, and per-chunk hashes over a
// byte range — without ever holding the full file in memory.
//
// Built on an io.Copy-based streaming pattern and an MD5 field on
// models.File/FileVersion, generalized into a reusable streaming
// primitive instead of a one-off handler step.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
)

// ProgressFunc is invoked after each read with the cumulative byte count
// hashed so far. Implementations must return quickly; HashFile calls it
// synchronously on the hashing goroutine.
type ProgressFunc func(hashedBytes, totalBytes int64)

// bufferSize is large enough to amortize syscalls, small enough to keep
// memory use flat regardless of file size.
const bufferSize = 64 * 1024

// HashFile computes the MD5 hash of everything read from r, reporting
// progress via onProgress (which may be nil). totalSize is used only for
// progress reporting and is not validated against bytes actually read.
func HashFile(r io.Reader, totalSize int64, onProgress ProgressFunc) (string, error) {
	h := md5.New()
	buf := make([]byte, bufferSize)
	var hashed int64

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := h.Write(buf[:n]); err != nil {
				return "", fmt.Errorf("digest: hash write: %w", err)
			}
			hashed += int64(n)
			if onProgress != nil {
				onProgress(hashed, totalSize)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("digest: read: %w", readErr)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashChunk computes the MD5 hash of exactly r's remaining content. It is
// the single-chunk counterpart of HashFile, used by internal/uploadtask to
// compute a chunk's declared hash before it is uploaded. The server's
// integrity check hashes the received bytes itself and does not call it.
func HashChunk(r io.Reader) (string, error) {
	return HashFile(r, 0, nil)
}

// RangeReader returns an io.Reader over exactly [start, end) of ra without
// copying the underlying data, for callers (chunk slicing, range-read
// responses) that already have an io.ReaderAt such as an *os.File.
func RangeReader(ra io.ReaderAt, start, end int64) io.Reader {
	return io.NewSectionReader(ra, start, end-start)
}

// Slice is a dense [start, end) byte-range view of a source file, the
// slicer's counterpart to protocol.ChunkInfo before any hash is known.
type Slice struct {
	Index int
	Start int64
	End   int64
}

// Size returns End-Start.
func (s Slice) Size() int64 { return s.End - s.Start }

// Plan builds the dense, 0-based slice plan for a file of fileSize bytes
// cut into chunks of chunkSize bytes: [0,chunkSize), [chunkSize,2*chunkSize),
// …, with the final slice truncated to fileSize. Matches spec's invariant
// that chunks[i].End == chunks[i+1].Start, chunks[0].Start == 0, and
// chunks[last].End == fileSize. A zero-byte file yields a single empty
// slice at index 0 so callers always have at least one plan entry.
func Plan(fileSize, chunkSize int64) []Slice {
	if chunkSize <= 0 {
		chunkSize = fileSize
	}
	if fileSize <= 0 {
		return []Slice{{Index: 0, Start: 0, End: 0}}
	}

	n := int((fileSize + chunkSize - 1) / chunkSize)
	slices := make([]Slice, n)
	var start int64
	for i := 0; i < n; i++ {
		end := start + chunkSize
		if end > fileSize {
			end = fileSize
		}
		slices[i] = Slice{Index: i, Start: start, End: end}
		start = end
	}
	return slices
}
