package uploadtask

import "io"

// FileSource is the minimal view of a local file an Upload Task needs: a
// random-access byte source plus the FileInfo metadata createFile needs.
// *os.File satisfies io.ReaderAt directly; callers typically wrap one with
// a thin struct supplying Name/Size/MimeType/LastModified.
type FileSource interface {
	Name() string
	Size() int64
	MimeType() string
	LastModified() int64
	ReaderAt() io.ReaderAt
}
