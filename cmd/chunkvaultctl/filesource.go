package main

import (
	"io"
	"mime"
	"os"
	"path/filepath"
)

// osFileSource adapts a local *os.File to uploadtask.FileSource. It keeps
// the file open for the lifetime of a task (ReaderAt is called repeatedly,
// once per chunk and once for the whole-file hash pass).
type osFileSource struct {
	f    *os.File
	name string
	size int64
	mime string
	mod  int64
}

// openFileSource stats path and opens it read-only. The caller is
// responsible for eventually calling Close on the returned source
// (uploadtask.FileSource does not require a Close method, so the task
// never closes it; chunkvaultctl closes it after the task reaches a
// terminal state).
func openFileSource(path string) (*osFileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	return &osFileSource{
		f:    f,
		name: info.Name(),
		size: info.Size(),
		mime: mimeType,
		mod:  info.ModTime().UnixMilli(),
	}, nil
}

func (s *osFileSource) Name() string         { return s.name }
func (s *osFileSource) Size() int64          { return s.size }
func (s *osFileSource) MimeType() string     { return s.mime }
func (s *osFileSource) LastModified() int64  { return s.mod }
func (s *osFileSource) ReaderAt() io.ReaderAt { return s.f }

func (s *osFileSource) Close() error { return s.f.Close() }
