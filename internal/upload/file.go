package upload

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// FileHandle is a staged file. The tracker never reads it before submission.
type FileHandle interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// Bytes is an in-memory file, such as a part read from a browser form.
type Bytes struct {
	Filename string
	Data     []byte
}

func (b Bytes) Name() string { return b.Filename }
func (b Bytes) Size() int64  { return int64(len(b.Data)) }

func (b Bytes) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

// DiskFile is a file on the local filesystem, opened only at submission.
type DiskFile struct {
	Path string
	size int64
}

// NewDiskFile stats path and returns a handle to it.
func NewDiskFile(path string) (*DiskFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &DiskFile{Path: path, size: info.Size()}, nil
}

func (f *DiskFile) Name() string { return filepath.Base(f.Path) }
func (f *DiskFile) Size() int64  { return f.size }

func (f *DiskFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// progressReader reports cumulative bytes read.
type progressReader struct {
	io.ReadCloser
	read   int64
	report func(read int64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if n > 0 {
		r.read += int64(n)
		r.report(r.read)
	}
	return n, err
}
