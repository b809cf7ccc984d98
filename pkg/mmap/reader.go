// Package mmap maps source files into memory for reading. Platforms without
// mmap support fall back to reading the whole file.
package mmap

import (
	"bytes"
	"io"
	"os"

	"github.com/jblondin/etl/pkg/errors"
)

// Reader is a read-only view of a whole file.
type Reader struct {
	*bytes.Reader
	data   []byte
	mapped bool
}

// Open maps the file at path. Empty files are not mapped.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the schema
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").
			WithDetail("path", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").
			WithDetail("path", path)
	}
	if info.Size() == 0 {
		return &Reader{Reader: bytes.NewReader(nil)}, nil
	}

	data, mapped, err := mapFile(f, int(info.Size()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to map file").
			WithDetail("path", path)
	}
	return &Reader{Reader: bytes.NewReader(data), data: data, mapped: mapped}, nil
}

// Bytes returns the file contents. They are invalid after Close.
func (r *Reader) Bytes() []byte { return r.data }

// Mapped reports whether the contents are backed by a memory mapping.
func (r *Reader) Mapped() bool { return r.mapped }

// Close releases the mapping.
func (r *Reader) Close() error {
	data := r.data
	r.data = nil
	r.Reader = bytes.NewReader(nil)
	if !r.mapped || data == nil {
		return nil
	}
	r.mapped = false
	if err := unmap(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to unmap file")
	}
	return nil
}

var _ io.ReadCloser = (*Reader)(nil)
