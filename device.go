package mcfs

import (
	"fmt"
	"io"
)

// BlockDevice is the raw storage holding a card image.
type BlockDevice interface {
	io.ReaderAt
	io.WriterAt
	Len() int64
}

// MemDisk is a BlockDevice over a byte slice. Its length is fixed.
type MemDisk struct {
	buf []byte
}

var _ BlockDevice = (*MemDisk)(nil)

// NewMemDisk wraps buf without copying it.
func NewMemDisk(buf []byte) *MemDisk {
	return &MemDisk{buf: buf}
}

// Bytes returns the underlying buffer.
func (d *MemDisk) Bytes() []byte {
	return d.buf
}

func (d *MemDisk) Len() int64 {
	return int64(len(d.buf))
}

func (d *MemDisk) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(d.buf)) {
		return 0, fmt.Errorf("read %d bytes at %d: %w", len(p), off, ErrIO)
	}
	return copy(p, d.buf[off:]), nil
}

func (d *MemDisk) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(d.buf)) {
		return 0, fmt.Errorf("write %d bytes at %d: %w", len(p), off, ErrIO)
	}
	return copy(d.buf[off:], p), nil
}
