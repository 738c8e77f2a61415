package card

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rstms/mcfs"
)

const (
	// DirentSize is the length of a directory record.
	DirentSize = 512

	// MaxNameLen is the size of the name field.
	MaxNameLen = 32

	direntNameOffset = 0x40
)

// DecodeDirent decodes a 512 byte directory record.
func DecodeDirent(b []byte) mcfs.DirEntry {
	name := b[direntNameOffset : direntNameOffset+MaxNameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return mcfs.DirEntry{
		Mode:     mcfs.Mode(binary.LittleEndian.Uint16(b[0x00:])),
		Length:   binary.LittleEndian.Uint32(b[0x04:]),
		Created:  mcfs.DecodeTimestamp(b[0x08:0x10]),
		Cluster:  binary.LittleEndian.Uint32(b[0x10:]),
		Parent:   binary.LittleEndian.Uint32(b[0x14:]),
		Modified: mcfs.DecodeTimestamp(b[0x18:0x20]),
		Attr:     binary.LittleEndian.Uint32(b[0x20:]),
		Name:     string(name),
	}
}

// EncodeDirent returns the 512 byte record for e.
func EncodeDirent(e mcfs.DirEntry) []byte {
	b := make([]byte, DirentSize)
	binary.LittleEndian.PutUint16(b[0x00:], uint16(e.Mode))
	binary.LittleEndian.PutUint32(b[0x04:], e.Length)
	e.Created.Encode(b[0x08:0x10])
	binary.LittleEndian.PutUint32(b[0x10:], e.Cluster)
	binary.LittleEndian.PutUint32(b[0x14:], e.Parent)
	e.Modified.Encode(b[0x18:0x20])
	binary.LittleEndian.PutUint32(b[0x20:], e.Attr)
	copy(b[direntNameOffset:direntNameOffset+MaxNameLen], e.Name)
	return b
}

// ValidName reports an error for names that cannot be stored in a
// directory record.
func ValidName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("bad name %q: %w", name, mcfs.ErrInvalidArgument)
	case len(name) > MaxNameLen:
		return fmt.Errorf("name %q longer than %d bytes: %w", name, MaxNameLen, mcfs.ErrInvalidArgument)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("bad character in name %q: %w", name, mcfs.ErrInvalidArgument)
	}
	return nil
}
