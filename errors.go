package mcfs

import (
	"errors"
)

var (
	ErrInvalidFormat   = errors.New("invalid memory card format")
	ErrCorruptPage     = errors.New("uncorrectable ECC error")
	ErrCorruptChain    = errors.New("corrupt cluster chain")
	ErrNoSpace         = errors.New("no space left on memory card")
	ErrNotFound        = errors.New("no such file or directory")
	ErrExists          = errors.New("file exists")
	ErrNotDir          = errors.New("not a directory")
	ErrIsDir           = errors.New("is a directory")
	ErrNotEmpty        = errors.New("directory not empty")
	ErrConsistency     = errors.New("file system inconsistency")
	ErrIO              = errors.New("i/o error")
	ErrInvalidArgument = errors.New("invalid argument")
)

// PathError records a failed operation and the card path it was
// applied to.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}
