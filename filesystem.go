package mcfs

import (
	"fmt"
)

// A FileSystem provides access to the directory tree of a memory card.
// Paths are slash separated and relative to the root directory.
type FileSystem interface {
	List(path string) ([]DirEntry, error)
	Add(data []byte, path string) error
	Extract(path string) ([]byte, error)
	Delete(path string) error
	Remove(path string) error
	Clear(path string, exclude []string) error
	Set(path string, changes AttrChanges) error
	Mkdir(path string) error
	Format() error
	DF() (int64, error)
	Check() ([]Finding, error)
}

// FindingKind classifies a consistency problem.
type FindingKind int

const (
	FindingRootDamaged FindingKind = iota
	FindingFreeCount
	FindingBadChain
	FindingCrossLinked
	FindingLength
	FindingBackReference
	FindingLostClusters
	FindingUnreadable
)

var findingNames = map[FindingKind]string{
	FindingRootDamaged:   "root-damaged",
	FindingFreeCount:     "free-count",
	FindingBadChain:      "bad-chain",
	FindingCrossLinked:   "cross-linked",
	FindingLength:        "length",
	FindingBackReference: "back-reference",
	FindingLostClusters:  "lost-clusters",
	FindingUnreadable:    "unreadable",
}

func (k FindingKind) String() string {
	if name, ok := findingNames[k]; ok {
		return name
	}
	return fmt.Sprintf("finding(%d)", int(k))
}

func (k FindingKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Finding is one problem reported by a consistency check.
type Finding struct {
	Kind    FindingKind `toml:"kind" yaml:"kind"`
	Path    string      `toml:"path,omitempty" yaml:"path,omitempty"`
	Message string      `toml:"message" yaml:"message"`
}

func (f Finding) Error() string {
	if f.Path == "" {
		return f.Message
	}
	return f.Path + ": " + f.Message
}

// Unwrap maps the finding to the error class it belongs to.
func (f Finding) Unwrap() error {
	switch f.Kind {
	case FindingBadChain, FindingCrossLinked:
		return ErrCorruptChain
	case FindingUnreadable:
		return ErrCorruptPage
	}
	return ErrConsistency
}
