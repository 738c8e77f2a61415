package mcfs

// Mode is the attribute word of a directory record.
type Mode uint16

const (
	ModeRead          Mode = 0x0001
	ModeWrite         Mode = 0x0002
	ModeExecute       Mode = 0x0004
	ModeProtected     Mode = 0x0008
	ModeFile          Mode = 0x0010
	ModeDir           Mode = 0x0020
	ModeDirCreated    Mode = 0x0040
	Mode0080          Mode = 0x0080
	Mode0100          Mode = 0x0100
	ModeCreated       Mode = 0x0200
	Mode0400          Mode = 0x0400
	ModePocketStation Mode = 0x0800
	ModePS1           Mode = 0x1000
	ModeHidden        Mode = 0x2000
	Mode4000          Mode = 0x4000
	ModeExists        Mode = 0x8000

	ModeRWX = ModeRead | ModeWrite | ModeExecute

	// DefaultDirMode and DefaultFileMode are given to entries created by
	// mkdir and add.
	DefaultDirMode  = ModeRWX | ModeDir | Mode0400 | ModeExists
	DefaultFileMode = ModeRWX | ModeFile | Mode0400 | ModeExists

	// ParentDirMode is the mode of the ".." record of a new directory.
	ParentDirMode = ModeWrite | ModeExecute | ModeDir | Mode0400 | ModeHidden | ModeExists

	// SettableModes are the bits Set may change.
	SettableModes = ModeRWX | ModeProtected | Mode0400 | ModePocketStation | ModePS1 | ModeHidden
)

// mode letters in bit order; ModeExists is not displayed
const modeLetters = "rwxpfdD81C+PXH4"

// String returns the 15 character display form, e.g. "rwx--d----+----".
func (m Mode) String() string {
	b := make([]byte, len(modeLetters))
	for i := range b {
		if m&(1<<i) != 0 {
			b[i] = modeLetters[i]
		} else {
			b[i] = '-'
		}
	}
	return string(b)
}

func (m Mode) IsDir() bool {
	return m&ModeDir == ModeDir
}

func (m Mode) IsFile() bool {
	return m&ModeFile == ModeFile
}

func (m Mode) Exists() bool {
	return m&ModeExists == ModeExists
}

func (m Mode) IsProtected() bool {
	return m&ModeProtected == ModeProtected
}

func (m Mode) IsHidden() bool {
	return m&ModeHidden == ModeHidden
}

// AttrChanges names the mode bits to set and to clear.
type AttrChanges struct {
	Set   Mode
	Clear Mode
}

// Apply returns m with the changes applied.
func (c AttrChanges) Apply(m Mode) Mode {
	return (m | c.Set) &^ c.Clear
}

// Valid reports whether the changes only touch SettableModes.
func (c AttrChanges) Valid() bool {
	return (c.Set|c.Clear)&^SettableModes == 0
}

// DirEntry is the decoded form of a directory record.
type DirEntry struct {
	Name     string
	Mode     Mode
	Length   uint32
	Created  Timestamp
	Modified Timestamp
	// Cluster is the first cluster of the entry's chain. In a
	// directory's "." record it is the first cluster of the parent.
	Cluster uint32
	// Parent is only used by "." records: the index of the record
	// describing this directory within its parent.
	Parent uint32
	Attr   uint32
}

func (e DirEntry) IsDir() bool {
	return e.Mode.IsDir()
}

func (e DirEntry) Exists() bool {
	return e.Mode.Exists()
}
