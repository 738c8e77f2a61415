package card

import (
	"fmt"
	"path"

	"github.com/rstms/mcfs"
)

// location addresses a directory record by the first cluster of the
// directory holding it and the record's index in that directory.
type location struct {
	dir   uint32
	index int
}

// Directory is an open directory: its chain and the location of the
// record that describes it. The root is described by its own "."
// record; every other directory by its record in the parent.
type Directory struct {
	fs     *FileSystem
	path   string
	first  uint32
	length int
	loc    location
}

// node is a resolved path: the record plus where it lives.
type node struct {
	entry  mcfs.DirEntry
	parent *Directory
	index  int
	path   string
}

func recordsPerCluster() int {
	return ClusterSize / DirentSize
}

// recordCluster returns the allocatable cluster holding record index of
// the directory whose chain starts at first.
func (fs *FileSystem) recordCluster(first uint32, index int) (uint32, error) {
	n := first
	for i := 0; i < index/recordsPerCluster(); i++ {
		e, err := fs.fat.Get(n)
		if err != nil {
			return 0, err
		}
		if e.Kind != Next {
			return 0, fmt.Errorf("directory at %d too short for record %d: %w", first, index, mcfs.ErrCorruptChain)
		}
		n = e.Next
	}
	if n >= fs.fat.Limit() {
		return 0, fmt.Errorf("cluster %d out of range: %w", n, mcfs.ErrCorruptChain)
	}
	return n, nil
}

func (fs *FileSystem) readRecord(loc location) (mcfs.DirEntry, error) {
	n, err := fs.recordCluster(loc.dir, loc.index)
	if err != nil {
		return mcfs.DirEntry{}, err
	}
	buf, err := fs.readCluster(n)
	if err != nil {
		return mcfs.DirEntry{}, err
	}
	offset := (loc.index % recordsPerCluster()) * DirentSize
	return DecodeDirent(buf[offset : offset+DirentSize]), nil
}

func (fs *FileSystem) writeRecord(loc location, e mcfs.DirEntry) error {
	n, err := fs.recordCluster(loc.dir, loc.index)
	if err != nil {
		return err
	}
	buf, err := fs.readCluster(n)
	if err != nil {
		return err
	}
	offset := (loc.index % recordsPerCluster()) * DirentSize
	copy(buf[offset:], EncodeDirent(e))
	return fs.writeCluster(n, buf)
}

// Entries returns every record of the directory in on-disk order,
// including deleted ones.
func (d *Directory) Entries() ([]mcfs.DirEntry, error) {
	chain, err := d.fs.fat.Chain(d.first)
	if err != nil {
		return nil, err
	}
	if d.length > len(chain)*recordsPerCluster() {
		return nil, fmt.Errorf("%s: %d records stored in %d clusters: %w",
			d.path, d.length, len(chain), mcfs.ErrCorruptChain)
	}
	entries := make([]mcfs.DirEntry, 0, d.length)
	for i := 0; i < d.length; i++ {
		e, err := d.fs.readRecord(location{d.first, i})
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// lookup finds the live record named name, matching bytes exactly.
func (d *Directory) lookup(name string) (int, mcfs.DirEntry, error) {
	entries, err := d.Entries()
	if err != nil {
		return 0, mcfs.DirEntry{}, err
	}
	for i, e := range entries {
		if i < 2 || !e.Exists() {
			continue
		}
		if e.Name == name {
			return i, e, nil
		}
	}
	return 0, mcfs.DirEntry{}, mcfs.ErrNotFound
}

// children returns the live records after "." and "..".
func (d *Directory) children() ([]*node, error) {
	entries, err := d.Entries()
	if err != nil {
		return nil, err
	}
	var nodes []*node
	for i, e := range entries {
		if i < 2 || !e.Exists() {
			continue
		}
		nodes = append(nodes, &node{
			entry:  e,
			parent: d,
			index:  i,
			path:   path.Join(d.path, e.Name),
		})
	}
	return nodes, nil
}

// touch rewrites the describing record with the current length and a
// new modification time.
func (d *Directory) touch() error {
	e, err := d.fs.readRecord(d.loc)
	if err != nil {
		return err
	}
	e.Length = uint32(d.length)
	e.Modified = d.fs.now()
	return d.fs.writeRecord(d.loc, e)
}

// add stores e in the first deleted slot, growing the directory by one
// record (and its chain by one cluster when needed) if there is none.
// It returns the record index.
func (d *Directory) add(e mcfs.DirEntry) (int, error) {
	entries, err := d.Entries()
	if err != nil {
		return 0, err
	}
	slot := -1
	for i := 2; i < len(entries); i++ {
		if !entries[i].Exists() {
			slot = i
			break
		}
	}
	if slot < 0 {
		slot = d.length
		if err := d.grow(slot); err != nil {
			return 0, err
		}
		d.length++
	}
	if err := d.fs.writeRecord(location{d.first, slot}, e); err != nil {
		return 0, err
	}
	logger.Printf("%s: added %q at record %d", d.path, e.Name, slot)
	return slot, d.touch()
}

// grow makes sure the chain has room for record index.
func (d *Directory) grow(index int) error {
	chain, err := d.fs.fat.Chain(d.first)
	if err != nil {
		return err
	}
	if index/recordsPerCluster() < len(chain) {
		return nil
	}
	added, err := d.fs.fat.ExtendChain(chain[len(chain)-1], 1)
	if err != nil {
		return err
	}
	return d.fs.writeCluster(added[0], make([]byte, ClusterSize))
}

// remove marks record index deleted. Its slot is kept.
func (d *Directory) remove(index int) error {
	loc := location{d.first, index}
	e, err := d.fs.readRecord(loc)
	if err != nil {
		return err
	}
	e.Mode &^= mcfs.ModeExists
	if err := d.fs.writeRecord(loc, e); err != nil {
		return err
	}
	logger.Printf("%s: removed %q from record %d", d.path, e.Name, index)
	return d.touch()
}
