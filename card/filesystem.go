package card

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/multierr"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/ecc"
)

// FileSystem is the implementation of mcfs.FileSystem for a PS2 memory
// card image held on a BlockDevice.
type FileSystem struct {
	sb       *Superblock
	device   mcfs.BlockDevice
	pages    *Pages
	fat      *FAT
	clock    mcfs.Clock
	codec    ecc.Codec
	modified bool
}

// ensure FileSystem implements mcfs.FileSystem
var _ mcfs.FileSystem = (*FileSystem)(nil)

// Option configures a FileSystem.
type Option func(*FileSystem)

// WithClock sets the time source used to stamp entries.
func WithClock(clock mcfs.Clock) Option {
	return func(fs *FileSystem) {
		fs.clock = clock
	}
}

// WithCodec replaces the page code used on images that carry ECC.
func WithCodec(codec ecc.Codec) Option {
	return func(fs *FileSystem) {
		fs.codec = codec
	}
}

// New returns a FileSystem for accessing a previously formatted card.
func New(device mcfs.BlockDevice, opts ...Option) (*FileSystem, error) {
	sb, err := DecodeSuperblock(device)
	if err != nil {
		return nil, &mcfs.PathError{Op: "open", Err: err}
	}
	fs := newFileSystem(device, opts)
	fs.sb = sb
	if err := fs.open(); err != nil {
		return nil, &mcfs.PathError{Op: "open", Err: err}
	}
	logger.Printf("opened card: %d clusters, %d free, ecc=%v",
		fs.fat.Limit(), fs.fat.FreeCount(), sb.HasECC)
	return fs, nil
}

func newFileSystem(device mcfs.BlockDevice, opts []Option) *FileSystem {
	fs := &FileSystem{
		device: device,
		clock:  mcfs.SystemClock,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

func (fs *FileSystem) open() error {
	var codec ecc.Codec = ecc.None{}
	spare := 0
	if fs.sb.HasECC {
		codec = ecc.Hamming{}
		if fs.codec != nil {
			codec = fs.codec
		}
		spare = fs.sb.SpareSize()
	}
	fs.pages = NewPages(fs.device, codec, int(fs.sb.PageSize), spare,
		int(fs.sb.PagesPerCluster), fs.sb.PagesPerCard())
	fat, err := DecodeFAT(fs.sb, fs.pages)
	if err != nil {
		return err
	}
	fs.fat = fat
	return nil
}

// Superblock returns the parsed card header.
func (fs *FileSystem) Superblock() *Superblock {
	return fs.sb
}

// Info returns the card geometry.
func (fs *FileSystem) Info() Info {
	return fs.sb.Info()
}

// Modified reports whether any operation has changed the image since
// it was opened.
func (fs *FileSystem) Modified() bool {
	return fs.modified
}

// MarkClean resets the modified flag once the image has been saved.
func (fs *FileSystem) MarkClean() {
	fs.modified = false
}

func (fs *FileSystem) now() mcfs.Timestamp {
	return mcfs.FromTime(fs.clock())
}

func (fs *FileSystem) readCluster(n uint32) ([]byte, error) {
	return fs.pages.ReadCluster(n + fs.sb.AllocatableClusterOffset)
}

func (fs *FileSystem) writeCluster(n uint32, buf []byte) error {
	return fs.pages.WriteCluster(n+fs.sb.AllocatableClusterOffset, buf)
}

// update runs fn as one operation: either all of its writes stay in
// the image or none of them do.
func (fs *FileSystem) update(op, name string, fn func() error) error {
	fs.pages.Begin()
	fs.fat.mark()
	if err := fn(); err != nil {
		if rerr := fs.pages.Rollback(); rerr != nil {
			err = multierr.Append(err, rerr)
		}
		fs.fat.reset()
		return fail(op, name, err)
	}
	fs.pages.Commit()
	fs.modified = true
	return nil
}

func fail(op, name string, err error) error {
	var pe *mcfs.PathError
	if errors.As(err, &pe) {
		return err
	}
	return &mcfs.PathError{Op: op, Path: name, Err: err}
}

func splitPath(p string) []string {
	var names []string
	for _, name := range strings.Split(p, "/") {
		if name != "" && name != "." {
			names = append(names, name)
		}
	}
	return names
}

func validRoot(e mcfs.DirEntry) bool {
	return e.Name == "." && e.Mode.IsDir() && e.Exists()
}

func (fs *FileSystem) rootLocation() location {
	return location{dir: fs.sb.RootDirCluster, index: 0}
}

func (fs *FileSystem) rootNode() (*node, error) {
	e, err := fs.readRecord(fs.rootLocation())
	if err != nil {
		return nil, fmt.Errorf("root directory damaged: %w", err)
	}
	if !validRoot(e) {
		return nil, fmt.Errorf("root directory damaged: %w", mcfs.ErrConsistency)
	}
	return &node{entry: e, path: "/"}, nil
}

func (fs *FileSystem) openDir(n *node) (*Directory, error) {
	if !n.entry.IsDir() {
		return nil, mcfs.ErrNotDir
	}
	if n.parent == nil {
		return &Directory{
			fs:     fs,
			path:   "/",
			first:  fs.sb.RootDirCluster,
			length: int(n.entry.Length),
			loc:    fs.rootLocation(),
		}, nil
	}
	return &Directory{
		fs:     fs,
		path:   n.path,
		first:  n.entry.Cluster,
		length: int(n.entry.Length),
		loc:    location{dir: n.parent.first, index: n.index},
	}, nil
}

// resolve walks p from the root. ".." steps back along the walk.
func (fs *FileSystem) resolve(p string) (*node, error) {
	root, err := fs.rootNode()
	if err != nil {
		return nil, err
	}
	stack := []*node{root}
	for _, name := range splitPath(p) {
		cur := stack[len(stack)-1]
		dir, err := fs.openDir(cur)
		if err != nil {
			return nil, err
		}
		if name == ".." {
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		index, e, err := dir.lookup(name)
		if err != nil {
			return nil, err
		}
		stack = append(stack, &node{
			entry:  e,
			parent: dir,
			index:  index,
			path:   path.Join(cur.path, name),
		})
	}
	return stack[len(stack)-1], nil
}

// resolveParent returns the directory that holds (or would hold) the
// last element of p, and that element.
func (fs *FileSystem) resolveParent(p string) (*Directory, string, error) {
	names := splitPath(p)
	if len(names) == 0 {
		return nil, "", fmt.Errorf("%q names the root directory: %w", p, mcfs.ErrInvalidArgument)
	}
	name := names[len(names)-1]
	if err := ValidName(name); err != nil {
		return nil, "", err
	}
	parent, err := fs.resolve(strings.Join(names[:len(names)-1], "/"))
	if err != nil {
		return nil, "", err
	}
	dir, err := fs.openDir(parent)
	if err != nil {
		return nil, "", err
	}
	return dir, name, nil
}

// create checks that name is free in dir.
func create(dir *Directory, name string) error {
	_, _, err := dir.lookup(name)
	switch {
	case err == nil:
		return mcfs.ErrExists
	case errors.Is(err, mcfs.ErrNotFound):
		return nil
	}
	return err
}

func (fs *FileSystem) writeEntry(n *node, e mcfs.DirEntry) error {
	if n.parent == nil {
		return fs.writeRecord(fs.rootLocation(), e)
	}
	return fs.writeRecord(location{dir: n.parent.first, index: n.index}, e)
}

// List returns the live records of the directory at p in on-disk order,
// "." and ".." first. For a file it returns the file's own record.
func (fs *FileSystem) List(p string) ([]mcfs.DirEntry, error) {
	n, err := fs.resolve(p)
	if err != nil {
		return nil, fail("list", p, err)
	}
	if !n.entry.IsDir() {
		return []mcfs.DirEntry{n.entry}, nil
	}
	dir, err := fs.openDir(n)
	if err != nil {
		return nil, fail("list", p, err)
	}
	entries, err := dir.Entries()
	if err != nil {
		return nil, fail("list", p, err)
	}
	live := make([]mcfs.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Exists() {
			live = append(live, e)
		}
	}
	return live, nil
}

// Stat returns the record of p.
func (fs *FileSystem) Stat(p string) (mcfs.DirEntry, error) {
	n, err := fs.resolve(p)
	if err != nil {
		return mcfs.DirEntry{}, fail("stat", p, err)
	}
	return n.entry, nil
}

// Add stores data as a new file at p.
func (fs *FileSystem) Add(data []byte, p string) error {
	return fs.update("add", p, func() error {
		dir, name, err := fs.resolveParent(p)
		if err != nil {
			return err
		}
		if err := create(dir, name); err != nil {
			return err
		}
		chain, err := fs.fat.AllocateChain((len(data) + ClusterSize - 1) / ClusterSize)
		if err != nil {
			return err
		}
		for i, n := range chain {
			buf := make([]byte, ClusterSize)
			copy(buf, data[i*ClusterSize:])
			if err := fs.writeCluster(n, buf); err != nil {
				return err
			}
		}
		now := fs.now()
		e := mcfs.DirEntry{
			Name:     name,
			Mode:     mcfs.DefaultFileMode,
			Length:   uint32(len(data)),
			Created:  now,
			Modified: now,
			Cluster:  ChainEnd,
		}
		if len(chain) > 0 {
			e.Cluster = chain[0]
		}
		_, err = dir.add(e)
		return err
	})
}

// Extract returns the contents of the file at p.
func (fs *FileSystem) Extract(p string) ([]byte, error) {
	n, err := fs.resolve(p)
	if err != nil {
		return nil, fail("extract", p, err)
	}
	if n.entry.IsDir() {
		return nil, fail("extract", p, mcfs.ErrIsDir)
	}
	data, err := fs.readFile(n.entry)
	if err != nil {
		return nil, fail("extract", p, err)
	}
	return data, nil
}

func (fs *FileSystem) readFile(e mcfs.DirEntry) ([]byte, error) {
	if e.Length == 0 {
		return []byte{}, nil
	}
	chain, err := fs.fat.Chain(e.Cluster)
	if err != nil {
		return nil, err
	}
	need := (int(e.Length) + ClusterSize - 1) / ClusterSize
	if len(chain) < need {
		return nil, fmt.Errorf("%d bytes in %d clusters: %w", e.Length, len(chain), mcfs.ErrCorruptChain)
	}
	data := make([]byte, 0, need*ClusterSize)
	for _, n := range chain[:need] {
		buf, err := fs.readCluster(n)
		if err != nil {
			return nil, err
		}
		data = append(data, buf...)
	}
	return data[:e.Length], nil
}

// lastName returns the final element of p as written, "." and ".."
// included.
func lastName(p string) string {
	p = strings.TrimRight(p, "/")
	return p[strings.LastIndex(p, "/")+1:]
}

// resolveRemovable resolves the target of delete and remove. Paths
// ending in "." or ".." are refused so that "A/." cannot remove A.
func (fs *FileSystem) resolveRemovable(p string) (*node, error) {
	if name := lastName(p); name == "." || name == ".." {
		return nil, fmt.Errorf("cannot remove %q: %w", name, mcfs.ErrInvalidArgument)
	}
	return fs.resolve(p)
}

// Delete removes a file or an empty directory.
func (fs *FileSystem) Delete(p string) error {
	return fs.update("delete", p, func() error {
		n, err := fs.resolveRemovable(p)
		if err != nil {
			return err
		}
		return fs.removeNode(n, false)
	})
}

// Remove removes a file or a directory with everything below it.
func (fs *FileSystem) Remove(p string) error {
	return fs.update("remove", p, func() error {
		n, err := fs.resolveRemovable(p)
		if err != nil {
			return err
		}
		return fs.removeNode(n, true)
	})
}

func (fs *FileSystem) removeNode(n *node, recursive bool) error {
	if n.parent == nil {
		return fmt.Errorf("cannot remove the root directory: %w", mcfs.ErrInvalidArgument)
	}
	if n.entry.IsDir() {
		dir, err := fs.openDir(n)
		if err != nil {
			return err
		}
		children, err := dir.children()
		if err != nil {
			return err
		}
		if len(children) > 0 && !recursive {
			return mcfs.ErrNotEmpty
		}
		for _, child := range children {
			if err := fs.removeNode(child, true); err != nil {
				return err
			}
		}
		if err := fs.fat.FreeChain(dir.first); err != nil {
			return err
		}
	} else if n.entry.Cluster != ChainEnd {
		if err := fs.fat.FreeChain(n.entry.Cluster); err != nil {
			return err
		}
	}
	return n.parent.remove(n.index)
}

// Clear removes everything in the directory at p except the entries
// named in exclude. The directory itself is kept.
func (fs *FileSystem) Clear(p string, exclude []string) error {
	keep := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		keep[name] = true
	}
	return fs.update("clear", p, func() error {
		n, err := fs.resolve(p)
		if err != nil {
			return err
		}
		dir, err := fs.openDir(n)
		if err != nil {
			return err
		}
		children, err := dir.children()
		if err != nil {
			return err
		}
		for _, child := range children {
			if keep[child.entry.Name] {
				continue
			}
			if err := fs.removeNode(child, true); err != nil {
				return err
			}
		}
		return nil
	})
}

// Set changes the mode bits of p. Contents are not touched.
func (fs *FileSystem) Set(p string, changes mcfs.AttrChanges) error {
	if !changes.Valid() {
		return fail("set", p, fmt.Errorf("mode bits %s: %w",
			(changes.Set|changes.Clear)&^mcfs.SettableModes, mcfs.ErrInvalidArgument))
	}
	return fs.update("set", p, func() error {
		n, err := fs.resolve(p)
		if err != nil {
			return err
		}
		e := n.entry
		e.Mode = changes.Apply(e.Mode)
		e.Modified = fs.now()
		return fs.writeEntry(n, e)
	})
}

// Mkdir creates an empty directory at p. Its length counts records, so
// a new directory lists with length 2 for its "." and ".." records.
func (fs *FileSystem) Mkdir(p string) error {
	return fs.update("mkdir", p, func() error {
		dir, name, err := fs.resolveParent(p)
		if err != nil {
			return err
		}
		if err := create(dir, name); err != nil {
			return err
		}
		chain, err := fs.fat.AllocateChain(1)
		if err != nil {
			return err
		}
		now := fs.now()
		index, err := dir.add(mcfs.DirEntry{
			Name:     name,
			Mode:     mcfs.DefaultDirMode,
			Length:   2,
			Created:  now,
			Modified: now,
			Cluster:  chain[0],
		})
		if err != nil {
			return err
		}
		dot := mcfs.DirEntry{
			Name:     ".",
			Mode:     mcfs.DefaultDirMode,
			Created:  now,
			Modified: now,
			Cluster:  dir.first,
			Parent:   uint32(index),
		}
		dotdot := mcfs.DirEntry{
			Name:     "..",
			Mode:     mcfs.ParentDirMode,
			Created:  now,
			Modified: now,
		}
		return fs.writeCluster(chain[0], append(EncodeDirent(dot), EncodeDirent(dotdot)...))
	})
}

// Format reinitializes the card with its current geometry.
func (fs *FileSystem) Format() error {
	if err := format(fs.device, fs.sb.Params(), fs.clock); err != nil {
		return fail("format", "", err)
	}
	sb, err := DecodeSuperblock(fs.device)
	if err != nil {
		return fail("format", "", err)
	}
	fs.sb = sb
	if err := fs.open(); err != nil {
		return fail("format", "", err)
	}
	fs.modified = true
	return nil
}

// DF returns the free space in bytes, counted from the allocation table.
func (fs *FileSystem) DF() (int64, error) {
	free, err := fs.fat.ScanFree()
	if err != nil {
		return 0, fail("df", "", err)
	}
	return int64(free) * int64(fs.sb.ClusterSize()), nil
}
