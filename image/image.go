package image

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/card"
)

const MB = 1024 * 1024

var logger = log.New(io.Discard, "image: ", 0)

// SetLogger enables trace logging of image file activity. A nil l
// silences it.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	logger = l
}

// FileRecord describes one entry found by ScanFiles.
type FileRecord struct {
	Name      string
	Dir       bool
	Size      int64
	Mode      mcfs.Mode
	Hidden    bool
	Protected bool
	Modified  time.Time
}

// Image is a memory card image file. The whole image is held in memory;
// Save writes it back to the file.
type Image struct {
	Filename string
	readOnly bool
	fs       afero.Fs
	file     afero.File
	disk     *mcfs.MemDisk
	card     *card.FileSystem
}

// OpenImage opens an existing image file on fs. A read only image
// refuses Save.
func OpenImage(fs afero.Fs, filename string, readOnly bool, opts ...card.Option) (*Image, error) {
	i := Image{Filename: filename, readOnly: readOnly, fs: fs}
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	var err error
	i.file, err = fs.OpenFile(filename, flag, 0)
	if err != nil {
		return nil, Fatal(err)
	}
	buf, err := afero.ReadAll(i.file)
	if err != nil {
		i.closeFile()
		return nil, Fatal(err)
	}
	i.disk = mcfs.NewMemDisk(buf)
	i.card, err = card.New(i.disk, opts...)
	if err != nil {
		i.closeFile()
		return nil, err
	}
	logger.Printf("opened %s: %d bytes\n", filename, len(buf))
	return &i, nil
}

// CreateImage writes a freshly formatted image with geometry params to
// filename, replacing any existing file.
func CreateImage(fs afero.Fs, filename string, params card.Params, opts ...card.Option) (*Image, error) {
	i := Image{Filename: filename, fs: fs}
	var err error
	i.file, err = fs.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return nil, Fatal(err)
	}
	i.disk = mcfs.NewMemDisk(make([]byte, params.ImageSize()))
	i.card, err = card.Format(i.disk, params, opts...)
	if err != nil {
		i.closeFile()
		return nil, err
	}
	err = i.Save()
	if err != nil {
		i.closeFile()
		return nil, Fatal(err)
	}
	return &i, nil
}

// Card returns the file system of the image.
func (i *Image) Card() *card.FileSystem {
	return i.card
}

// Save writes the image back to its file.
func (i *Image) Save() error {
	if i.readOnly {
		return Fatalf("%s: image opened read only", i.Filename)
	}
	if i.file == nil {
		return Fatalf("%s: image closed", i.Filename)
	}
	buf := i.disk.Bytes()
	if _, err := i.file.WriteAt(buf, 0); err != nil {
		return Fatal(err)
	}
	if err := i.file.Truncate(int64(len(buf))); err != nil {
		return Fatal(err)
	}
	if err := i.file.Sync(); err != nil {
		return Fatal(err)
	}
	i.card.MarkClean()
	logger.Printf("saved %s: %d bytes\n", i.Filename, len(buf))
	return nil
}

func (i *Image) closeFile() error {
	if i.file != nil {
		err := i.file.Close()
		i.file = nil
		if err != nil {
			return Fatal(err)
		}
	}
	return nil
}

// Close saves a modified image and releases the file.
func (i *Image) Close() error {
	var err error
	if i.card != nil && i.card.Modified() && !i.readOnly {
		err = multierr.Append(err, i.Save())
	}
	return multierr.Append(err, i.closeFile())
}

// ScanFiles returns every entry below the root, parents before children.
func (i *Image) ScanFiles() ([]FileRecord, error) {
	records, err := i.walk("/")
	if err != nil {
		return []FileRecord{}, err
	}
	return records, nil
}

func (i *Image) walk(dir string) ([]FileRecord, error) {
	records := []FileRecord{}
	entries, err := i.card.List(dir)
	if err != nil {
		return []FileRecord{}, err
	}
	for _, entry := range entries {
		switch {
		case entry.Name == ".":
		case entry.Name == "..":
		default:
			record := FileRecord{
				Name:      path.Join(dir, entry.Name),
				Dir:       entry.IsDir(),
				Mode:      entry.Mode,
				Hidden:    entry.Mode.IsHidden(),
				Protected: entry.Mode.IsProtected(),
				Modified:  entry.Modified.Time(),
			}
			if !record.Dir {
				record.Size = int64(entry.Length)
			}
			records = append(records, record)
			if record.Dir {
				subRecords, err := i.walk(record.Name)
				if err != nil {
					return []FileRecord{}, err
				}
				records = append(records, subRecords...)
			}
		}
	}
	return records, nil
}

// AddFile copies the host file srcPathname into the card. When
// dstPathname is empty or names a directory, the file keeps its
// base name.
func (i *Image) AddFile(dstPathname, srcPathname string) error {
	data, err := afero.ReadFile(i.fs, srcPathname)
	if err != nil {
		return Fatal(err)
	}
	dst := dstPathname
	isDir, err := i.IsDir(dst)
	if err != nil {
		return err
	}
	if dst == "" || strings.HasSuffix(dst, "/") || isDir {
		dst = path.Join(dst, filepath.Base(srcPathname))
	}
	logger.Printf("add %s -> %s (%d bytes)\n", srcPathname, dst, len(data))
	return i.card.Add(data, dst)
}

// ReadFile returns the contents of a card file.
func (i *Image) ReadFile(filename string) ([]byte, error) {
	return i.card.Extract(filename)
}

// ExtractFile copies a card file to the host file dstPathname.
func (i *Image) ExtractFile(srcPathname, dstPathname string) error {
	data, err := i.card.Extract(srcPathname)
	if err != nil {
		return err
	}
	err = afero.WriteFile(i.fs, dstPathname, data, 0644)
	if err != nil {
		return Fatal(err)
	}
	logger.Printf("extract %s -> %s (%d bytes)\n", srcPathname, dstPathname, len(data))
	return nil
}

// IsDir reports whether name is a directory on the card. Missing paths
// are not an error.
func (i *Image) IsDir(name string) (bool, error) {
	entry, err := i.card.Stat(name)
	switch {
	case errors.Is(err, mcfs.ErrNotFound), errors.Is(err, mcfs.ErrNotDir):
		return false, nil
	case err != nil:
		return false, err
	}
	return entry.IsDir(), nil
}

func (i *Image) Mkdir(pathname string) error {
	return i.card.Mkdir(pathname)
}

// Import copies the host directory srcDir and everything below it into
// the card directory dstDir, under srcDir's base name.
func (i *Image) Import(dstDir, srcDir string) error {
	info, err := i.fs.Stat(srcDir)
	if err != nil {
		return Fatal(err)
	}
	if !info.IsDir() {
		return Fatalf("not a directory: %s", srcDir)
	}
	base := path.Join(dstDir, filepath.Base(srcDir))
	err = afero.Walk(i.fs, srcDir, func(pathname string, info os.FileInfo, err error) error {
		if err != nil {
			return Fatal(err)
		}
		rel, err := filepath.Rel(srcDir, pathname)
		if err != nil {
			return Fatal(err)
		}
		dst := path.Join(base, filepath.ToSlash(rel))
		logger.Printf("import dir=%v dst=%s, path=%s\n", info.IsDir(), dst, pathname)
		if info.IsDir() {
			return i.card.Mkdir(dst)
		}
		return i.AddFile(dst, pathname)
	})
	if err != nil {
		return err
	}
	return nil
}

// SetAttr changes the mode bits of a card entry.
func (i *Image) SetAttr(pathname string, changes mcfs.AttrChanges) error {
	return i.card.Set(pathname, changes)
}

func (i *Image) GetAttr(pathname string) (mcfs.Mode, error) {
	entry, err := i.card.Stat(pathname)
	if err != nil {
		return 0, err
	}
	return entry.Mode, nil
}

// String identifies the image in messages.
func (i *Image) String() string {
	return fmt.Sprintf("%s (%s)", i.Filename, sizeString(i.disk.Len()))
}

func sizeString(n int64) string {
	if n%MB == 0 {
		return fmt.Sprintf("%d MB", n/MB)
	}
	return fmt.Sprintf("%d bytes", n)
}
