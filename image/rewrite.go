package image

import (
	"github.com/spf13/afero"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/card"
)

// RewriteImage copies the tree of srcFile into a freshly formatted
// dstFile. Files are laid out again from the first free cluster, so the
// copy is defragmented. With params nil the source geometry is kept;
// otherwise params may, for instance, drop the ECC area.
func RewriteImage(fs afero.Fs, dstFile, srcFile string, params *card.Params, opts ...card.Option) error {
	src, err := OpenImage(fs, srcFile, true, opts...)
	if err != nil {
		return err
	}
	defer src.Close()

	records, err := src.ScanFiles()
	if err != nil {
		return err
	}

	p := src.Card().Superblock().Params()
	if params != nil {
		p = *params
	}
	dst, err := CreateImage(fs, dstFile, p, opts...)
	if err != nil {
		return err
	}
	defer dst.Close()

	for _, record := range records {
		if record.Dir {
			err := dst.Mkdir(record.Name)
			if err != nil {
				return err
			}
		} else {
			err := copyFile(dst, src, record)
			if err != nil {
				return err
			}
		}
	}

	// modes are copied once the whole tree exists
	for _, record := range records {
		changes := mcfs.AttrChanges{
			Set:   record.Mode & mcfs.SettableModes,
			Clear: ^record.Mode & mcfs.SettableModes,
		}
		err := dst.SetAttr(record.Name, changes)
		if err != nil {
			return err
		}
	}
	return dst.Save()
}

func copyFile(dst, src *Image, record FileRecord) error {
	logger.Printf("copyFile: %s (%d bytes)\n", record.Name, record.Size)
	data, err := src.ReadFile(record.Name)
	if err != nil {
		return err
	}
	return dst.Card().Add(data, record.Name)
}
