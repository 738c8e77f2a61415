package card

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/width"

	"github.com/rstms/mcfs"
)

const (
	// IconSysName is the save description file of a PS2 save directory.
	IconSysName = "icon.sys"

	iconSysMagic       = "PS2D"
	iconSysSize        = 964
	iconSysTitleOffset = 0xC0
	iconSysTitleSize   = 68
)

// SaveInfo summarizes one save directory in the root.
type SaveInfo struct {
	Name      string
	Title     [2]string
	Size      int64
	Protected bool
	Modified  mcfs.Timestamp
}

// ParseIconSys returns the two title lines stored in an icon.sys file.
// The title is Shift-JIS; full width characters are folded to their
// ASCII forms.
func ParseIconSys(data []byte) ([2]string, error) {
	var title [2]string
	if len(data) < iconSysSize || string(data[:4]) != iconSysMagic {
		return title, fmt.Errorf("not an icon.sys file: %w", mcfs.ErrInvalidFormat)
	}
	raw := data[iconSysTitleOffset : iconSysTitleOffset+iconSysTitleSize]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	split := int(binary.LittleEndian.Uint16(data[6:8]))
	if split > len(raw) || split%2 != 0 {
		split = len(raw)
	}
	for i, part := range [][]byte{raw[:split], raw[split:]} {
		s, err := japanese.ShiftJIS.NewDecoder().Bytes(part)
		if err != nil {
			return title, fmt.Errorf("decode title: %w", mcfs.ErrInvalidFormat)
		}
		title[i] = strings.TrimSpace(width.Narrow.String(string(s)))
	}
	return title, nil
}

// Saves describes every directory in the root, in on-disk order.
func (fs *FileSystem) Saves() ([]SaveInfo, error) {
	root, err := fs.rootNode()
	if err != nil {
		return nil, fail("dir", "/", err)
	}
	dir, err := fs.openDir(root)
	if err != nil {
		return nil, fail("dir", "/", err)
	}
	children, err := dir.children()
	if err != nil {
		return nil, fail("dir", "/", err)
	}
	var saves []SaveInfo
	for _, child := range children {
		if !child.entry.IsDir() {
			continue
		}
		info, err := fs.saveInfo(child)
		if err != nil {
			return nil, fail("dir", child.path, err)
		}
		saves = append(saves, info)
	}
	return saves, nil
}

func (fs *FileSystem) saveInfo(n *node) (SaveInfo, error) {
	info := SaveInfo{
		Name:      n.entry.Name,
		Protected: n.entry.Mode.IsProtected(),
		Modified:  n.entry.Modified,
	}
	dir, err := fs.openDir(n)
	if err != nil {
		return info, err
	}
	clusters := divRoundUp(dir.length*DirentSize, ClusterSize)
	children, err := dir.children()
	if err != nil {
		return info, err
	}
	for _, child := range children {
		if child.entry.IsDir() {
			continue
		}
		clusters += divRoundUp(int(child.entry.Length), ClusterSize)
		if child.entry.Name != IconSysName {
			continue
		}
		data, err := fs.readFile(child.entry)
		if err != nil {
			return info, err
		}
		// a save with a broken icon.sys is still listed
		if title, err := ParseIconSys(data); err == nil {
			info.Title = title
		}
	}
	info.Size = int64(clusters) * ClusterSize
	return info, nil
}
