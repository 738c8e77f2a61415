package card

import (
	"encoding/binary"
	"fmt"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/ecc"
)

// Params describes the geometry of a card to format.
type Params struct {
	WithECC            bool
	PageSize           int
	PagesPerEraseBlock int
	PagesPerCard       int
}

// DefaultParams is the geometry of a standard 8 MB card.
func DefaultParams() Params {
	return Params{
		WithECC:            true,
		PageSize:           512,
		PagesPerEraseBlock: 16,
		PagesPerCard:       16384,
	}
}

// SpareSize is the size of the ECC area following each page.
func (p Params) SpareSize() int {
	if !p.WithECC {
		return 0
	}
	return ecc.Hamming{}.SpareSize(p.PageSize)
}

// ImageSize is the length of an image with this geometry.
func (p Params) ImageSize() int64 {
	return int64(p.PagesPerCard) * int64(p.PageSize+p.SpareSize())
}

// Format writes an empty file system to device, which must be exactly
// p.ImageSize() bytes long, and returns it opened. Formatting twice
// with the same parameters and clock produces identical images.
func Format(device mcfs.BlockDevice, p Params, opts ...Option) (*FileSystem, error) {
	fs := newFileSystem(device, opts)
	if err := format(device, p, fs.clock); err != nil {
		return nil, fail("format", "", err)
	}
	sb, err := DecodeSuperblock(device)
	if err != nil {
		return nil, fail("format", "", err)
	}
	fs.sb = sb
	if err := fs.open(); err != nil {
		return nil, fail("format", "", err)
	}
	fs.modified = true
	return fs, nil
}

func divRoundUp(a, b int) int {
	return (a + b - 1) / b
}

func format(device mcfs.BlockDevice, p Params, clock mcfs.Clock) error {
	switch {
	case p.PageSize < DirentSize || p.PageSize%ecc.ChunkSize != 0 || ClusterSize%p.PageSize != 0:
		return fmt.Errorf("page size %d: %w", p.PageSize, mcfs.ErrInvalidArgument)
	case p.PagesPerEraseBlock < 1 || p.PagesPerEraseBlock*p.PageSize < ClusterSize:
		return fmt.Errorf("pages per erase block %d: %w", p.PagesPerEraseBlock, mcfs.ErrInvalidArgument)
	case p.PagesPerEraseBlock%(ClusterSize/p.PageSize) != 0:
		return fmt.Errorf("pages per erase block %d: %w", p.PagesPerEraseBlock, mcfs.ErrInvalidArgument)
	case p.PagesPerCard < 1 || p.PagesPerCard%p.PagesPerEraseBlock != 0:
		return fmt.Errorf("pages per card %d: %w", p.PagesPerCard, mcfs.ErrInvalidArgument)
	case device.Len() != p.ImageSize():
		return fmt.Errorf("image is %d bytes, geometry needs %d: %w", device.Len(), p.ImageSize(), mcfs.ErrInvalidArgument)
	}

	pagesPerCluster := ClusterSize / p.PageSize
	clustersPerEraseBlock := p.PagesPerEraseBlock / pagesPerCluster
	eraseBlocksPerCard := p.PagesPerCard / p.PagesPerEraseBlock
	clustersPerCard := p.PagesPerCard / pagesPerCluster
	epc := ClusterSize / 4

	goodBlock1 := eraseBlocksPerCard - 1
	goodBlock2 := eraseBlocksPerCard - 2
	firstIFC := divRoundUp(IndirectFATOffset, ClusterSize)

	allocatable := clustersPerCard - (firstIFC + 2)
	fatClusters := divRoundUp(allocatable, epc)
	ifcCount := divRoundUp(fatClusters, epc)
	if ifcCount > MaxIndirectFATClusters {
		ifcCount = MaxIndirectFATClusters
		fatClusters = ifcCount * epc
	}
	allocatableOffset := firstIFC + ifcCount + fatClusters
	allocatableEnd := goodBlock2*clustersPerEraseBlock - allocatableOffset
	if allocatable < 1 || allocatableEnd < 1 {
		return fmt.Errorf("image of %d pages too small to format: %w", p.PagesPerCard, mcfs.ErrNoSpace)
	}

	sb := &Superblock{HasECC: p.WithECC}
	copy(sb.Magic[:], Magic)
	copy(sb.Version[:], FormatVersion)
	sb.PageSize = uint16(p.PageSize)
	sb.PagesPerCluster = uint16(pagesPerCluster)
	sb.PagesPerEraseBlock = uint16(p.PagesPerEraseBlock)
	sb.Reserved = 0xFF00
	sb.ClustersPerCard = uint32(clustersPerCard)
	sb.AllocatableClusterOffset = uint32(allocatableOffset)
	sb.AllocatableClusterEnd = uint32(allocatableEnd)
	sb.RootDirCluster = 0
	sb.BackupBlock1 = uint32(goodBlock1)
	sb.BackupBlock2 = uint32(goodBlock2)
	for i := 0; i < ifcCount; i++ {
		sb.IndirectFATClusters[i] = uint32(firstIFC + i)
	}
	for i := range sb.BadEraseBlocks {
		sb.BadEraseBlocks[i] = 0xFFFFFFFF
	}
	sb.CardType = CardTypePS2
	sb.CardFlags = DefaultFlags

	var codec ecc.Codec = ecc.None{}
	if p.WithECC {
		codec = ecc.Hamming{}
	}
	pages := NewPages(device, codec, p.PageSize, p.SpareSize(), pagesPerCluster, p.PagesPerCard)
	if err := erase(pages); err != nil {
		return err
	}

	// indirect FAT clusters list the FAT clusters that follow them
	firstFAT := firstIFC + ifcCount
	for i := 0; i < ifcCount; i++ {
		buf := make([]byte, ClusterSize)
		for j := 0; j < epc && i*epc+j < fatClusters; j++ {
			binary.LittleEndian.PutUint32(buf[j*4:], uint32(firstFAT+i*epc+j))
		}
		if err := pages.WriteCluster(sb.IndirectFATClusters[i], buf); err != nil {
			return err
		}
	}

	// every entry free except cluster 0, which holds the root directory
	for i := 0; i < fatClusters; i++ {
		buf := make([]byte, ClusterSize)
		for j := 0; j < epc; j++ {
			binary.LittleEndian.PutUint32(buf[j*4:], fatFree)
		}
		if i == 0 {
			binary.LittleEndian.PutUint32(buf, fatChainEnd)
		}
		if err := pages.WriteCluster(uint32(firstFAT+i), buf); err != nil {
			return err
		}
	}

	now := mcfs.FromTime(clock())
	dot := mcfs.DirEntry{
		Name:     ".",
		Mode:     mcfs.DefaultDirMode,
		Length:   2,
		Created:  now,
		Modified: now,
	}
	dotdot := mcfs.DirEntry{
		Name:     "..",
		Mode:     mcfs.ParentDirMode,
		Created:  now,
		Modified: now,
	}
	root := append(EncodeDirent(dot), EncodeDirent(dotdot)...)
	if err := pages.WriteCluster(sb.AllocatableClusterOffset+sb.RootDirCluster, root); err != nil {
		return err
	}

	if err := pages.WritePage(0, sb.Bytes()); err != nil {
		return err
	}
	logger.Printf("formatted card: %d clusters, offset %d, end %d",
		clustersPerCard, allocatableOffset, allocatableEnd)
	return nil
}

// erase fills every page with zeros.
func erase(pages *Pages) error {
	zero := make([]byte, pages.pageSize)
	for i := 0; i < pages.count; i++ {
		if err := pages.WritePage(i, zero); err != nil {
			return err
		}
	}
	return nil
}
