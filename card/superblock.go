package card

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/ecc"
)

const (
	Magic         = "Sony PS2 Memory Card Format "
	FormatVersion = "1.2.0.0"

	// ClusterSize is the only cluster size the format allows.
	ClusterSize = 1024

	MaxIndirectFATClusters = 32
	IndirectFATOffset      = 0x2000

	CardTypePS2  = 2
	DefaultFlags = 0x52

	superblockSize = 0x154
)

// Header is the on-disk layout of the superblock.
type Header struct {
	Magic                    [28]byte
	Version                  [12]byte
	PageSize                 uint16
	PagesPerCluster          uint16
	PagesPerEraseBlock       uint16
	Reserved                 uint16
	ClustersPerCard          uint32
	AllocatableClusterOffset uint32
	AllocatableClusterEnd    uint32
	RootDirCluster           uint32
	BackupBlock1             uint32
	BackupBlock2             uint32
	Padding                  [8]byte
	IndirectFATClusters      [MaxIndirectFATClusters]uint32
	BadEraseBlocks           [32]uint32
	CardType                 uint8
	CardFlags                uint8
	Padding2                 [2]byte
}

// Superblock is the card header stored at the start of page 0.
type Superblock struct {
	Header
	// HasECC is derived from the image length; it is not stored.
	HasECC bool
}

// DecodeSuperblock reads and validates the superblock of the image on
// device. The superblock is read raw: whether the image carries ECC is
// only known once the geometry has been decoded.
func DecodeSuperblock(device mcfs.BlockDevice) (*Superblock, error) {
	if device.Len() < superblockSize {
		return nil, fmt.Errorf("image too small: %w", mcfs.ErrInvalidFormat)
	}
	buf := make([]byte, superblockSize)
	if _, err := device.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	sb := &Superblock{}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &sb.Header); err != nil {
		return nil, fmt.Errorf("decode superblock: %w", mcfs.ErrInvalidFormat)
	}
	if err := sb.validate(device.Len()); err != nil {
		return nil, err
	}
	return sb, nil
}

// Bytes returns the encoded superblock padded to pageSize bytes.
func (sb *Superblock) Bytes() []byte {
	var buf bytes.Buffer
	// writes to a bytes.Buffer cannot fail
	_ = binary.Write(&buf, binary.LittleEndian, &sb.Header)
	page := make([]byte, sb.PageSize)
	copy(page, buf.Bytes())
	return page
}

func (sb *Superblock) validate(imageLen int64) error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), mcfs.ErrInvalidFormat)
	}
	if string(sb.Magic[:]) != Magic {
		return invalid("bad magic %q", bytes.TrimRight(sb.Magic[:], "\x00"))
	}
	if sb.PageSize == 0 || sb.PageSize%ecc.ChunkSize != 0 || int(sb.PageSize) < DirentSize {
		return invalid("bad page size %d", sb.PageSize)
	}
	if sb.PagesPerCluster == 0 || sb.PagesPerCluster&(sb.PagesPerCluster-1) != 0 {
		return invalid("pages per cluster %d is not a power of two", sb.PagesPerCluster)
	}
	if int(sb.PageSize)*int(sb.PagesPerCluster) != ClusterSize {
		return invalid("cluster size %d", int(sb.PageSize)*int(sb.PagesPerCluster))
	}
	if sb.PagesPerEraseBlock == 0 || sb.PagesPerEraseBlock%sb.PagesPerCluster != 0 {
		return invalid("bad erase block size %d", sb.PagesPerEraseBlock)
	}
	if sb.ClustersPerCard == 0 {
		return invalid("zero clusters per card")
	}

	pages := int64(sb.PagesPerCard())
	switch imageLen {
	case pages * int64(sb.PageSize+uint16(sb.SpareSize())):
		sb.HasECC = true
	case pages * int64(sb.PageSize):
		sb.HasECC = false
	default:
		return invalid("image length %d does not match %d pages", imageLen, pages)
	}

	if sb.AllocatableClusterOffset >= sb.ClustersPerCard {
		return invalid("allocatable cluster offset %d", sb.AllocatableClusterOffset)
	}
	limit := sb.AllocatableClusterLimit()
	if limit <= 0 || int64(sb.AllocatableClusterOffset)+limit > int64(sb.ClustersPerCard) {
		return invalid("allocatable cluster limit %d", limit)
	}
	if int64(sb.RootDirCluster) >= limit {
		return invalid("root directory cluster %d", sb.RootDirCluster)
	}
	epc := int64(sb.EntriesPerCluster())
	ifcCount := (limit + epc*epc - 1) / (epc * epc)
	if ifcCount > MaxIndirectFATClusters {
		return invalid("card needs %d indirect FAT clusters", ifcCount)
	}
	for i := int64(0); i < ifcCount; i++ {
		if sb.IndirectFATClusters[i] >= sb.ClustersPerCard {
			return invalid("indirect FAT cluster %d out of range", sb.IndirectFATClusters[i])
		}
	}
	return nil
}

func (sb *Superblock) ClusterSize() int {
	return int(sb.PageSize) * int(sb.PagesPerCluster)
}

// EntriesPerCluster is the number of 32 bit FAT entries in a cluster.
func (sb *Superblock) EntriesPerCluster() int {
	return sb.ClusterSize() / 4
}

// SpareSize is the size of the ECC area that follows each page in
// images that carry one.
func (sb *Superblock) SpareSize() int {
	return ecc.Hamming{}.SpareSize(int(sb.PageSize))
}

func (sb *Superblock) PagesPerCard() int {
	return int(sb.ClustersPerCard) * int(sb.PagesPerCluster)
}

// AllocatableClusterLimit is the number of clusters the FAT may hand out.
func (sb *Superblock) AllocatableClusterLimit() int64 {
	good := sb.BackupBlock1
	if sb.BackupBlock2 < good {
		good = sb.BackupBlock2
	}
	return int64(good)*int64(sb.PagesPerEraseBlock)/int64(sb.PagesPerCluster) -
		int64(sb.AllocatableClusterOffset)
}

// Params returns the format parameters that reproduce this geometry.
func (sb *Superblock) Params() Params {
	return Params{
		WithECC:            sb.HasECC,
		PageSize:           int(sb.PageSize),
		PagesPerEraseBlock: int(sb.PagesPerEraseBlock),
		PagesPerCard:       sb.PagesPerCard(),
	}
}

// Info is a summary of the card geometry.
type Info struct {
	PageSize           int    `toml:"page_size" yaml:"page_size"`
	PagesPerCluster    int    `toml:"pages_per_cluster" yaml:"pages_per_cluster"`
	PagesPerEraseBlock int    `toml:"pages_per_erase_block" yaml:"pages_per_erase_block"`
	ClustersPerCard    int    `toml:"clusters_per_card" yaml:"clusters_per_card"`
	AllocatableOffset  int    `toml:"allocatable_offset" yaml:"allocatable_offset"`
	AllocatableLimit   int64  `toml:"allocatable_limit" yaml:"allocatable_limit"`
	RootDirCluster     int    `toml:"root_dir_cluster" yaml:"root_dir_cluster"`
	ECC                bool   `toml:"ecc" yaml:"ecc"`
	Version            string `toml:"version" yaml:"version"`
}

func (sb *Superblock) Info() Info {
	return Info{
		PageSize:           int(sb.PageSize),
		PagesPerCluster:    int(sb.PagesPerCluster),
		PagesPerEraseBlock: int(sb.PagesPerEraseBlock),
		ClustersPerCard:    int(sb.ClustersPerCard),
		AllocatableOffset:  int(sb.AllocatableClusterOffset),
		AllocatableLimit:   sb.AllocatableClusterLimit(),
		RootDirCluster:     int(sb.RootDirCluster),
		ECC:                sb.HasECC,
		Version:            string(bytes.TrimRight(sb.Version[:], "\x00")),
	}
}
