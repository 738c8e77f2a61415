package card

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/multierr"

	"github.com/rstms/mcfs"
)

const (
	fatAllocatedBit = 0x80000000
	fatClusterMask  = 0x7FFFFFFF
	fatChainEnd     = 0xFFFFFFFF
	fatFree         = 0x7FFFFFFF
)

// ChainEnd is stored as the first cluster of an empty file.
const ChainEnd = fatChainEnd

// EntryKind is the state of an allocatable cluster.
type EntryKind int

const (
	Free EntryKind = iota
	EndOfChain
	Next
)

// FATEntry is the decoded FAT entry of one allocatable cluster.
type FATEntry struct {
	Kind EntryKind
	// Next is the following cluster when Kind is Next.
	Next uint32
}

func decodeFATEntry(v uint32) FATEntry {
	switch {
	case v&fatAllocatedBit == 0:
		return FATEntry{Kind: Free}
	case v&fatClusterMask == fatClusterMask:
		return FATEntry{Kind: EndOfChain}
	}
	return FATEntry{Kind: Next, Next: v & fatClusterMask}
}

func (e FATEntry) value() uint32 {
	switch e.Kind {
	case Free:
		return fatFree
	case EndOfChain:
		return fatChainEnd
	}
	return fatAllocatedBit | e.Next&fatClusterMask
}

// FAT is the two level allocation table. Indirect FAT clusters listed in
// the superblock hold the numbers of the FAT clusters, which hold one
// 32 bit entry per allocatable cluster. Cluster numbers handed out by
// the FAT are relative to the allocatable cluster offset.
type FAT struct {
	sb    *Superblock
	pages *Pages
	limit uint32
	epc   uint32

	free      uint32
	savedFree uint32
	cache     map[uint32][]byte
}

// DecodeFAT opens the allocation table and seeds the free counter with
// a full scan. Entries held in unreadable FAT clusters are not counted
// as free; operations reaching them fail and Check reports them.
func DecodeFAT(sb *Superblock, pages *Pages) (*FAT, error) {
	f := &FAT{
		sb:    sb,
		pages: pages,
		limit: uint32(sb.AllocatableClusterLimit()),
		epc:   uint32(sb.EntriesPerCluster()),
		cache: make(map[uint32][]byte),
	}
	free, errs := f.scan()
	for _, err := range errs {
		logger.Printf("allocation table: %v", err)
	}
	f.free = free
	return f, nil
}

// Limit is the number of allocatable clusters.
func (f *FAT) Limit() uint32 {
	return f.limit
}

// FreeCount returns the live free cluster counter.
func (f *FAT) FreeCount() uint32 {
	return f.free
}

// ScanFree counts the free clusters by reading every entry.
func (f *FAT) ScanFree() (uint32, error) {
	free, errs := f.scan()
	if len(errs) > 0 {
		return 0, multierr.Combine(errs...)
	}
	return free, nil
}

// scan counts the free entries it can read. The entries of a FAT
// cluster that fails to read are skipped, with one error per cluster.
func (f *FAT) scan() (uint32, []error) {
	var free uint32
	var errs []error
	for n := uint32(0); n < f.limit; n++ {
		e, err := f.Get(n)
		if err != nil {
			last := f.lastInCluster(n)
			errs = append(errs, fmt.Errorf("entries %d-%d: %w", n, last, err))
			n = last
			continue
		}
		if e.Kind == Free {
			free++
		}
	}
	return free, errs
}

// lastInCluster returns the last entry stored in the same FAT cluster
// as entry n.
func (f *FAT) lastInCluster(n uint32) uint32 {
	last := (n/f.epc+1)*f.epc - 1
	if last >= f.limit {
		last = f.limit - 1
	}
	return last
}

func (f *FAT) readCluster(n uint32) ([]byte, error) {
	if buf, ok := f.cache[n]; ok {
		return buf, nil
	}
	buf, err := f.pages.ReadCluster(n)
	if err != nil {
		return nil, err
	}
	f.cache[n] = buf
	return buf, nil
}

func (f *FAT) locate(n uint32) (uint32, int, error) {
	if n >= f.limit {
		return 0, 0, fmt.Errorf("cluster %d out of range: %w", n, mcfs.ErrCorruptChain)
	}
	fatOffset := n % f.epc
	double := n / f.epc
	ifc := f.sb.IndirectFATClusters[double/f.epc]
	indirect, err := f.readCluster(ifc)
	if err != nil {
		return 0, 0, err
	}
	fatCluster := binary.LittleEndian.Uint32(indirect[(double%f.epc)*4:])
	if fatCluster >= f.sb.ClustersPerCard {
		return 0, 0, fmt.Errorf("FAT cluster %d out of range: %w", fatCluster, mcfs.ErrCorruptChain)
	}
	return fatCluster, int(fatOffset) * 4, nil
}

// Get returns the entry of allocatable cluster n.
func (f *FAT) Get(n uint32) (FATEntry, error) {
	fatCluster, offset, err := f.locate(n)
	if err != nil {
		return FATEntry{}, err
	}
	buf, err := f.readCluster(fatCluster)
	if err != nil {
		return FATEntry{}, err
	}
	return decodeFATEntry(binary.LittleEndian.Uint32(buf[offset:])), nil
}

// Set stores the entry of allocatable cluster n. The free counter is
// not touched.
func (f *FAT) Set(n uint32, e FATEntry) error {
	fatCluster, offset, err := f.locate(n)
	if err != nil {
		return err
	}
	buf, err := f.readCluster(fatCluster)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[offset:], e.value())
	return f.pages.WriteCluster(fatCluster, buf)
}

// Chain returns the clusters of the chain starting at head. On error
// the clusters visited so far are returned with it.
func (f *FAT) Chain(head uint32) ([]uint32, error) {
	var chain []uint32
	n := head
	for {
		if n >= f.limit {
			return chain, fmt.Errorf("cluster %d out of range: %w", n, mcfs.ErrCorruptChain)
		}
		if uint32(len(chain)) >= f.limit {
			return chain, fmt.Errorf("cycle in chain at %d: %w", head, mcfs.ErrCorruptChain)
		}
		e, err := f.Get(n)
		if err != nil {
			return chain, err
		}
		chain = append(chain, n)
		switch e.Kind {
		case Free:
			return chain, fmt.Errorf("cluster %d in chain at %d is free: %w", n, head, mcfs.ErrCorruptChain)
		case EndOfChain:
			return chain, nil
		}
		n = e.Next
	}
}

// AllocateChain takes count free clusters, lowest numbers first, and
// links them into a chain.
func (f *FAT) AllocateChain(count int) ([]uint32, error) {
	if count <= 0 {
		return nil, nil
	}
	if uint32(count) > f.free {
		return nil, fmt.Errorf("need %d clusters, %d free: %w", count, f.free, mcfs.ErrNoSpace)
	}
	chain := make([]uint32, 0, count)
	for n := uint32(0); n < f.limit && len(chain) < count; n++ {
		e, err := f.Get(n)
		if err != nil {
			return nil, err
		}
		if e.Kind == Free {
			chain = append(chain, n)
		}
	}
	if len(chain) < count {
		return nil, fmt.Errorf("need %d clusters, found %d free: %w", count, len(chain), mcfs.ErrNoSpace)
	}
	for i, n := range chain {
		e := FATEntry{Kind: EndOfChain}
		if i+1 < len(chain) {
			e = FATEntry{Kind: Next, Next: chain[i+1]}
		}
		if err := f.Set(n, e); err != nil {
			return nil, err
		}
	}
	f.free -= uint32(count)
	logger.Printf("allocated chain %v", chain)
	return chain, nil
}

// ExtendChain allocates count clusters and links them after tail.
func (f *FAT) ExtendChain(tail uint32, count int) ([]uint32, error) {
	chain, err := f.AllocateChain(count)
	if err != nil || len(chain) == 0 {
		return chain, err
	}
	if err := f.Set(tail, FATEntry{Kind: Next, Next: chain[0]}); err != nil {
		return nil, err
	}
	return chain, nil
}

// FreeChain releases every cluster of the chain starting at head. The
// whole chain is validated before anything is released.
func (f *FAT) FreeChain(head uint32) error {
	chain, err := f.Chain(head)
	if err != nil {
		return err
	}
	for _, n := range chain {
		if err := f.Set(n, FATEntry{Kind: Free}); err != nil {
			return err
		}
	}
	f.free += uint32(len(chain))
	logger.Printf("freed chain %v", chain)
	return nil
}

// mark records the free counter at the start of an operation.
func (f *FAT) mark() {
	f.savedFree = f.free
}

// reset drops cached FAT clusters and restores the counter saved by
// mark, after the pages beneath have been rolled back.
func (f *FAT) reset() {
	f.free = f.savedFree
	f.cache = make(map[uint32][]byte)
}
