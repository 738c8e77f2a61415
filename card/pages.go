package card

import (
	"fmt"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/ecc"
)

// Pages reads and writes the ECC protected pages of an image. Writes
// made between Begin and Commit are journaled so that Rollback can
// restore the raw bytes of every page the operation touched.
type Pages struct {
	device          mcfs.BlockDevice
	codec           ecc.Codec
	pageSize        int
	spareSize       int
	pagesPerCluster int
	count           int

	journal map[int][]byte
}

// NewPages returns the page layer for a device holding count pages.
// spareSize must be zero for images without ECC.
func NewPages(device mcfs.BlockDevice, codec ecc.Codec, pageSize, spareSize, pagesPerCluster, count int) *Pages {
	return &Pages{
		device:          device,
		codec:           codec,
		pageSize:        pageSize,
		spareSize:       spareSize,
		pagesPerCluster: pagesPerCluster,
		count:           count,
	}
}

func (p *Pages) rawSize() int {
	return p.pageSize + p.spareSize
}

func (p *Pages) offset(index int) int64 {
	return int64(index) * int64(p.rawSize())
}

// ReadPage returns the corrected data of page index.
func (p *Pages) ReadPage(index int) ([]byte, error) {
	if index < 0 || index >= p.count {
		return nil, fmt.Errorf("page %d out of range: %w", index, mcfs.ErrIO)
	}
	raw := make([]byte, p.rawSize())
	if _, err := p.device.ReadAt(raw, p.offset(index)); err != nil {
		return nil, fmt.Errorf("page %d: %w", index, err)
	}
	page, spare := raw[:p.pageSize], raw[p.pageSize:]
	switch p.codec.Check(page, spare) {
	case ecc.Failed:
		return nil, fmt.Errorf("page %d: %w", index, mcfs.ErrCorruptPage)
	case ecc.Corrected:
		logger.Printf("page %d: corrected single bit error", index)
	}
	return page, nil
}

// WritePage stores data, which must be exactly one page long, together
// with its freshly computed spare area.
func (p *Pages) WritePage(index int, data []byte) error {
	if index < 0 || index >= p.count {
		return fmt.Errorf("page %d out of range: %w", index, mcfs.ErrIO)
	}
	if len(data) != p.pageSize {
		return fmt.Errorf("page %d: write of %d bytes: %w", index, len(data), mcfs.ErrInvalidArgument)
	}
	if err := p.save(index); err != nil {
		return err
	}
	raw := make([]byte, p.rawSize())
	copy(raw, data)
	if p.spareSize > 0 {
		copy(raw[p.pageSize:], p.codec.Encode(data))
	}
	if _, err := p.device.WriteAt(raw, p.offset(index)); err != nil {
		return fmt.Errorf("page %d: %w", index, err)
	}
	return nil
}

// ReadCluster returns the data of the absolute cluster n.
func (p *Pages) ReadCluster(n uint32) ([]byte, error) {
	buf := make([]byte, 0, p.pageSize*p.pagesPerCluster)
	first := int(n) * p.pagesPerCluster
	for i := 0; i < p.pagesPerCluster; i++ {
		page, err := p.ReadPage(first + i)
		if err != nil {
			return nil, err
		}
		buf = append(buf, page...)
	}
	return buf, nil
}

// WriteCluster stores data, which must be exactly one cluster long, in
// the absolute cluster n.
func (p *Pages) WriteCluster(n uint32, data []byte) error {
	if len(data) != p.pageSize*p.pagesPerCluster {
		return fmt.Errorf("cluster %d: write of %d bytes: %w", n, len(data), mcfs.ErrInvalidArgument)
	}
	first := int(n) * p.pagesPerCluster
	for i := 0; i < p.pagesPerCluster; i++ {
		if err := p.WritePage(first+i, data[i*p.pageSize:(i+1)*p.pageSize]); err != nil {
			return err
		}
	}
	return nil
}

// Begin starts journaling page writes.
func (p *Pages) Begin() {
	p.journal = make(map[int][]byte)
}

// Commit discards the journal, keeping every write since Begin.
func (p *Pages) Commit() {
	p.journal = nil
}

// Rollback restores every page written since Begin.
func (p *Pages) Rollback() error {
	journal := p.journal
	p.journal = nil
	for index, raw := range journal {
		if _, err := p.device.WriteAt(raw, p.offset(index)); err != nil {
			return fmt.Errorf("rollback page %d: %w", index, err)
		}
	}
	logger.Printf("rolled back %d pages", len(journal))
	return nil
}

func (p *Pages) save(index int) error {
	if p.journal == nil {
		return nil
	}
	if _, ok := p.journal[index]; ok {
		return nil
	}
	raw := make([]byte, p.rawSize())
	if _, err := p.device.ReadAt(raw, p.offset(index)); err != nil {
		return fmt.Errorf("page %d: %w", index, err)
	}
	p.journal[index] = raw
	return nil
}
