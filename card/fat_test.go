package card

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstms/mcfs"
)

func TestDecodeFATEntry(t *testing.T) {
	require.Equal(t, FATEntry{Kind: Free}, decodeFATEntry(0x7FFFFFFF))
	require.Equal(t, FATEntry{Kind: Free}, decodeFATEntry(0))
	require.Equal(t, FATEntry{Kind: EndOfChain}, decodeFATEntry(0xFFFFFFFF))
	require.Equal(t, FATEntry{Kind: Next, Next: 5}, decodeFATEntry(0x80000005))

	require.Equal(t, uint32(0x7FFFFFFF), FATEntry{Kind: Free}.value())
	require.Equal(t, uint32(0xFFFFFFFF), FATEntry{Kind: EndOfChain}.value())
	require.Equal(t, uint32(0x80000005), FATEntry{Kind: Next, Next: 5}.value())
}

func TestFATFreshCard(t *testing.T) {
	fs, _ := newCard(t, smallParams())
	require.Equal(t, uint32(485), fs.fat.Limit())
	require.Equal(t, uint32(484), fs.fat.FreeCount())
	free, err := fs.fat.ScanFree()
	require.Nil(t, err)
	require.Equal(t, uint32(484), free)

	e, err := fs.fat.Get(0)
	require.Nil(t, err)
	require.Equal(t, EndOfChain, e.Kind)
}

func TestFATAllocateFirstFit(t *testing.T) {
	fs, _ := newCard(t, smallParams())
	chain, err := fs.fat.AllocateChain(3)
	require.Nil(t, err)
	require.Equal(t, []uint32{1, 2, 3}, chain)
	require.Equal(t, uint32(481), fs.fat.FreeCount())

	got, err := fs.fat.Chain(1)
	require.Nil(t, err)
	require.Equal(t, chain, got)

	other, err := fs.fat.AllocateChain(2)
	require.Nil(t, err)
	require.Equal(t, []uint32{4, 5}, other)

	require.Nil(t, fs.fat.FreeChain(1))
	require.Equal(t, uint32(482), fs.fat.FreeCount())

	chain, err = fs.fat.AllocateChain(4)
	require.Nil(t, err)
	require.Equal(t, []uint32{1, 2, 3, 6}, chain)

	added, err := fs.fat.ExtendChain(5, 2)
	require.Nil(t, err)
	require.Equal(t, []uint32{7, 8}, added)
	got, err = fs.fat.Chain(4)
	require.Nil(t, err)
	require.Equal(t, []uint32{4, 5, 7, 8}, got)

	scanned, err := fs.fat.ScanFree()
	require.Nil(t, err)
	require.Equal(t, scanned, fs.fat.FreeCount())
}

func TestFATNoSpace(t *testing.T) {
	fs, _ := newCard(t, smallParams())
	free := fs.fat.FreeCount()
	_, err := fs.fat.AllocateChain(int(free) + 1)
	require.True(t, errors.Is(err, mcfs.ErrNoSpace))
	require.Equal(t, free, fs.fat.FreeCount())

	chain, err := fs.fat.AllocateChain(int(free))
	require.Nil(t, err)
	require.Len(t, chain, int(free))
	require.Equal(t, uint32(0), fs.fat.FreeCount())

	_, err = fs.fat.AllocateChain(1)
	require.True(t, errors.Is(err, mcfs.ErrNoSpace))

	chain, err = fs.fat.AllocateChain(0)
	require.Nil(t, err)
	require.Empty(t, chain)
}

func TestFATCorruptChains(t *testing.T) {
	fs, _ := newCard(t, smallParams())

	// cycle
	require.Nil(t, fs.fat.Set(5, FATEntry{Kind: Next, Next: 6}))
	require.Nil(t, fs.fat.Set(6, FATEntry{Kind: Next, Next: 5}))
	_, err := fs.fat.Chain(5)
	require.True(t, errors.Is(err, mcfs.ErrCorruptChain))

	// freeing a bad chain releases nothing
	free := fs.fat.FreeCount()
	require.True(t, errors.Is(fs.fat.FreeChain(5), mcfs.ErrCorruptChain))
	require.Equal(t, free, fs.fat.FreeCount())
	e, err := fs.fat.Get(6)
	require.Nil(t, err)
	require.Equal(t, FATEntry{Kind: Next, Next: 5}, e)

	// link past the end of the table
	require.Nil(t, fs.fat.Set(7, FATEntry{Kind: Next, Next: 100000}))
	_, err = fs.fat.Chain(7)
	require.True(t, errors.Is(err, mcfs.ErrCorruptChain))

	// link to a free cluster
	require.Nil(t, fs.fat.Set(9, FATEntry{Kind: Next, Next: 10}))
	chain, err := fs.fat.Chain(9)
	require.True(t, errors.Is(err, mcfs.ErrCorruptChain))
	require.Equal(t, []uint32{9, 10}, chain)

	_, err = fs.fat.Get(fs.fat.Limit())
	require.True(t, errors.Is(err, mcfs.ErrCorruptChain))
}
