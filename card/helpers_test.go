package card

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rstms/mcfs"
)

// 2018-04-20 22:37:42 JST
var fixedTime = time.Date(2018, 4, 20, 13, 37, 42, 0, time.UTC)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time {
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.t = t
}

// smallParams is a 512 KB card: 485 allocatable clusters.
func smallParams() Params {
	return Params{
		WithECC:            true,
		PageSize:           512,
		PagesPerEraseBlock: 16,
		PagesPerCard:       1024,
	}
}

func newCard(t *testing.T, p Params, opts ...Option) (*FileSystem, *mcfs.MemDisk) {
	t.Helper()
	disk := mcfs.NewMemDisk(make([]byte, p.ImageSize()))
	opts = append([]Option{WithClock(mcfs.FixedClock(fixedTime))}, opts...)
	fs, err := Format(disk, p, opts...)
	require.Nil(t, err)
	return fs, disk
}

func payload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31 + i/251)
	}
	return data
}

func lsLines(t *testing.T, fs *FileSystem, p string) []string {
	t.Helper()
	entries, err := fs.List(p)
	require.Nil(t, err)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %7d %s %s", e.Mode, e.Length,
			e.Modified.Time().UTC().Format("2006-01-02 15:04:05"), e.Name))
	}
	return lines
}

func names(t *testing.T, fs *FileSystem, p string) []string {
	t.Helper()
	entries, err := fs.List(p)
	require.Nil(t, err)
	var ret []string
	for _, e := range entries {
		ret = append(ret, e.Name)
	}
	return ret
}

func requireClean(t *testing.T, fs *FileSystem) {
	t.Helper()
	findings, err := fs.Check()
	require.Nil(t, err)
	require.Empty(t, findings)
}
