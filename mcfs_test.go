package mcfs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeString(t *testing.T) {
	require.Equal(t, "rwx--d----+----", DefaultDirMode.String())
	require.Equal(t, "rwx-f-----+----", DefaultFileMode.String())
	require.Equal(t, "-wx--d----+--H-", ParentDirMode.String())
	require.Equal(t, "rwx--d-------H-", (ModeRWX | ModeDir | ModeHidden | ModeExists).String())
	require.Equal(t, "---p-----------", ModeProtected.String())
	require.Equal(t, "---------------", Mode(0).String())
}

func TestModePredicates(t *testing.T) {
	assert.True(t, DefaultDirMode.IsDir())
	assert.False(t, DefaultDirMode.IsFile())
	assert.True(t, DefaultFileMode.IsFile())
	assert.True(t, DefaultFileMode.Exists())
	assert.False(t, (DefaultFileMode &^ ModeExists).Exists())
	assert.True(t, ParentDirMode.IsHidden())
	assert.True(t, (ModeProtected | ModeFile).IsProtected())
}

func TestAttrChanges(t *testing.T) {
	c := AttrChanges{Set: ModeProtected, Clear: ModeWrite}
	require.True(t, c.Valid())
	require.Equal(t, ModeRead|ModeExecute|ModeProtected|ModeFile|Mode0400|ModeExists, c.Apply(DefaultFileMode))
	require.False(t, AttrChanges{Clear: ModeDir}.Valid())
	require.False(t, AttrChanges{Set: ModeExists}.Valid())
}

func TestTimestampConversion(t *testing.T) {
	utc := time.Date(2018, 4, 20, 13, 37, 42, 0, time.UTC)
	ts := FromTime(utc)
	require.Equal(t, Timestamp{Sec: 42, Min: 37, Hour: 22, Day: 20, Month: 4, Year: 2018}, ts)
	require.True(t, ts.Time().Equal(utc))

	b := make([]byte, TimestampSize)
	ts.Encode(b)
	require.Equal(t, []byte{0, 42, 37, 22, 20, 4, 0xE2, 0x07}, b)
	require.Equal(t, ts, DecodeTimestamp(b))
}

func TestTimestampDayRollover(t *testing.T) {
	ts := FromTime(time.Date(2018, 12, 31, 20, 0, 0, 0, time.UTC))
	require.Equal(t, Timestamp{Hour: 5, Day: 1, Month: 1, Year: 2019}, ts)
}

func TestTimestampZero(t *testing.T) {
	require.True(t, Timestamp{}.IsZero())
	require.True(t, Timestamp{}.Time().IsZero())
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := FixedClock(at)
	require.Equal(t, at, clock())
	require.Equal(t, at, clock())
}

func TestMemDisk(t *testing.T) {
	d := NewMemDisk(make([]byte, 16))
	n, err := d.WriteAt([]byte("abcd"), 4)
	require.Nil(t, err)
	require.Equal(t, 4, n)
	buf := make([]byte, 4)
	_, err = d.ReadAt(buf, 4)
	require.Nil(t, err)
	require.Equal(t, "abcd", string(buf))
	require.Equal(t, int64(16), d.Len())

	_, err = d.ReadAt(buf, 14)
	require.True(t, errors.Is(err, ErrIO))
	_, err = d.WriteAt(buf, -1)
	require.True(t, errors.Is(err, ErrIO))
}

func TestPathError(t *testing.T) {
	err := &PathError{Op: "delete", Path: "SAVE", Err: ErrNotEmpty}
	require.Equal(t, "SAVE: directory not empty", err.Error())
	require.True(t, errors.Is(err, ErrNotEmpty))
	err = &PathError{Op: "format", Err: ErrNoSpace}
	require.Equal(t, "format: no space left on memory card", err.Error())
}

func TestFindingUnwrap(t *testing.T) {
	f := Finding{Kind: FindingCrossLinked, Path: "/A", Message: "cluster 5 cross-linked"}
	require.Equal(t, "/A: cluster 5 cross-linked", f.Error())
	require.True(t, errors.Is(f, ErrCorruptChain))
	require.True(t, errors.Is(Finding{Kind: FindingRootDamaged}, ErrConsistency))
	require.Equal(t, "root-damaged", FindingRootDamaged.String())
}
