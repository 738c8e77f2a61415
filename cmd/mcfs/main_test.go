package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"gopkg.in/yaml.v3"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/image"
)

// 2018-04-20 22:37:42 JST
var testTime = time.Date(2018, 4, 20, 13, 37, 42, 0, time.UTC)

const smallCard = `
ecc = true
page_size = 512
pages_per_erase_block = 16
pages_per_card = 1024
`

type result struct {
	code   int
	stdout string
	stderr string
}

func newFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	err := afero.WriteFile(fs, "/home/test/.config/mcfs/mcfs.toml", []byte(smallCard), 0600)
	require.Nil(t, err)
	return fs
}

func mcfsRun(fs afero.Fs, args ...string) result {
	var stdout, stderr bytes.Buffer
	color.NoColor = true
	a := newApp(fs, "/home/test", &stdout, &stderr)
	a.clock = mcfs.FixedClock(testTime)
	a.location = time.UTC
	code := a.run(args)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// ok runs a command that must succeed without writing to stderr.
func ok(t *testing.T, fs afero.Fs, args ...string) string {
	t.Helper()
	r := mcfsRun(fs, args...)
	require.Equal(t, "", r.stderr, args)
	require.Equal(t, 0, r.code, args)
	return r.stdout
}

func formatted(t *testing.T) afero.Fs {
	fs := newFs(t)
	require.Equal(t, "", ok(t, fs, "-i", "mc.ps2", "format"))
	return fs
}

func iconSys(t *testing.T, line1, line2 string) []byte {
	enc := japanese.ShiftJIS.NewEncoder()
	first, err := enc.Bytes([]byte(line1))
	require.Nil(t, err)
	second, err := enc.Bytes([]byte(line2))
	require.Nil(t, err)
	data := make([]byte, 964)
	copy(data, "PS2D")
	binary.LittleEndian.PutUint16(data[6:], uint16(len(first)))
	copy(data[0xC0:], append(first, second...))
	return data
}

func TestFormat(t *testing.T) {
	fs := formatted(t)
	info, err := fs.Stat("mc.ps2")
	require.Nil(t, err)
	require.Equal(t, int64(540672), info.Size())

	require.Equal(t, "rwx--d----+----       2 2018-04-20 13:37:42 .\n"+
		"-wx--d----+--H-       0 2018-04-20 13:37:42 ..\n",
		ok(t, fs, "-i", "mc.ps2", "ls"))

	r := mcfsRun(fs, "-i", "mc.ps2", "format")
	require.Equal(t, 1, r.code)
	require.Equal(t, "mc.ps2: image exists, use --force to overwrite: file exists\n", r.stderr)
	ok(t, fs, "-i", "mc.ps2", "format", "--force", "--no-ecc")
	info, err = fs.Stat("mc.ps2")
	require.Nil(t, err)
	require.Equal(t, int64(524288), info.Size())
}

func TestAddExtract(t *testing.T) {
	fs := formatted(t)
	require.Nil(t, afero.WriteFile(fs, "helloworld.txt", []byte("hello, world\n"), 0644))

	require.Equal(t, "", ok(t, fs, "-i", "mc.ps2", "add", "helloworld.txt"))
	require.Equal(t, "rwx--d----+----       3 2018-04-20 13:37:42 .\n"+
		"-wx--d----+--H-       0 2018-04-20 13:37:42 ..\n"+
		"rwx-f-----+----      13 2018-04-20 13:37:42 helloworld.txt\n",
		ok(t, fs, "-i", "mc.ps2", "ls"))

	require.Equal(t, "", ok(t, fs, "-i", "mc.ps2", "extract", "-o", "out.txt", "helloworld.txt"))
	data, err := afero.ReadFile(fs, "out.txt")
	require.Nil(t, err)
	require.Equal(t, "hello, world\n", string(data))

	require.Equal(t, "hello, world\n", ok(t, fs, "-i", "mc.ps2", "extract", "-p", "helloworld.txt"))

	r := mcfsRun(fs, "-i", "mc.ps2", "extract", "-o", "x", "a", "b")
	require.Equal(t, 1, r.code)

	r = mcfsRun(fs, "-i", "mc.ps2", "extract", "missing")
	require.Equal(t, 1, r.code)
	require.Equal(t, "mc.ps2: missing: no such file or directory\n", r.stderr)
}

func TestAddDirectory(t *testing.T) {
	fs := formatted(t)
	require.Nil(t, afero.WriteFile(fs, "saves/BESCES-50501REZ/icon.sys", []byte("icon"), 0644))
	require.Nil(t, afero.WriteFile(fs, "saves/BESCES-50501REZ/BESCES-50501REZ", []byte("data"), 0644))
	require.Nil(t, afero.WriteFile(fs, "readme", []byte("readme"), 0644))

	ok(t, fs, "-i", "mc.ps2", "add", "saves/BESCES-50501REZ")
	ok(t, fs, "-i", "mc.ps2", "add", "-d", "BESCES-50501REZ", "readme")

	out := ok(t, fs, "-i", "mc.ps2", "ls", "BESCES-50501REZ")
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		names = append(names, fields[len(fields)-1])
	}
	require.Equal(t, []string{".", "..", "BESCES-50501REZ", "icon.sys", "readme"}, names)

	out = ok(t, fs, "-i", "mc.ps2", "ls", "-R")
	require.True(t, strings.HasPrefix(out, "/:\n"))
	require.Contains(t, out, "\n/BESCES-50501REZ:\n")
}

func TestCheck(t *testing.T) {
	fs := formatted(t)
	require.Equal(t, "No errors found.\n", ok(t, fs, "-i", "mc.ps2", "check"))

	out := ok(t, fs, "-i", "mc.ps2", "check", "--output", "yaml")
	var report map[string]interface{}
	require.Nil(t, yaml.Unmarshal([]byte(out), &report))
	require.Equal(t, "mc.ps2", report["image"])
	require.Empty(t, report["findings"])

	out = ok(t, fs, "-i", "mc.ps2", "check", "--output", "toml")
	require.Contains(t, out, "mc.ps2")

	r := mcfsRun(fs, "-i", "mc.ps2", "check", "--output", "json")
	require.Equal(t, 1, r.code)
}

func TestCheckRootDamaged(t *testing.T) {
	fs := formatted(t)
	f, err := fs.OpenFile("mc.ps2", os.O_RDWR, 0)
	require.Nil(t, err)
	// name of the root "." record: cluster 11, two pages of 528 bytes
	_, err = f.WriteAt([]byte("\x13\x37"), 11*2*528+0x40)
	require.Nil(t, err)
	require.Nil(t, f.Close())

	r := mcfsRun(fs, "-i", "mc.ps2", "check")
	require.Equal(t, 1, r.code)
	require.Equal(t, "", r.stdout)
	require.Equal(t, "mc.ps2: root directory damaged\n", r.stderr)
}

func TestDf(t *testing.T) {
	fs := formatted(t)
	require.Equal(t, "mc.ps2: 495616 bytes free.\n", ok(t, fs, "-i", "mc.ps2", "df"))
}

func TestDir(t *testing.T) {
	fs := formatted(t)
	require.Nil(t, afero.WriteFile(fs, "icon.sys", iconSys(t, "ＳＡＶＥ　ＧＡＭＥ", "ＤＡＴＡ"), 0644))
	ok(t, fs, "-i", "mc.ps2", "mkdir", "SAVE")
	ok(t, fs, "-i", "mc.ps2", "add", "-d", "SAVE", "icon.sys")
	ok(t, fs, "-i", "mc.ps2", "set", "-K", "SAVE")

	img, err := image.OpenImage(fs, "mc.ps2", true)
	require.Nil(t, err)
	free, err := img.Card().DF()
	require.Nil(t, err)
	require.Nil(t, img.Close())

	require.Equal(t, "SAVE                             SAVE GAME\n"+
		"   3KB Protected                 DATA\n"+
		"\n"+
		fmt.Sprintf("%d KB Free\n", free/1024),
		ok(t, fs, "-i", "mc.ps2", "dir", "-a"))
}

func TestDirThousands(t *testing.T) {
	fs := afero.NewMemMapFs()
	ok(t, fs, "-i", "big.ps2", "format")
	require.Equal(t, "8,134 KB Free\n", ok(t, fs, "-i", "big.ps2", "dir"))
}

func TestSet(t *testing.T) {
	fs := formatted(t)
	ok(t, fs, "-i", "mc.ps2", "mkdir", "BESCES-50501REZ")
	require.Equal(t, "", ok(t, fs, "-i", "mc.ps2", "set", "-K", "BESCES-50501REZ"))
	require.Contains(t, ok(t, fs, "-i", "mc.ps2", "ls"), "rwxp-d----+----       2 2018-04-20 13:37:42 BESCES-50501REZ\n")

	ok(t, fs, "-i", "mc.ps2", "set", "--clear", "-K", "-w", "BESCES-50501REZ")
	require.Contains(t, ok(t, fs, "-i", "mc.ps2", "ls"), "r-x--d----+----       2 2018-04-20 13:37:42 BESCES-50501REZ\n")

	ok(t, fs, "-i", "mc.ps2", "set", "--pocketstation", "-X", "2000", "BESCES-50501REZ")
	require.Contains(t, ok(t, fs, "-i", "mc.ps2", "ls"), "r-x--d----+P-H-       2 2018-04-20 13:37:42 BESCES-50501REZ\n")

	r := mcfsRun(fs, "-i", "mc.ps2", "set", "BESCES-50501REZ")
	require.Equal(t, 1, r.code)
	r = mcfsRun(fs, "-i", "mc.ps2", "set", "-X", "0020", "BESCES-50501REZ")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "invalid argument")
}

func TestDeleteRemoveClear(t *testing.T) {
	fs := formatted(t)
	require.Nil(t, afero.WriteFile(fs, "data", []byte("data"), 0644))
	for _, dir := range []string{"A", "B", "C"} {
		ok(t, fs, "-i", "mc.ps2", "mkdir", dir)
		ok(t, fs, "-i", "mc.ps2", "add", "-d", dir, "data")
	}

	r := mcfsRun(fs, "-i", "mc.ps2", "delete", "A")
	require.Equal(t, 1, r.code)
	require.Equal(t, "mc.ps2: A: directory not empty\n", r.stderr)

	require.Equal(t, "", ok(t, fs, "-i", "mc.ps2", "delete", "A/data", "A"))
	require.Equal(t, "", ok(t, fs, "-i", "mc.ps2", "remove", "B"))
	require.NotContains(t, ok(t, fs, "-i", "mc.ps2", "ls"), " B\n")

	ok(t, fs, "-i", "mc.ps2", "mkdir", "D")
	require.Equal(t, "", ok(t, fs, "-i", "mc.ps2", "clear", "-x", "C"))
	out := ok(t, fs, "-i", "mc.ps2", "ls")
	require.Contains(t, out, " C\n")
	require.NotContains(t, out, " D\n")
	require.Equal(t, "No errors found.\n", ok(t, fs, "-i", "mc.ps2", "check"))
}

func TestNoSpaceLeavesImage(t *testing.T) {
	fs := formatted(t)
	require.Nil(t, afero.WriteFile(fs, "big", make([]byte, 600*1024), 0644))
	before, err := afero.ReadFile(fs, "mc.ps2")
	require.Nil(t, err)

	r := mcfsRun(fs, "-i", "mc.ps2", "add", "big")
	require.Equal(t, 1, r.code)
	require.Equal(t, "mc.ps2: /big: no space left on memory card\n", r.stderr)

	after, err := afero.ReadFile(fs, "mc.ps2")
	require.Nil(t, err)
	require.True(t, bytes.Equal(before, after))
}

func TestInfo(t *testing.T) {
	fs := formatted(t)
	out := ok(t, fs, "-i", "mc.ps2", "info")
	require.True(t, strings.HasPrefix(out, "mc.ps2 (540672 bytes)\n"))
	require.Contains(t, out, "ecc:                   true\n")
	require.Contains(t, out, "bytes free:            495616\n")

	out = ok(t, fs, "-i", "mc.ps2", "info", "--output", "yaml")
	var report struct {
		Size     int64 `yaml:"size"`
		Geometry struct {
			PageSize int  `yaml:"page_size"`
			ECC      bool `yaml:"ecc"`
		} `yaml:"geometry"`
	}
	require.Nil(t, yaml.Unmarshal([]byte(out), &report))
	require.Equal(t, int64(540672), report.Size)
	require.Equal(t, 512, report.Geometry.PageSize)
	require.True(t, report.Geometry.ECC)
}

func TestRewrite(t *testing.T) {
	fs := formatted(t)
	require.Nil(t, afero.WriteFile(fs, "data", bytes.Repeat([]byte("z"), 2000), 0644))
	ok(t, fs, "-i", "mc.ps2", "mkdir", "SAVE")
	ok(t, fs, "-i", "mc.ps2", "add", "-d", "SAVE", "data")

	require.Equal(t, "", ok(t, fs, "-i", "mc.ps2", "rewrite", "--no-ecc", "plain.ps2"))
	info, err := fs.Stat("plain.ps2")
	require.Nil(t, err)
	require.Equal(t, int64(524288), info.Size())
	require.Equal(t, ok(t, fs, "-i", "mc.ps2", "ls", "SAVE"), ok(t, fs, "-i", "plain.ps2", "ls", "SAVE"))
	require.Equal(t, "No errors found.\n", ok(t, fs, "-i", "plain.ps2", "check"))
}

func TestImageSetting(t *testing.T) {
	fs := formatted(t)

	r := mcfsRun(fs, "ls")
	require.Equal(t, 1, r.code)
	require.Equal(t, "mcfs: no memory card image given, use -i\n", r.stderr)

	t.Setenv("MCFS_IMAGE", "mc.ps2")
	require.Equal(t, "mc.ps2: 495616 bytes free.\n", ok(t, fs, "df"))

	require.Nil(t, afero.WriteFile(fs, "other.yaml", []byte("image: missing.ps2\n"), 0600))
	t.Setenv("MCFS_IMAGE", "")
	r = mcfsRun(fs, "--config", "other.yaml", "df")
	require.Equal(t, 1, r.code)
	require.True(t, strings.HasPrefix(r.stderr, "missing.ps2: "))
}
