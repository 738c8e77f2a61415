package card

import (
	"errors"
	"fmt"

	"github.com/rstms/mcfs"
)

// checker accumulates findings while walking the directory tree. owner
// maps every cluster reached through a chain to the path that uses it.
type checker struct {
	fs       *FileSystem
	owner    map[uint32]string
	findings []mcfs.Finding
}

func (c *checker) report(kind mcfs.FindingKind, path, format string, args ...interface{}) {
	c.findings = append(c.findings, mcfs.Finding{
		Kind:    kind,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

// Check sweeps the whole card and returns every problem found. It only
// reads; nothing is repaired. A damaged root directory is reported
// alone since nothing below it can be trusted.
func (fs *FileSystem) Check() ([]mcfs.Finding, error) {
	c := &checker{
		fs:    fs,
		owner: make(map[uint32]string),
	}
	root, err := fs.rootNode()
	if err != nil {
		logger.Printf("check: %v", err)
		c.report(mcfs.FindingRootDamaged, "", "root directory damaged")
		return c.findings, nil
	}
	c.checkFree()
	c.checkDir(root)
	c.checkLost()
	return c.findings, nil
}

func (c *checker) checkFree() {
	scanned, errs := c.fs.fat.scan()
	for _, err := range errs {
		c.report(mcfs.FindingUnreadable, "", "allocation table: %v", err)
	}
	if counted := c.fs.fat.FreeCount(); scanned != counted {
		c.report(mcfs.FindingFreeCount, "", "free cluster count %d does not match allocation table (%d free)", counted, scanned)
	}
}

// claim records path as the owner of chain. It reports false when a
// cluster already belongs to another chain.
func (c *checker) claim(path string, chain []uint32) bool {
	ok := true
	for _, n := range chain {
		if other, found := c.owner[n]; found {
			c.report(mcfs.FindingCrossLinked, path, "cluster %d is also used by %s", n, other)
			ok = false
			continue
		}
		c.owner[n] = path
	}
	return ok
}

func (c *checker) chain(path string, head uint32) ([]uint32, bool) {
	chain, err := c.fs.fat.Chain(head)
	switch {
	case errors.Is(err, mcfs.ErrCorruptPage):
		c.report(mcfs.FindingUnreadable, path, "%v", err)
	case err != nil:
		c.report(mcfs.FindingBadChain, path, "%v", err)
	}
	claimed := c.claim(path, chain)
	return chain, err == nil && claimed
}

func (c *checker) checkDir(n *node) {
	dir, err := c.fs.openDir(n)
	if err != nil {
		c.report(mcfs.FindingUnreadable, n.path, "%v", err)
		return
	}
	chain, ok := c.chain(n.path, dir.first)
	if !ok {
		return
	}
	if want := divRoundUp(dir.length*DirentSize, ClusterSize); len(chain) != want {
		c.report(mcfs.FindingLength, n.path, "%d records stored in %d clusters, expected %d", dir.length, len(chain), want)
		if len(chain) < want {
			return
		}
	}

	for i := 0; i < dir.length; i++ {
		e, err := c.fs.readRecord(location{dir.first, i})
		if err != nil {
			c.report(mcfs.FindingUnreadable, n.path, "record %d: %v", i, err)
			continue
		}
		switch {
		case i == 0:
			c.checkSelf(n, e)
		case i == 1:
			if e.Name != ".." {
				c.report(mcfs.FindingBackReference, n.path, "second record is %q, not \"..\"", e.Name)
			}
		case !e.Exists():
		case e.IsDir():
			c.checkDir(&node{entry: e, parent: dir, index: i, path: joinPath(n.path, e.Name)})
		default:
			c.checkFile(joinPath(n.path, e.Name), e)
		}
	}
}

// checkSelf verifies the "." record of a subdirectory points back at
// the record describing the directory.
func (c *checker) checkSelf(n *node, e mcfs.DirEntry) {
	if n.parent == nil {
		return
	}
	if e.Name != "." || !e.IsDir() {
		c.report(mcfs.FindingBackReference, n.path, "first record is %q, not \".\"", e.Name)
		return
	}
	if e.Cluster != n.parent.first || e.Parent != uint32(n.index) {
		c.report(mcfs.FindingBackReference, n.path,
			"\".\" points at record %d of cluster %d, expected record %d of cluster %d",
			e.Parent, e.Cluster, n.index, n.parent.first)
	}
}

func (c *checker) checkFile(path string, e mcfs.DirEntry) {
	if e.Cluster == ChainEnd {
		if e.Length != 0 {
			c.report(mcfs.FindingLength, path, "%d bytes but no clusters", e.Length)
		}
		return
	}
	chain, ok := c.chain(path, e.Cluster)
	if !ok {
		return
	}
	if want := divRoundUp(int(e.Length), ClusterSize); len(chain) != want {
		c.report(mcfs.FindingLength, path, "%d bytes stored in %d clusters, expected %d", e.Length, len(chain), want)
	}
}

// checkLost reports allocated clusters no chain reached.
func (c *checker) checkLost() {
	lost := 0
	first := uint32(0)
	for n := uint32(0); n < c.fs.fat.Limit(); n++ {
		e, err := c.fs.fat.Get(n)
		if err != nil {
			// reported by checkFree
			n = c.fs.fat.lastInCluster(n)
			continue
		}
		if e.Kind == Free {
			continue
		}
		if _, ok := c.owner[n]; !ok {
			if lost == 0 {
				first = n
			}
			lost++
		}
	}
	if lost > 0 {
		c.report(mcfs.FindingLostClusters, "", "%d allocated clusters are not used by any file, first is %d", lost, first)
	}
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
