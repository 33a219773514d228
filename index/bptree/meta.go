package bptree

import (
	"encoding/binary"

	"github.com/minirel/btindex/index"
	"github.com/minirel/btindex/pager"
)

// Page 0 of the index file carries the tree metadata:
//
//	[0-3]   int32  root page id (0 = none)
//	[4-7]   int32  tree height (0 = single-leaf root)
//	[8-11]  int32  init state: -1 uninitialized, 0 empty, 1 populated
//
// Keeping it inline in the same file makes the index self-describing; no
// second file to open. The tri-state gates which insertion case runs.
const (
	metaPid       = index.PageID(0)
	metaOffRoot   = 0
	metaOffHeight = 4
	metaOffInit   = 8
)

func metaGet(p *pager.Page, off int) int32 {
	return int32(binary.LittleEndian.Uint32(p[off : off+4]))
}

func metaPut(p *pager.Page, off int, v int32) {
	binary.LittleEndian.PutUint32(p[off:off+4], uint32(v))
}

// initState reports -1 while the file holds no metadata page yet, otherwise
// the stored tri-state.
func (t *BTreeIndex) initState() int32 {
	if t.pf.EndPid() == 0 {
		return -1
	}
	var p pager.Page
	if err := t.pf.Read(metaPid, &p); err != nil {
		return -1
	}
	return metaGet(&p, metaOffInit)
}

// RootPid returns the page id of the root node, 0 while the tree is empty.
func (t *BTreeIndex) RootPid() index.PageID {
	if t.initState() <= 0 {
		return 0
	}
	var p pager.Page
	if err := t.pf.Read(metaPid, &p); err != nil {
		return 0
	}
	return metaGet(&p, metaOffRoot)
}

// TreeHeight returns the number of edges from the root to any leaf, -1 while
// the tree is empty.
func (t *BTreeIndex) TreeHeight() int {
	if t.initState() <= 0 {
		return -1
	}
	var p pager.Page
	if err := t.pf.Read(metaPid, &p); err != nil {
		return -1
	}
	return int(metaGet(&p, metaOffHeight))
}

func (t *BTreeIndex) setMeta(off int, v int32) error {
	var p pager.Page
	if err := t.pf.Read(metaPid, &p); err != nil {
		return err
	}
	metaPut(&p, off, v)
	return t.pf.Write(metaPid, &p)
}

func (t *BTreeIndex) setRootPid(pid index.PageID) error { return t.setMeta(metaOffRoot, pid) }
func (t *BTreeIndex) setTreeHeight(h int32) error       { return t.setMeta(metaOffHeight, h) }
func (t *BTreeIndex) setInitState(s int32) error        { return t.setMeta(metaOffInit, s) }
