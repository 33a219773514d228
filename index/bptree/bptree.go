// Package bptree implements a disk-backed B+ tree mapping int32 keys to
// record locators.
//
// Every node occupies one 1 KB page of a single page file; page 0 holds the
// tree metadata (see meta.go). Search descends from the root through
// non-leaf nodes to the leaf that owns the key range. Insertion descends the
// same way while recording the visited path, then unwinds it to propagate
// splits upward; when a split outgrows the old root, a fresh root page is
// appended and the old root becomes its left child, which avoids rewriting
// the subtree to keep the root at a fixed page.
package bptree

import (
	"errors"

	"github.com/minirel/btindex/index"
	"github.com/minirel/btindex/index/btpage"
	"github.com/minirel/btindex/pager"
)

// Cursor points at one entry of one leaf. It is a transient value with no
// back-reference to the index; callers pass it to ReadForward to walk a leaf
// entry by entry.
type Cursor struct {
	Pid index.PageID // page id of the leaf node
	Eid int          // entry number inside the node
}

// BTreeIndex is a B+ tree index over a single page file.
type BTreeIndex struct {
	pf *pager.Pager
}

var _ index.Index = (*BTreeIndex)(nil)

// Open opens the index file in the given mode. Write mode creates the file
// if it does not exist; the metadata page is written lazily by the first
// Insert.
func Open(name string, mode pager.Mode) (*BTreeIndex, error) {
	pf, err := pager.Open(name, mode, pager.DefaultCachePages)
	if err != nil {
		return nil, err
	}
	return &BTreeIndex{pf: pf}, nil
}

// Close closes the underlying page file.
func (t *BTreeIndex) Close() error {
	return t.pf.Close()
}

// Insert adds (key, rid) to the index. Keys are assumed unique; duplicate
// insertion is not detected.
func (t *BTreeIndex) Insert(key int32, rid index.RecordID) error {
	if t.initState() <= 0 {
		return t.insertFirst(key, rid)
	}
	if t.TreeHeight() == 0 {
		return t.insertLeafRoot(key, rid)
	}
	return t.insertDescend(key, rid)
}

// insertFirst handles the very first insertion: reserve page 0 for the
// metadata so every node lives in a uniformly formatted page, then put the
// first leaf in page 1.
func (t *BTreeIndex) insertFirst(key int32, rid index.RecordID) error {
	var meta pager.Page
	if err := t.pf.Write(metaPid, &meta); err != nil {
		return err
	}
	if err := t.setInitState(1); err != nil {
		return err
	}

	var root btpage.LeafNode
	if err := root.Insert(key, rid); err != nil {
		return err
	}
	if err := root.SetNextNodePtr(0); err != nil {
		return err
	}
	if err := root.Write(1, t.pf); err != nil {
		return err
	}

	if err := t.setRootPid(1); err != nil {
		return err
	}
	return t.setTreeHeight(0)
}

// insertLeafRoot handles a tree whose root is still a leaf. On overflow the
// leaf splits and a one-key non-leaf root is promoted above the pair.
func (t *BTreeIndex) insertLeafRoot(key int32, rid index.RecordID) error {
	rootPid := t.RootPid()
	var root btpage.LeafNode
	if err := root.Read(rootPid, t.pf); err != nil {
		return err
	}

	err := root.Insert(key, rid)
	if err == nil {
		return root.Write(rootPid, t.pf)
	}
	if !errors.Is(err, index.ErrNodeFull) {
		return err
	}

	var sibling btpage.LeafNode
	siblingKey, err := root.InsertAndSplit(key, rid, &sibling)
	if err != nil {
		return err
	}
	siblingPid := t.pf.EndPid()
	if err := sibling.SetNextNodePtr(0); err != nil {
		return err
	}
	if err := root.SetNextNodePtr(siblingPid); err != nil {
		return err
	}
	if err := sibling.Write(siblingPid, t.pf); err != nil {
		return err
	}
	if err := root.Write(rootPid, t.pf); err != nil {
		return err
	}

	var newRoot btpage.NonLeafNode
	if err := newRoot.InitializeRoot(rootPid, siblingKey, siblingPid); err != nil {
		return err
	}
	newRootPid := t.pf.EndPid()
	if err := newRoot.Write(newRootPid, t.pf); err != nil {
		return err
	}
	if err := t.setRootPid(newRootPid); err != nil {
		return err
	}
	return t.setTreeHeight(1)
}

// insertDescend handles a multi-level tree: descend to the target leaf
// recording the visited page ids, insert, and unwind splits up the path.
// Parent pointers are never stored in nodes; the explicit path makes the
// upward propagation possible.
func (t *BTreeIndex) insertDescend(key int32, rid index.RecordID) error {
	height := t.TreeHeight()
	path := make([]index.PageID, 0, height+1)
	cur := t.RootPid()
	path = append(path, cur)
	for depth := 0; depth < height; depth++ {
		var node btpage.NonLeafNode
		if err := node.Read(cur, t.pf); err != nil {
			return err
		}
		next, err := node.LocateChildPtr(key)
		if err != nil {
			return err
		}
		cur = next
		path = append(path, cur)
	}

	leafPid := path[len(path)-1]
	var leaf btpage.LeafNode
	if err := leaf.Read(leafPid, t.pf); err != nil {
		return err
	}
	err := leaf.Insert(key, rid)
	if err == nil {
		return leaf.Write(leafPid, t.pf)
	}
	if !errors.Is(err, index.ErrNodeFull) {
		return err
	}

	var sibling btpage.LeafNode
	siblingKey, err := leaf.InsertAndSplit(key, rid, &sibling)
	if err != nil {
		return err
	}
	siblingPid := t.pf.EndPid()
	// The sibling inherits the old next pointer; the split leaf now chains
	// to the sibling.
	if err := sibling.SetNextNodePtr(leaf.NextNodePtr()); err != nil {
		return err
	}
	if err := leaf.SetNextNodePtr(siblingPid); err != nil {
		return err
	}
	if err := sibling.Write(siblingPid, t.pf); err != nil {
		return err
	}
	if err := leaf.Write(leafPid, t.pf); err != nil {
		return err
	}

	// Unwind the path with the pending separator. Each ancestor either
	// absorbs it or splits and forwards a new one.
	pendKey, pendPid := siblingKey, siblingPid
	for d := len(path) - 2; d >= 0; d-- {
		pid := path[d]
		var node btpage.NonLeafNode
		if err := node.Read(pid, t.pf); err != nil {
			return err
		}
		err := node.Insert(pendKey, pendPid)
		if err == nil {
			return node.Write(pid, t.pf)
		}
		if !errors.Is(err, index.ErrNodeFull) {
			return err
		}

		var nodeSibling btpage.NonLeafNode
		midKey, err := node.InsertAndSplit(pendKey, pendPid, &nodeSibling)
		if err != nil {
			return err
		}
		nodeSiblingPid := t.pf.EndPid()
		if err := nodeSibling.Write(nodeSiblingPid, t.pf); err != nil {
			return err
		}
		if err := node.Write(pid, t.pf); err != nil {
			return err
		}
		pendKey, pendPid = midKey, nodeSiblingPid
	}

	// The old root split: promote a fresh root above it.
	var newRoot btpage.NonLeafNode
	if err := newRoot.InitializeRoot(path[0], pendKey, pendPid); err != nil {
		return err
	}
	newRootPid := t.pf.EndPid()
	if err := newRoot.Write(newRootPid, t.pf); err != nil {
		return err
	}
	if err := t.setRootPid(newRootPid); err != nil {
		return err
	}
	return t.setTreeHeight(int32(height) + 1)
}

// Locate runs the standard B+ tree search and points cursor at searchKey's
// entry. On a miss it returns ErrNoSuchRecord with the cursor at the
// smallest key greater than searchKey inside the target leaf (or at the last
// entry when every key is smaller); callers use that position to start range
// scans. On an empty tree the cursor is left untouched.
func (t *BTreeIndex) Locate(searchKey int32, cursor *Cursor) error {
	if t.initState() <= 0 {
		return index.ErrNoSuchRecord
	}

	height := t.TreeHeight()
	cur := t.RootPid()
	for depth := 0; depth < height; depth++ {
		var node btpage.NonLeafNode
		if err := node.Read(cur, t.pf); err != nil {
			return err
		}
		next, err := node.LocateChildPtr(searchKey)
		if err != nil {
			return err
		}
		cur = next
	}

	var leaf btpage.LeafNode
	if err := leaf.Read(cur, t.pf); err != nil {
		return err
	}
	eid, err := leaf.Locate(searchKey)
	cursor.Pid = cur
	cursor.Eid = eid
	return err
}

// ReadForward reads the entry under the cursor and advances the cursor to
// the next entry of the same leaf. Past the last entry it returns
// ErrNoSuchRecord without moving; the caller follows the leaf chain to
// continue a scan.
func (t *BTreeIndex) ReadForward(cursor *Cursor) (int32, index.RecordID, error) {
	var leaf btpage.LeafNode
	if err := leaf.Read(cursor.Pid, t.pf); err != nil {
		return 0, index.RecordID{}, err
	}
	key, rid, err := leaf.ReadEntry(cursor.Eid)
	if err != nil {
		return 0, index.RecordID{}, err
	}
	cursor.Eid++
	return key, rid, nil
}

// Get returns the locator stored under key, ErrNoSuchRecord if absent.
func (t *BTreeIndex) Get(key int32) (index.RecordID, error) {
	var cursor Cursor
	if err := t.Locate(key, &cursor); err != nil {
		return index.RecordID{}, err
	}
	_, rid, err := t.ReadForward(&cursor)
	if err != nil {
		return index.RecordID{}, err
	}
	return rid, nil
}
