package btpage

import (
	"github.com/minirel/btindex/index"
	"github.com/minirel/btindex/pager"
)

// NonLeafNode holds a sorted run of (key, child page id) entries plus the
// leftmost child pointer for keys below the first entry. The zero value is a
// valid empty node.
type NonLeafNode struct {
	buf pager.Page
}

// Read loads the node from page pid of pf into the internal buffer.
func (n *NonLeafNode) Read(pid index.PageID, pf *pager.Pager) error {
	if pid < 0 {
		return index.ErrInvalidPid
	}
	return pf.Read(pid, &n.buf)
}

// Write stores the internal buffer to page pid of pf.
func (n *NonLeafNode) Write(pid index.PageID, pf *pager.Pager) error {
	return pf.Write(pid, &n.buf)
}

// KeyCount returns the number of entries in the node.
func (n *NonLeafNode) KeyCount() int {
	return int(getInt32(&n.buf, offKeyCount))
}

func (n *NonLeafNode) setKeyCount(count int) {
	putInt32(&n.buf, offKeyCount, int32(count))
}

// LeftmostChildPtr returns the child covering keys below the first entry key.
func (n *NonLeafNode) LeftmostChildPtr() index.PageID {
	return getInt32(&n.buf, offLeftmost)
}

func (n *NonLeafNode) setLeftmostChildPtr(pid index.PageID) {
	putInt32(&n.buf, offLeftmost, pid)
}

func nonLeafEntryOff(i int) int {
	return offEntries + i*nonLeafEntrySize
}

func (n *NonLeafNode) keyAt(i int) int32 {
	return getInt32(&n.buf, nonLeafEntryOff(i))
}

func (n *NonLeafNode) childAt(i int) index.PageID {
	return getInt32(&n.buf, nonLeafEntryOff(i)+4)
}

func (n *NonLeafNode) putEntry(i int, key int32, child index.PageID) {
	off := nonLeafEntryOff(i)
	putInt32(&n.buf, off, key)
	putInt32(&n.buf, off+4, child)
}

func (n *NonLeafNode) insertIdx(key int32) int {
	count := n.KeyCount()
	for i := 0; i < count; i++ {
		if n.keyAt(i) > key {
			return i
		}
	}
	return count
}

// Insert places (key, child) in sorted position, shifting larger entries
// right. Returns ErrNodeFull when the entry does not fit.
func (n *NonLeafNode) Insert(key int32, child index.PageID) error {
	count := n.KeyCount()
	if count >= MaxNonLeafEntries {
		return index.ErrNodeFull
	}
	idx := n.insertIdx(key)
	copy(n.buf[nonLeafEntryOff(idx+1):nonLeafEntryOff(count+1)], n.buf[nonLeafEntryOff(idx):nonLeafEntryOff(count)])
	n.putEntry(idx, key, child)
	n.setKeyCount(count + 1)
	return nil
}

type nonLeafEntry struct {
	key   int32
	child index.PageID
}

// InsertAndSplit inserts (key, child) while splitting the node with sibling,
// which must be empty. Unlike the leaf split, the middle key is promoted: it
// is returned for insertion into the parent and kept in neither node; its
// child pointer becomes the sibling's leftmost child.
func (n *NonLeafNode) InsertAndSplit(key int32, child index.PageID, sibling *NonLeafNode) (int32, error) {
	if sibling.KeyCount() != 0 {
		return 0, index.ErrInvalidAttribute
	}

	// A full node has no room to place the entry before picking the median,
	// so gather everything into a scratch slice first.
	count := n.KeyCount()
	all := make([]nonLeafEntry, 0, count+1)
	idx := n.insertIdx(key)
	for i := 0; i < count; i++ {
		if i == idx {
			all = append(all, nonLeafEntry{key, child})
		}
		all = append(all, nonLeafEntry{n.keyAt(i), n.childAt(i)})
	}
	if idx == count {
		all = append(all, nonLeafEntry{key, child})
	}

	mid := (count + 1) / 2
	median := all[mid]

	for off := nonLeafEntryOff(0); off < nonLeafEntryOff(count); off++ {
		n.buf[off] = 0
	}
	n.setKeyCount(mid)
	for i := 0; i < mid; i++ {
		n.putEntry(i, all[i].key, all[i].child)
	}

	sibling.setLeftmostChildPtr(median.child)
	sibling.setKeyCount(len(all) - mid - 1)
	for i := mid + 1; i < len(all); i++ {
		sibling.putEntry(i-mid-1, all[i].key, all[i].child)
	}

	return median.key, nil
}

// ReadEntry returns the (key, child page id) pair stored at entry eid.
func (n *NonLeafNode) ReadEntry(eid int) (int32, index.PageID, error) {
	if eid < 0 || eid >= n.KeyCount() {
		return 0, 0, index.ErrNoSuchRecord
	}
	return n.keyAt(eid), n.childAt(eid), nil
}

// LocateChildPtr returns the child pointer to follow for searchKey: the
// child of the rightmost entry whose key does not exceed searchKey, or the
// leftmost child when searchKey sorts below every entry.
func (n *NonLeafNode) LocateChildPtr(searchKey int32) (index.PageID, error) {
	for i := n.KeyCount() - 1; i >= 0; i-- {
		if n.keyAt(i) <= searchKey {
			return n.childAt(i), nil
		}
	}
	return n.LeftmostChildPtr(), nil
}

// InitializeRoot writes a fresh one-key root: pid1 to the left of key, pid2
// to the right. Fails with ErrInvalidAttribute if the node already holds
// entries.
func (n *NonLeafNode) InitializeRoot(pid1 index.PageID, key int32, pid2 index.PageID) error {
	if n.KeyCount() != 0 {
		return index.ErrInvalidAttribute
	}
	n.buf = pager.Page{}
	n.setLeftmostChildPtr(pid1)
	n.putEntry(0, key, pid2)
	n.setKeyCount(1)
	return nil
}
