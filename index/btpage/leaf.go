package btpage

import (
	"github.com/minirel/btindex/index"
	"github.com/minirel/btindex/pager"
)

// LeafNode holds a sorted run of (key, rid) entries plus a pointer to the
// next leaf in key order. The zero value is a valid empty node.
type LeafNode struct {
	buf pager.Page
}

// Read loads the node from page pid of pf into the internal buffer.
func (n *LeafNode) Read(pid index.PageID, pf *pager.Pager) error {
	if pid < 0 {
		return index.ErrInvalidPid
	}
	return pf.Read(pid, &n.buf)
}

// Write stores the internal buffer to page pid of pf.
func (n *LeafNode) Write(pid index.PageID, pf *pager.Pager) error {
	return pf.Write(pid, &n.buf)
}

// KeyCount returns the number of entries in the node.
func (n *LeafNode) KeyCount() int {
	return int(getInt32(&n.buf, offKeyCount))
}

func (n *LeafNode) setKeyCount(count int) {
	putInt32(&n.buf, offKeyCount, int32(count))
}

// NextNodePtr returns the page id of the next sibling leaf, 0 if this is the
// rightmost leaf.
func (n *LeafNode) NextNodePtr() index.PageID {
	return getInt32(&n.buf, offNextPtr)
}

// SetNextNodePtr links the node to the sibling at pid; pid 0 marks the end
// of the leaf chain.
func (n *LeafNode) SetNextNodePtr(pid index.PageID) error {
	if pid < 0 {
		return index.ErrInvalidPid
	}
	putInt32(&n.buf, offNextPtr, pid)
	return nil
}

func leafEntryOff(i int) int {
	return offEntries + i*leafEntrySize
}

func (n *LeafNode) keyAt(i int) int32 {
	return getInt32(&n.buf, leafEntryOff(i))
}

func (n *LeafNode) ridAt(i int) index.RecordID {
	off := leafEntryOff(i)
	return index.RecordID{
		Pid: getInt32(&n.buf, off+4),
		Sid: getInt32(&n.buf, off+8),
	}
}

func (n *LeafNode) putEntry(i int, key int32, rid index.RecordID) {
	off := leafEntryOff(i)
	putInt32(&n.buf, off, key)
	putInt32(&n.buf, off+4, rid.Pid)
	putInt32(&n.buf, off+8, rid.Sid)
}

// insertIdx returns the position a new key sorts to: the index of the first
// entry whose key exceeds it.
func (n *LeafNode) insertIdx(key int32) int {
	count := n.KeyCount()
	for i := 0; i < count; i++ {
		if n.keyAt(i) > key {
			return i
		}
	}
	return count
}

// Insert places (key, rid) in sorted position, shifting larger entries
// right. Returns ErrNodeFull when the entry does not fit. Assumes the key is
// not already present.
func (n *LeafNode) Insert(key int32, rid index.RecordID) error {
	count := n.KeyCount()
	if count >= MaxLeafEntries {
		return index.ErrNodeFull
	}
	idx := n.insertIdx(key)
	copy(n.buf[leafEntryOff(idx+1):leafEntryOff(count+1)], n.buf[leafEntryOff(idx):leafEntryOff(count)])
	n.putEntry(idx, key, rid)
	n.setKeyCount(count + 1)
	return nil
}

// InsertAndSplit inserts (key, rid) while splitting the node with sibling,
// which must be empty. The upper half of the existing entries moves to the
// sibling; the new entry lands in whichever node its sort position falls in.
// Returns the first key of the sibling after the split. The caller wires the
// sibling pointers.
func (n *LeafNode) InsertAndSplit(key int32, rid index.RecordID, sibling *LeafNode) (int32, error) {
	if sibling.KeyCount() != 0 {
		return 0, index.ErrInvalidAttribute
	}
	count := n.KeyCount()
	idx := n.insertIdx(key)
	mid := count / 2

	copy(sibling.buf[leafEntryOff(0):leafEntryOff(count-mid)], n.buf[leafEntryOff(mid):leafEntryOff(count)])
	sibling.setKeyCount(count - mid)
	for off := leafEntryOff(mid); off < leafEntryOff(count); off++ {
		n.buf[off] = 0
	}
	n.setKeyCount(mid)

	var err error
	if idx > mid {
		err = sibling.Insert(key, rid)
	} else {
		err = n.Insert(key, rid)
	}
	if err != nil {
		return 0, err
	}
	return sibling.keyAt(0), nil
}

// Locate finds searchKey in the node. On a hit it returns the entry index.
// On a miss it returns the index of the first entry whose key exceeds
// searchKey together with ErrNoSuchRecord, or the last entry index when all
// keys are smaller; range scans rely on this positioning.
func (n *LeafNode) Locate(searchKey int32) (int, error) {
	count := n.KeyCount()
	for i := 0; i < count; i++ {
		k := n.keyAt(i)
		if k == searchKey {
			return i, nil
		}
		if k > searchKey {
			return i, index.ErrNoSuchRecord
		}
	}
	return count - 1, index.ErrNoSuchRecord
}

// ReadEntry returns the (key, rid) pair stored at entry eid.
func (n *LeafNode) ReadEntry(eid int) (int32, index.RecordID, error) {
	if eid < 0 || eid >= n.KeyCount() {
		return 0, index.RecordID{}, index.ErrNoSuchRecord
	}
	return n.keyAt(eid), n.ridAt(eid), nil
}
