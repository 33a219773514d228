package bptree

import (
	"errors"

	"github.com/minirel/btindex/index"
	"github.com/minirel/btindex/index/btpage"
)

// RangeIterator walks the leaf chain over [start, end], the way index
// consumers drive a range scan: Locate once, then ReadForward until the leaf
// is exhausted and hop to the next sibling.
type RangeIterator struct {
	tree   *BTreeIndex
	start  int32
	end    int32
	cursor Cursor
	done   bool
	key    int32
	rid    index.RecordID
	err    error
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (t *BTreeIndex) Range(start, end int32) (index.Iterator, error) {
	it := &RangeIterator{tree: t, start: start, end: end}
	err := t.Locate(start, &it.cursor)
	if err != nil && !errors.Is(err, index.ErrNoSuchRecord) {
		return nil, err
	}
	if t.initState() <= 0 {
		it.done = true
	}
	return it, nil
}

func (it *RangeIterator) Next() bool {
	for !it.done {
		key, rid, err := it.tree.ReadForward(&it.cursor)
		if errors.Is(err, index.ErrNoSuchRecord) {
			// End of this leaf: follow the chain.
			var leaf btpage.LeafNode
			if err := leaf.Read(it.cursor.Pid, it.tree.pf); err != nil {
				it.err = err
				it.done = true
				return false
			}
			next := leaf.NextNodePtr()
			if next == 0 {
				it.done = true
				return false
			}
			it.cursor = Cursor{Pid: next, Eid: 0}
			continue
		}
		if err != nil {
			it.err = err
			it.done = true
			return false
		}
		// Locate's undershoot contract can park the cursor one entry below
		// the range when start is absent; skip past it.
		if key < it.start {
			continue
		}
		if key > it.end {
			it.done = true
			return false
		}
		it.key, it.rid = key, rid
		return true
	}
	return false
}

func (it *RangeIterator) Key() int32          { return it.key }
func (it *RangeIterator) Rid() index.RecordID { return it.rid }
func (it *RangeIterator) Error() error        { return it.err }
func (it *RangeIterator) Close() error        { return nil }
