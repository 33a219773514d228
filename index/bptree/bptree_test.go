package bptree

import (
	"math"
	"math/rand"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minirel/btindex/index"
	"github.com/minirel/btindex/index/btpage"
	"github.com/minirel/btindex/pager"
)

func openIndex(t *testing.T) (*BTreeIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.idx")
	bt, err := Open(path, pager.ModeWrite)
	require.NoError(t, err)
	t.Cleanup(func() { bt.Close() })
	return bt, path
}

func ridFor(k int32) index.RecordID {
	return index.RecordID{Pid: k, Sid: k + 1}
}

// checkInvariants walks the whole tree through a second read-only pager and
// verifies sortedness, separator bounds, uniform depth, the leaf chain, and
// that exactly wantKeys are stored.
func checkInvariants(t *testing.T, path string, bt *BTreeIndex, wantKeys []int32) {
	t.Helper()
	pf, err := pager.Open(path, pager.ModeRead, 16)
	require.NoError(t, err)
	defer pf.Close()

	height := bt.TreeHeight()
	require.GreaterOrEqual(t, height, 0)

	var leaves []index.PageID
	var walk func(pid index.PageID, depth int, lower, upper int64)
	walk = func(pid index.PageID, depth int, lower, upper int64) {
		require.Greater(t, pid, index.PageID(0), "page 0 is metadata only")
		if depth == height {
			var leaf btpage.LeafNode
			require.NoError(t, leaf.Read(pid, pf))
			require.LessOrEqual(t, leaf.KeyCount(), btpage.MaxLeafEntries)
			prev := int64(math.MinInt64)
			for i := 0; i < leaf.KeyCount(); i++ {
				k, _, err := leaf.ReadEntry(i)
				require.NoError(t, err)
				require.Greater(t, int64(k), prev, "leaf %d entry %d out of order", pid, i)
				require.GreaterOrEqual(t, int64(k), lower, "leaf %d violates separator", pid)
				require.Less(t, int64(k), upper, "leaf %d violates separator", pid)
				prev = int64(k)
			}
			leaves = append(leaves, pid)
			return
		}
		var node btpage.NonLeafNode
		require.NoError(t, node.Read(pid, pf))
		count := node.KeyCount()
		require.Greater(t, count, 0)
		require.LessOrEqual(t, count, btpage.MaxNonLeafEntries)
		childLower := lower
		child := node.LeftmostChildPtr()
		prev := int64(math.MinInt64)
		for i := 0; i < count; i++ {
			k, c, err := node.ReadEntry(i)
			require.NoError(t, err)
			require.Greater(t, int64(k), prev, "node %d entry %d out of order", pid, i)
			prev = int64(k)
			walk(child, depth+1, childLower, int64(k))
			childLower = int64(k)
			child = c
		}
		walk(child, depth+1, childLower, upper)
	}
	walk(bt.RootPid(), 0, math.MinInt64, math.MaxInt64)

	// The leaf chain must visit the leaves in key order and end at 0.
	var got []int32
	for i, pid := range leaves {
		var leaf btpage.LeafNode
		require.NoError(t, leaf.Read(pid, pf))
		for e := 0; e < leaf.KeyCount(); e++ {
			k, _, err := leaf.ReadEntry(e)
			require.NoError(t, err)
			got = append(got, k)
		}
		if i < len(leaves)-1 {
			require.Equal(t, leaves[i+1], leaf.NextNodePtr(), "leaf chain broken at %d", pid)
		} else {
			require.Equal(t, index.PageID(0), leaf.NextNodePtr(), "rightmost leaf must end the chain")
		}
	}
	want := slices.Clone(wantKeys)
	slices.Sort(want)
	require.Equal(t, want, got)
}

func TestFirstInsertAndLocate(t *testing.T) {
	bt, _ := openIndex(t)
	require.NoError(t, bt.Insert(4, index.RecordID{Pid: 6, Sid: 7}))

	var cursor Cursor
	require.NoError(t, bt.Locate(4, &cursor))
	assert.Equal(t, Cursor{Pid: 1, Eid: 0}, cursor)

	key, rid, err := bt.ReadForward(&cursor)
	require.NoError(t, err)
	assert.Equal(t, int32(4), key)
	assert.Equal(t, index.RecordID{Pid: 6, Sid: 7}, rid)
	assert.Equal(t, Cursor{Pid: 1, Eid: 1}, cursor)

	assert.Equal(t, 0, bt.TreeHeight())
	assert.Equal(t, index.PageID(1), bt.RootPid())
}

func TestSingleLeafFillsWithoutSplit(t *testing.T) {
	bt, _ := openIndex(t)
	for i := int32(15); i <= 98; i++ {
		require.NoError(t, bt.Insert(i, ridFor(i)))
	}

	// 84 keys fill the leaf exactly; the root is still that leaf.
	assert.Equal(t, 0, bt.TreeHeight())

	var cursor Cursor
	require.NoError(t, bt.Locate(50, &cursor))
	assert.Equal(t, Cursor{Pid: 1, Eid: 35}, cursor)
}

func TestRootLeafSplit(t *testing.T) {
	bt, path := openIndex(t)
	keys := make([]int32, 0, 85)
	for i := int32(15); i <= 98; i++ {
		require.NoError(t, bt.Insert(i, ridFor(i)))
		keys = append(keys, i)
	}

	// The 85th key overflows the root leaf and promotes an interior root.
	require.NoError(t, bt.Insert(99, ridFor(99)))
	keys = append(keys, 99)

	assert.Equal(t, 1, bt.TreeHeight())
	assert.Equal(t, index.PageID(3), bt.RootPid())

	var left, right Cursor
	require.NoError(t, bt.Locate(15, &left))
	require.NoError(t, bt.Locate(99, &right))
	assert.Equal(t, index.PageID(1), left.Pid)
	assert.Equal(t, index.PageID(2), right.Pid)

	checkInvariants(t, path, bt, keys)
}

func TestSequentialInsertLocateAll(t *testing.T) {
	bt, path := openIndex(t)
	keys := make([]int32, 0, 250)
	for k := int32(1); k <= 250; k++ {
		require.NoError(t, bt.Insert(k, ridFor(k)))
		keys = append(keys, k)
	}

	assert.Equal(t, 1, bt.TreeHeight())
	checkInvariants(t, path, bt, keys)

	for k := int32(1); k <= 250; k++ {
		rid, err := bt.Get(k)
		require.NoError(t, err, "key %d", k)
		assert.Equal(t, ridFor(k), rid)
	}

	// A key below every stored key positions the cursor at the first entry
	// of the leftmost leaf.
	var cursor Cursor
	err := bt.Locate(0, &cursor)
	assert.ErrorIs(t, err, index.ErrNoSuchRecord)
	assert.Equal(t, 0, cursor.Eid)
	key, rid, err := bt.ReadForward(&cursor)
	require.NoError(t, err)
	assert.Equal(t, int32(1), key)
	assert.Equal(t, ridFor(1), rid)
}

func TestLocateAboveAllKeys(t *testing.T) {
	bt, _ := openIndex(t)
	for k := int32(1); k <= 250; k++ {
		require.NoError(t, bt.Insert(k, ridFor(k)))
	}

	var cursor Cursor
	err := bt.Locate(1000, &cursor)
	assert.ErrorIs(t, err, index.ErrNoSuchRecord)
	key, _, err := bt.ReadForward(&cursor)
	require.NoError(t, err)
	assert.Equal(t, int32(250), key)
}

func TestRandomInsertPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.idx")
	bt, err := Open(path, pager.ModeWrite)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	keys := make([]int32, 0, 1000)
	for _, k := range rng.Perm(1000) {
		key := int32(k + 1)
		require.NoError(t, bt.Insert(key, ridFor(key)))
		keys = append(keys, key)
	}
	checkInvariants(t, path, bt, keys)
	require.NoError(t, bt.Close())

	// Reopen read-only: every key must resolve to its original locator.
	bt, err = Open(path, pager.ModeRead)
	require.NoError(t, err)
	defer bt.Close()
	for k := int32(1); k <= 1000; k++ {
		rid, err := bt.Get(k)
		require.NoError(t, err, "key %d", k)
		assert.Equal(t, ridFor(k), rid)
	}
}

func TestEmptyIndex(t *testing.T) {
	bt, _ := openIndex(t)

	cursor := Cursor{Pid: -1, Eid: -1}
	err := bt.Locate(42, &cursor)
	assert.ErrorIs(t, err, index.ErrNoSuchRecord)
	assert.Equal(t, Cursor{Pid: -1, Eid: -1}, cursor, "cursor untouched on empty tree")

	assert.Equal(t, -1, bt.TreeHeight())
	assert.Equal(t, index.PageID(0), bt.RootPid())
}

func TestReadForwardPastEnd(t *testing.T) {
	bt, _ := openIndex(t)
	require.NoError(t, bt.Insert(1, ridFor(1)))

	cursor := Cursor{Pid: 1, Eid: 1}
	_, _, err := bt.ReadForward(&cursor)
	assert.ErrorIs(t, err, index.ErrNoSuchRecord)
	assert.Equal(t, 1, cursor.Eid, "cursor does not advance past the end")
}

func TestHeightTwoGrowth(t *testing.T) {
	bt, path := openIndex(t)
	keys := make([]int32, 0, 6000)
	for k := int32(1); k <= 6000; k++ {
		require.NoError(t, bt.Insert(k, ridFor(k)))
		keys = append(keys, k)
	}

	// Sequential fill splits the rightmost leaf every 42nd key; once the
	// interior root carries 127 separators the next split grows the tree.
	assert.Equal(t, 2, bt.TreeHeight())
	checkInvariants(t, path, bt, keys)

	for _, k := range []int32{1, 42, 43, 85, 2500, 5999, 6000} {
		rid, err := bt.Get(k)
		require.NoError(t, err, "key %d", k)
		assert.Equal(t, ridFor(k), rid)
	}
	_, err := bt.Get(6001)
	assert.ErrorIs(t, err, index.ErrNoSuchRecord)
}

func TestRange(t *testing.T) {
	bt, _ := openIndex(t)
	for k := int32(1); k <= 300; k++ {
		require.NoError(t, bt.Insert(k, ridFor(k)))
	}

	it, err := bt.Range(50, 150)
	require.NoError(t, err)
	var got []int32
	for it.Next() {
		got = append(got, it.Key())
		assert.Equal(t, ridFor(it.Key()), it.Rid())
	}
	require.NoError(t, it.Error())
	require.NoError(t, it.Close())

	require.Len(t, got, 101)
	assert.Equal(t, int32(50), got[0])
	assert.Equal(t, int32(150), got[100])
	assert.True(t, slices.IsSorted(got))
}

func TestRangeStartBelowAllKeys(t *testing.T) {
	bt, _ := openIndex(t)
	for k := int32(1); k <= 10; k++ {
		require.NoError(t, bt.Insert(k, ridFor(k)))
	}

	it, err := bt.Range(-5, 3)
	require.NoError(t, err)
	var got []int32
	for it.Next() {
		got = append(got, it.Key())
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []int32{1, 2, 3}, got)
}

func TestRangeStartAboveAllKeys(t *testing.T) {
	bt, _ := openIndex(t)
	for k := int32(1); k <= 10; k++ {
		require.NoError(t, bt.Insert(k, ridFor(k)))
	}

	it, err := bt.Range(50, 100)
	require.NoError(t, err)
	assert.False(t, it.Next())
	require.NoError(t, it.Error())
}

func TestRangeEmptyTree(t *testing.T) {
	bt, _ := openIndex(t)

	it, err := bt.Range(1, 10)
	require.NoError(t, err)
	assert.False(t, it.Next())
	require.NoError(t, it.Error())
}
