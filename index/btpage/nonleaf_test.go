package btpage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minirel/btindex/index"
	"github.com/minirel/btindex/pager"
)

func TestInitializeRoot(t *testing.T) {
	var n NonLeafNode
	require.NoError(t, n.InitializeRoot(3, 50, 4))

	assert.Equal(t, 1, n.KeyCount())
	assert.Equal(t, index.PageID(3), n.LeftmostChildPtr())
	k, child, err := n.ReadEntry(0)
	require.NoError(t, err)
	assert.Equal(t, int32(50), k)
	assert.Equal(t, index.PageID(4), child)

	assert.ErrorIs(t, n.InitializeRoot(5, 60, 6), index.ErrInvalidAttribute)
}

func TestNonLeafInsertFull(t *testing.T) {
	var n NonLeafNode
	require.NoError(t, n.InitializeRoot(1, 0, 2))
	for i := 1; i < MaxNonLeafEntries; i++ {
		require.NoError(t, n.Insert(int32(10*i), index.PageID(i+2)))
	}
	assert.Equal(t, 127, n.KeyCount())

	assert.ErrorIs(t, n.Insert(9999, 200), index.ErrNodeFull)
	assert.Equal(t, 127, n.KeyCount())
}

func TestLocateChildPtr(t *testing.T) {
	var n NonLeafNode
	require.NoError(t, n.InitializeRoot(1, 10, 2))
	require.NoError(t, n.Insert(20, 3))
	require.NoError(t, n.Insert(30, 4))

	cases := []struct {
		key  int32
		want index.PageID
	}{
		{5, 1},   // below all separators: leftmost child
		{10, 2},  // equal to a separator: its child
		{15, 2},  // between separators: lower one wins
		{25, 3},
		{30, 4},
		{999, 4}, // above all separators: rightmost child
	}
	for _, c := range cases {
		got, err := n.LocateChildPtr(c.key)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "key %d", c.key)
	}
}

func TestNonLeafReadEntryBounds(t *testing.T) {
	var n NonLeafNode
	require.NoError(t, n.InitializeRoot(1, 10, 2))

	_, _, err := n.ReadEntry(-1)
	assert.ErrorIs(t, err, index.ErrNoSuchRecord)
	_, _, err = n.ReadEntry(1)
	assert.ErrorIs(t, err, index.ErrNoSuchRecord)
}

func TestNonLeafInsertAndSplit(t *testing.T) {
	// 127 even keys 0..252; the middle key must be promoted, not kept.
	var n NonLeafNode
	require.NoError(t, n.InitializeRoot(100, 0, 101))
	for i := 1; i < MaxNonLeafEntries; i++ {
		require.NoError(t, n.Insert(int32(2*i), index.PageID(100+i+1)))
	}
	require.Equal(t, 127, n.KeyCount())

	var sibling NonLeafNode
	midKey, err := n.InsertAndSplit(125, 300, &sibling)
	require.NoError(t, err)

	// 128 entries split 64 / promoted / 63.
	assert.Equal(t, int32(126), midKey)
	assert.Equal(t, 64, n.KeyCount())
	assert.Equal(t, 63, sibling.KeyCount())

	// The promoted entry's child became the sibling's leftmost pointer.
	assert.Equal(t, index.PageID(100+63+1), sibling.LeftmostChildPtr())
	assert.Equal(t, index.PageID(100), n.LeftmostChildPtr())

	// Left node: 0,2,...,124,125 — all below the promoted key.
	lastKey, lastChild, err := n.ReadEntry(63)
	require.NoError(t, err)
	assert.Equal(t, int32(125), lastKey)
	assert.Equal(t, index.PageID(300), lastChild)

	// Right node starts past the promoted key.
	firstKey, _, err := sibling.ReadEntry(0)
	require.NoError(t, err)
	assert.Equal(t, int32(128), firstKey)

	for i := 0; i < n.KeyCount(); i++ {
		k, _, err := n.ReadEntry(i)
		require.NoError(t, err)
		assert.Less(t, k, midKey)
	}
	for i := 0; i < sibling.KeyCount(); i++ {
		k, _, err := sibling.ReadEntry(i)
		require.NoError(t, err)
		assert.Greater(t, k, midKey)
	}
}

func TestNonLeafInsertAndSplitNonEmptySibling(t *testing.T) {
	var n, sibling NonLeafNode
	require.NoError(t, sibling.InitializeRoot(1, 10, 2))

	_, err := n.InsertAndSplit(2, 3, &sibling)
	assert.ErrorIs(t, err, index.ErrInvalidAttribute)
}

func TestNonLeafReadWriteRoundTrip(t *testing.T) {
	pf, err := pager.Open(filepath.Join(t.TempDir(), "nonleaf.idx"), pager.ModeWrite, 4)
	require.NoError(t, err)
	defer pf.Close()

	var n NonLeafNode
	require.NoError(t, n.InitializeRoot(1, 10, 2))
	require.NoError(t, n.Write(0, pf))

	var got NonLeafNode
	require.NoError(t, got.Read(0, pf))
	assert.Equal(t, 1, got.KeyCount())
	assert.Equal(t, index.PageID(1), got.LeftmostChildPtr())

	assert.ErrorIs(t, got.Read(-1, pf), index.ErrInvalidPid)
}
