// Package btpage implements the two node layouts of the B+ tree. Each node is
// a single 1 KB page mutated in place through typed accessors.
//
// Leaf page:
//
//	[0-3]   int32  key count n
//	[4-7]   int32  next-sibling page id (0 = end of chain)
//	[8+]    12·n   entries (key int32, rid.Pid int32, rid.Sid int32), sorted by key
//
// Non-leaf page:
//
//	[0-3]   int32  key count n
//	[4-7]   int32  leftmost child page id
//	[8+]    8·n    entries (key int32, child page id int32), sorted by key
//
// The leftmost child covers the key range below the first entry key; the
// child stored with entry key k covers keys >= k up to the next entry key.
package btpage

import (
	"encoding/binary"

	"github.com/minirel/btindex/pager"
)

const (
	offKeyCount = 0
	offNextPtr  = 4 // leaf only
	offLeftmost = 4 // non-leaf only
	offEntries  = 8

	leafEntrySize    = 12
	nonLeafEntrySize = 8

	// MaxLeafEntries is the leaf fan-out: 84 entries of 12 bytes after the
	// 8-byte header.
	MaxLeafEntries = (pager.PageSize - offEntries) / leafEntrySize

	// MaxNonLeafEntries is the non-leaf fan-out: 127 entries of 8 bytes
	// after the 8-byte header.
	MaxNonLeafEntries = (pager.PageSize - offEntries) / nonLeafEntrySize
)

func getInt32(p *pager.Page, off int) int32 {
	return int32(binary.LittleEndian.Uint32(p[off : off+4]))
}

func putInt32(p *pager.Page, off int, v int32) {
	binary.LittleEndian.PutUint32(p[off:off+4], uint32(v))
}
