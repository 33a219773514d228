// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so the B+ tree can be benchmarked against a
// production write-optimized engine.
package lsm

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/minirel/btindex/index"
)

type LSM struct {
	db *pebble.DB
}

var _ index.Index = (*LSM)(nil)

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string) (*LSM, error) {
	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("lsm: open: %w", err)
	}
	return &LSM{db: db}, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

// Insert stores the locator under key.
func (l *LSM) Insert(key int32, rid index.RecordID) error {
	return l.db.Set(encodeKey(key), encodeRid(rid), pebble.NoSync)
}

// Get retrieves the locator for key, ErrNoSuchRecord if absent.
func (l *LSM) Get(key int32) (index.RecordID, error) {
	val, closer, err := l.db.Get(encodeKey(key))
	if err == pebble.ErrNotFound {
		return index.RecordID{}, index.ErrNoSuchRecord
	}
	if err != nil {
		return index.RecordID{}, fmt.Errorf("lsm: get: %w", err)
	}
	rid, derr := decodeRid(val)
	closer.Close()
	return rid, derr
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end int32) (index.Iterator, error) {
	iterOpts := &pebble.IterOptions{
		LowerBound: encodeKey(start),
		UpperBound: encodeKeyExclusive(end),
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, fmt.Errorf("lsm: range: %w", err)
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// ─── Key and value encoding ───────────────────────────────────────────────────

// encodeKey maps an int32 to 4 big-endian bytes with the sign bit flipped
// (offset binary), so byte order matches signed order. Pebble, like all LSM
// trees, relies on the byte comparison.
func encodeKey(k int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(k)^0x80000000)
	return b
}

// encodeKeyExclusive returns the exclusive upper bound for Pebble's
// UpperBound option (which is exclusive, unlike our interface).
func encodeKeyExclusive(k int32) []byte {
	if k == 1<<31-1 {
		// No exclusive successor; one past the largest encoded key.
		return []byte{0xff, 0xff, 0xff, 0xff, 0x00}
	}
	return encodeKey(k + 1)
}

func decodeKey(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b) ^ 0x80000000)
}

func encodeRid(rid index.RecordID) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[:4], uint32(rid.Pid))
	binary.LittleEndian.PutUint32(b[4:], uint32(rid.Sid))
	return b
}

func decodeRid(b []byte) (index.RecordID, error) {
	if len(b) != 8 {
		return index.RecordID{}, fmt.Errorf("lsm: unexpected value length %d", len(b))
	}
	return index.RecordID{
		Pid: int32(binary.LittleEndian.Uint32(b[:4])),
		Sid: int32(binary.LittleEndian.Uint32(b[4:])),
	}, nil
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int32
	rid   index.RecordID
	err   error
}

func (it *rangeIterator) Next() bool {
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}
	k := it.iter.Key()
	if len(k) != 4 {
		it.err = fmt.Errorf("lsm: unexpected key length %d", len(k))
		return false
	}
	it.key = decodeKey(k)
	rid, err := decodeRid(it.iter.Value())
	if err != nil {
		it.err = err
		return false
	}
	it.rid = rid
	return true
}

func (it *rangeIterator) Key() int32          { return it.key }
func (it *rangeIterator) Rid() index.RecordID { return it.rid }
func (it *rangeIterator) Error() error        { return it.err }
func (it *rangeIterator) Close() error        { return it.iter.Close() }
