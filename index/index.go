package index

// PageID identifies a 1 KB page inside a paged file. Page ids are never
// negative; 0 is reserved (metadata in the index file, "no page" in leaf links).
type PageID = int32

// RecordID locates a tuple in the external record file: the page it lives on
// and its slot within that page. The index stores it as an opaque payload.
type RecordID struct {
	Pid PageID
	Sid int32
}

// Index is the common interface for all implementations.
type Index interface {
	Insert(key int32, rid RecordID) error
	Get(key int32) (RecordID, error)
	Range(start, end int32) (Iterator, error)
	Close() error
}
