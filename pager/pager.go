// Package pager manages a file of fixed-size 1 KB pages and caches recently
// used ones.
//
// Page 0 belongs to the client (the B+ tree keeps its metadata there), so the
// pager derives the page count from the file size instead of a header word.
// Pages are allocated by writing at EndPid; the file only ever grows.
package pager

import (
	"os"

	"github.com/pkg/errors"

	"github.com/minirel/btindex/index"
)

const (
	// PageSize is the atomic unit of read and write.
	PageSize = 1024

	// DefaultCachePages bounds the LRU page cache when the caller has no
	// better number.
	DefaultCachePages = 64
)

// Page is a raw 1 KB block read from or written to disk.
type Page [PageSize]byte

// Mode selects how Open treats a missing file.
type Mode int

const (
	// ModeRead opens an existing file read-only; missing files are an error.
	ModeRead Mode = iota
	// ModeWrite opens read-write and creates the file if it does not exist.
	ModeWrite
)

// Pager manages a file of fixed-size pages.
type Pager struct {
	file      *os.File
	cache     *lruCache
	pageCount index.PageID
}

// Open opens (or, in write mode, creates) a pager backed by the given file.
// cacheSize is the number of pages to hold in the LRU cache.
func Open(path string, mode Mode, cacheSize int) (*Pager, error) {
	flags := os.O_RDONLY
	if mode == ModeWrite {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, errors.Wrapf(index.ErrFileOpenFailed, "pager: open %s: %v", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(index.ErrFileOpenFailed, "pager: stat %s: %v", path, err)
	}
	if info.Size()%PageSize != 0 {
		f.Close()
		return nil, errors.Wrapf(index.ErrInvalidFileFormat, "pager: %s holds %d bytes", path, info.Size())
	}

	return &Pager{
		file:      f,
		cache:     newLRUCache(cacheSize),
		pageCount: index.PageID(info.Size() / PageSize),
	}, nil
}

// Read copies the page with the given id into p, from cache or disk.
func (pf *Pager) Read(pid index.PageID, p *Page) error {
	if pid < 0 || pid >= pf.pageCount {
		return errors.Wrapf(index.ErrInvalidPid, "pager: read page %d of %d", pid, pf.pageCount)
	}
	if cached := pf.cache.get(pid); cached != nil {
		*p = *cached
		return nil
	}
	if _, err := pf.file.ReadAt(p[:], pf.offset(pid)); err != nil {
		return errors.Wrapf(err, "pager: read page %d", pid)
	}
	pf.cache.put(pid, p)
	return nil
}

// Write writes p to the page with the given id and updates the cache.
// Writing at EndPid extends the file by one page.
func (pf *Pager) Write(pid index.PageID, p *Page) error {
	if pid < 0 || pid > pf.pageCount {
		return errors.Wrapf(index.ErrInvalidPid, "pager: write page %d of %d", pid, pf.pageCount)
	}
	if _, err := pf.file.WriteAt(p[:], pf.offset(pid)); err != nil {
		return errors.Wrapf(err, "pager: write page %d", pid)
	}
	if pid == pf.pageCount {
		pf.pageCount++
	}
	pf.cache.put(pid, p)
	return nil
}

// EndPid returns the id of the next unused page, equivalently the current
// page count.
func (pf *Pager) EndPid() index.PageID {
	return pf.pageCount
}

// Close closes the underlying file.
func (pf *Pager) Close() error {
	return pf.file.Close()
}

func (pf *Pager) offset(pid index.PageID) int64 {
	return int64(pid) * PageSize
}

// ─── LRU Cache ────────────────────────────────────────────────────────────────

type lruEntry struct {
	pid  index.PageID
	page Page
	prev *lruEntry
	next *lruEntry
}

type lruCache struct {
	cap   int
	items map[index.PageID]*lruEntry
	head  *lruEntry // most recent
	tail  *lruEntry // least recent
}

func newLRUCache(cap int) *lruCache {
	if cap < 1 {
		cap = 1
	}
	return &lruCache{
		cap:   cap,
		items: make(map[index.PageID]*lruEntry, cap),
	}
}

func (c *lruCache) get(pid index.PageID) *Page {
	e, ok := c.items[pid]
	if !ok {
		return nil
	}
	c.moveToFront(e)
	return &e.page
}

func (c *lruCache) put(pid index.PageID, p *Page) {
	if e, ok := c.items[pid]; ok {
		e.page = *p
		c.moveToFront(e)
		return
	}
	e := &lruEntry{pid: pid, page: *p}
	c.items[pid] = e
	c.pushFront(e)
	if len(c.items) > c.cap {
		c.evict()
	}
}

func (c *lruCache) pushFront(e *lruEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) moveToFront(e *lruEntry) {
	if c.head == e {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if c.tail == e {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
}

func (c *lruCache) evict() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.pid)
	if c.tail.prev != nil {
		c.tail.prev.next = nil
	}
	c.tail = c.tail.prev
	if c.tail == nil {
		c.head = nil
	}
}
