package tananfs

import (
	"container/heap"
	"time"

	"github.com/sirupsen/logrus"
)

// cacheLine holds a cloned value plus the bookkeeping the write-back policy
// needs: whether it has been mutated since it entered the cache, and when
// it was last touched (spec §3, §4.4).
type cacheLine[T any] struct {
	value    *T
	modified bool
	atime    time.Time
}

// Cache is the write-back cache keyed by index, one map for inodes and one
// for blocks. Values are handed out by clone, so callers work on snapshots;
// a Set call is the point at which a mutation becomes visible to future
// Gets (spec §4.4, §5). It is modeled directly on
// original_source/src/filesystem/cache.rs.
type Cache struct {
	inodes map[uint64]*cacheLine[Inode]
	blocks map[uint64]*cacheLine[Block]
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		inodes: make(map[uint64]*cacheLine[Inode]),
		blocks: make(map[uint64]*cacheLine[Block]),
	}
}

// GetInode returns a clone of the cached inode at index, if present, and
// refreshes its access time.
func (c *Cache) GetInode(index uint64) (*Inode, bool) {
	line, ok := c.inodes[index]
	if !ok {
		return nil, false
	}
	line.atime = time.Now()
	return line.value.Clone(), true
}

// GetBlock returns a clone of the cached block at index, if present, and
// refreshes its access time.
func (c *Cache) GetBlock(index uint64) (*Block, bool) {
	line, ok := c.blocks[index]
	if !ok {
		return nil, false
	}
	line.atime = time.Now()
	return line.value.Clone(), true
}

// SetInode inserts or updates the cached inode. A fresh line starts
// unmodified; overwriting an existing, differing value marks it modified
// and refreshes its access time (spec §4.4).
func (c *Cache) SetInode(inode *Inode) {
	if line, ok := c.inodes[inode.Index]; ok {
		if !line.value.Equal(inode) {
			line.value = inode.Clone()
			line.modified = true
			line.atime = time.Now()
		}
		return
	}
	c.inodes[inode.Index] = &cacheLine[Inode]{value: inode.Clone(), atime: time.Now()}
}

// SetBlock inserts or updates the cached block, with the same semantics as
// SetInode.
func (c *Cache) SetBlock(block *Block) {
	if line, ok := c.blocks[block.Index]; ok {
		if !line.value.Equal(block) {
			line.value = block.Clone()
			line.modified = true
			line.atime = time.Now()
		}
		return
	}
	c.blocks[block.Index] = &cacheLine[Block]{value: block.Clone(), atime: time.Now()}
}

type lruKind int

const (
	lruInode lruKind = iota
	lruBlock
)

type lruEntry struct {
	kind  lruKind
	index uint64
	age   time.Duration
}

// lruMaxHeap orders entries oldest-first (largest age on top), so popping
// it repeatedly yields eviction candidates in the order the original
// Rust cache's BinaryHeap<Reverse<CacheLine>> would.
type lruMaxHeap []lruEntry

func (h lruMaxHeap) Len() int            { return len(h) }
func (h lruMaxHeap) Less(i, j int) bool  { return h[i].age > h[j].age }
func (h lruMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *lruMaxHeap) Push(x interface{}) { *h = append(*h, x.(lruEntry)) }
func (h *lruMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Prune runs before every flush: it gathers every unmodified line into a
// max-heap ordered by age, then pops and evicts the oldest ones until at
// most LRUMaxEntries remain. Modified lines are never evicted before being
// flushed (spec §4.4).
func (c *Cache) Prune() {
	now := time.Now()
	h := make(lruMaxHeap, 0, len(c.inodes)+len(c.blocks))
	for idx, line := range c.inodes {
		if !line.modified {
			h = append(h, lruEntry{kind: lruInode, index: idx, age: now.Sub(line.atime)})
		}
	}
	for idx, line := range c.blocks {
		if !line.modified {
			h = append(h, lruEntry{kind: lruBlock, index: idx, age: now.Sub(line.atime)})
		}
	}
	if h.Len() <= LRUMaxEntries {
		return
	}
	heap.Init(&h)
	evicted := 0
	for h.Len() > LRUMaxEntries {
		e := heap.Pop(&h).(lruEntry)
		switch e.kind {
		case lruInode:
			delete(c.inodes, e.index)
		case lruBlock:
			delete(c.blocks, e.index)
		}
		evicted++
	}
	logrus.WithField("evicted", evicted).Debug("tananfs: cache pruned")
}

// FlushDirty writes every modified line to device via the supplied flush
// functions, clearing the modified flag on success, and returns the first
// error encountered.
func (c *Cache) FlushDirty(flushInode func(*Inode) error, flushBlock func(*Block) error) error {
	for _, line := range c.inodes {
		if line.modified {
			if err := flushInode(line.value); err != nil {
				return err
			}
			line.modified = false
		}
	}
	for _, line := range c.blocks {
		if line.modified {
			if err := flushBlock(line.value); err != nil {
				return err
			}
			line.modified = false
		}
	}
	return nil
}

// AllClean reports whether every cache line is unmodified, used by tests
// asserting the post-force-flush invariant (spec §8).
func (c *Cache) AllClean() bool {
	for _, line := range c.inodes {
		if line.modified {
			return false
		}
	}
	for _, line := range c.blocks {
		if line.modified {
			return false
		}
	}
	return true
}
