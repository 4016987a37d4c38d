package pmpool

import (
	"encoding/binary"

	"github.com/huynhanx03/mvtreekv/pkg/internal/calibrated"
)

// allocator hands out byte ranges inside a mapped pool file. It has no
// locking of its own: the spec's engine is single-threaded end to end, so
// the same discipline the teacher's btree.go arena uses (a bare bump pointer
// plus a reused-page free list, no synchronization) applies here too.
//
// Allocations are classed into the same power-of-two buckets the teacher's
// pool/internal/calibrated sizes its sync.Pool buckets with, except here a
// bucket's free list lives on disk (in the superblock) and its nodes are the
// freed blocks themselves, since there is no in-process pool to hand the
// block back to between restarts.
type allocator struct {
	sb        superblock
	mapped    []byte
	failAlloc bool // fault injection, see faultinjector.go
}

func newAllocator(sb superblock, mapped []byte) *allocator {
	return &allocator{sb: sb, mapped: mapped}
}

// alloc reserves size bytes and returns their offset within the pool file.
// It first tries the size-classed free list, then falls back to the bump
// pointer, then fails. A size outside calibrated's bucket range is always
// bump-allocated and never recycled, matching calibrated.Pool's own
// behavior for oversized items.
func (a *allocator) alloc(size int) (uint64, error) {
	if a.failAlloc {
		return 0, ErrAllocFailed
	}
	if size <= 0 {
		size = 1
	}

	idx := calibrated.SizeToIndex(size)
	if idx < numBuckets {
		if off := a.sb.freeListHead(idx); off != 0 {
			next := binary.LittleEndian.Uint64(a.mapped[off:])
			a.sb.setFreeListHead(idx, next)
			return off, nil
		}
		size = calibrated.BucketSize(idx)
	}

	off := a.sb.bumpOffset()
	end := off + uint64(size)
	if end > a.sb.fileSize() {
		return 0, ErrAllocFailed
	}
	a.sb.setBumpOffset(end)
	return off, nil
}

// free returns the block at off, originally allocated with the given size,
// to its size class's free list. Oversized (unbucketed) blocks are leaked
// for the lifetime of the pool file, same tradeoff calibrated.Pool accepts
// for items above its largest bucket.
func (a *allocator) free(off uint64, size int) {
	idx := calibrated.SizeToIndex(size)
	if idx >= numBuckets {
		return
	}
	head := a.sb.freeListHead(idx)
	binary.LittleEndian.PutUint64(a.mapped[off:], head)
	a.sb.setFreeListHead(idx, off)
}

// deref returns the live slice backing the size bytes at off. The caller
// must know size; the allocator does not store per-allocation sizes.
func (a *allocator) deref(off uint64, size int) []byte {
	return a.mapped[off : off+uint64(size)]
}
