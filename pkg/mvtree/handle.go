package mvtree

import "github.com/huynhanx03/mvtreekv/pkg/pmpool"

// LeafHandle is the volatile descriptor spec.md §3 calls "leaf handle": a
// binding between a persistent leaf's oid and a direct pointer into the
// mapped leaf, plus a cached sorted permutation of its occupied slots from
// which the cached minimum key and Empty are derived. A split does not read
// this cache; splitAndInsert sorts the leaf afresh.
type LeafHandle struct {
	leaf *MVLeaf

	sorted []int  // cached occupied-slot permutation in key order
	min    []byte // cached minimum key, nil if the leaf is empty

	// inPool marks a handle as currently sitting in the free-leaf pool
	// (spec.md §4.5.5): not attached to any inner-node child slot.
	inPool bool
}

func newLeafHandle(leaf *MVLeaf, deref derefFunc) *LeafHandle {
	h := &LeafHandle{leaf: leaf}
	h.refresh(deref)
	return h
}

// refresh recomputes the cached sort permutation and minimum key. Tree calls
// it after every successful assign (install or overwrite), after an erase,
// and on both leaves of a split.
func (h *LeafHandle) refresh(deref derefFunc) {
	h.sorted = h.leaf.sort(deref)
	if len(h.sorted) == 0 {
		h.min = nil
		return
	}
	h.min = h.leaf.keyBytes(h.leaf.slot(h.sorted[0]), deref)
}

// OID returns the handle's persistent leaf oid.
func (h *LeafHandle) OID() pmpool.ObjectID {
	return h.leaf.OID()
}

// MinKey returns the cached minimum key, or nil if the leaf is empty.
func (h *LeafHandle) MinKey() []byte {
	return h.min
}

// Empty reports whether the leaf currently holds no keys.
func (h *LeafHandle) Empty() bool {
	return len(h.sorted) == 0
}
