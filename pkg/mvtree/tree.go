package mvtree

import (
	"bytes"
	"sort"

	"go.uber.org/zap"

	"github.com/huynhanx03/mvtreekv/pkg/pmpool"
)

// pathEntry is one step of a traversal: the inner node visited and the
// child index chosen at it. Put keeps the path so a leaf split can
// propagate a new separator up through exactly the ancestors it descended
// through, splitting them in turn if they are already full.
type pathEntry struct {
	node *MVInnerNode
	idx  int
}

// Tree is the coordinator spec.md §3 calls MVTree: a volatile inner-node
// index (root) rooted over a durable leaf list anchored by an MVRoot
// object, plus the free-leaf pool of emptied leaves available for reuse.
type Tree struct {
	pool *pmpool.Pool
	path string

	rootObjOID pmpool.ObjectID // the MVRoot object's own oid
	root       childRef        // zero value means the tree holds no leaves at all
	arena      *arena
	freePool   []*LeafHandle

	log *zap.Logger
}

// Open opens (or creates) the pool at cfg.Path and rebuilds the volatile
// index over its default root object, per spec.md §4.5.1.
func Open(cfg pmpool.Config) (*Tree, error) {
	pool, err := pmpool.Open(cfg)
	if err != nil {
		return nil, err
	}
	return buildTree(pool, cfg.Path, pool.Root(), true)
}

// OpenWithRoot opens the pool at cfg.Path and rebuilds the volatile index
// over an MVRoot object the caller already owns (e.g. embedded as a field
// inside a larger pool-global root managed by something other than mvtree).
func OpenWithRoot(cfg pmpool.Config, root pmpool.ObjectID) (*Tree, error) {
	pool, err := pmpool.Open(cfg)
	if err != nil {
		return nil, err
	}
	return buildTree(pool, cfg.Path, root, false)
}

func buildTree(pool *pmpool.Pool, path string, rootObjOID pmpool.ObjectID, useDefaultRoot bool) (*Tree, error) {
	if rootObjOID.IsNull() {
		if !useDefaultRoot {
			pool.Close()
			return nil, pmpool.ErrTxClosed
		}
		tx := pool.Begin()
		oid, err := tx.Alloc(rootSize)
		if err != nil {
			tx.Abort()
			pool.Close()
			return nil, err
		}
		scratch := pmpool.Scratch(rootSize)
		for i := range scratch {
			scratch[i] = 0
		}
		if err := tx.Write(oid, rootSize, scratch); err != nil {
			pmpool.ReleaseScratch(scratch)
			tx.Abort()
			pool.Close()
			return nil, err
		}
		pmpool.ReleaseScratch(scratch)
		if err := pool.SetRoot(oid); err != nil {
			tx.Abort()
			pool.Close()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			pool.Close()
			return nil, err
		}
		rootObjOID = oid
	}

	t := &Tree{
		pool:       pool,
		path:       path,
		rootObjOID: rootObjOID,
		arena:      newArena(),
		log:        pool.Logger(),
	}
	if err := t.recover(); err != nil {
		pool.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tree) derefFn() derefFunc {
	return func(oid pmpool.ObjectID, size int) []byte {
		return t.pool.Deref(oid, size)
	}
}

func (t *Tree) rootObj() mvRoot {
	return newMVRoot(t.pool.Deref(t.rootObjOID, rootSize))
}

// recover walks the persistent leaf list once, files empty leaves into the
// free-leaf pool, and bulk-builds the volatile inner-node index bottom-up
// over the attached (non-empty) leaves using their minimum keys as
// separators, per spec.md §4.5.1 steps 3-4.
func (t *Tree) recover() error {
	deref := t.derefFn()

	var attached []*LeafHandle
	cur := t.rootObj().head()
	for !cur.IsNull() {
		raw := t.pool.Deref(cur, LeafSize)
		leaf := newMVLeaf(cur, raw)
		h := newLeafHandle(leaf, deref)
		if h.Empty() {
			h.inPool = true
			t.freePool = append(t.freePool, h)
		} else {
			attached = append(attached, h)
		}
		cur = leaf.next()
	}

	if len(attached) == 0 {
		t.root = childRef{}
		return nil
	}

	sort.Slice(attached, func(i, j int) bool {
		return bytes.Compare(attached[i].MinKey(), attached[j].MinKey()) < 0
	})

	level := make([]childRef, len(attached))
	for i, h := range attached {
		level[i] = childRef{leaf: h}
	}
	for len(level) > 1 {
		var next []childRef
		for i := 0; i < len(level); i += InnerKeys {
			end := i + InnerKeys
			if end > len(level) {
				end = len(level)
			}
			node := t.arena.alloc()
			node.initSingle(level[i])
			for j := i + 1; j < end; j++ {
				node.insertAt(node.count(), level[j].minKey(deref), level[j])
			}
			next = append(next, childRef{inner: node})
		}
		level = next
	}
	t.root = level[0]
	return nil
}

// traverseWithPath descends from the root to the leaf that owns key,
// recording the inner-node path taken. Returns (nil, nil) if the tree
// currently holds no leaves at all.
func (t *Tree) traverseWithPath(key []byte) (*LeafHandle, []pathEntry) {
	var path []pathEntry
	c := t.root
	for c.inner != nil {
		idx := c.inner.locate(key)
		path = append(path, pathEntry{node: c.inner, idx: idx})
		c = c.inner.child(idx)
	}
	return c.leaf, path
}

func (t *Tree) traverse(key []byte) *LeafHandle {
	h, _ := t.traverseWithPath(key)
	return h
}

// obtainLeaf hands back a leaf to attach: a handle pulled from the
// free-leaf pool if one is available, otherwise a freshly allocated and
// zeroed leaf object. Either way the returned leaf is not linked into the
// persistent next-chain yet; the caller is always responsible for that
// (writeRootHead for a new root leaf, writeNext for a split's sibling).
//
// A pooled leaf is still linked into the persistent leaf list at whatever
// position recover() found it in, so it must be unlinked from there before
// the caller re-splices it into a new position; otherwise the old link and
// the new one would fight over the same next pointer and can cycle the
// list back on itself.
func (t *Tree) obtainLeaf(tx *pmpool.Tx) (*LeafHandle, error) {
	if n := len(t.freePool); n > 0 {
		h := t.freePool[n-1]
		t.freePool = t.freePool[:n-1]
		h.inPool = false
		if err := t.unlinkFromChain(tx, h.leaf); err != nil {
			return nil, err
		}
		return h, nil
	}
	oid, err := tx.Alloc(LeafSize)
	if err != nil {
		return nil, err
	}
	scratch := pmpool.Scratch(LeafSize)
	for i := range scratch {
		scratch[i] = 0
	}
	if err := tx.Write(oid, LeafSize, scratch); err != nil {
		pmpool.ReleaseScratch(scratch)
		return nil, err
	}
	pmpool.ReleaseScratch(scratch)
	leaf := newMVLeaf(oid, t.pool.Deref(oid, LeafSize))
	return newLeafHandle(leaf, t.derefFn()), nil
}

// unlinkFromChain removes leaf from the persistent leaf list by rewriting
// whatever currently points at it (MVRoot.head, or another leaf's next) to
// point at leaf's own next instead. Leaves found empty by recover() are
// left in place in the list (not physically removed) so they stay
// discoverable as prealloc leaves across a crash before reuse; this walk is
// what actually detaches one at the moment it is pulled back out of the
// free-leaf pool to be spliced in elsewhere.
func (t *Tree) unlinkFromChain(tx *pmpool.Tx, leaf *MVLeaf) error {
	target := leaf.OID()
	next := leaf.next()

	head := t.rootObj().head()
	if head == target {
		return t.writeRootHead(tx, next)
	}

	cur := head
	for !cur.IsNull() {
		curLeaf := newMVLeaf(cur, t.pool.Deref(cur, LeafSize))
		curNext := curLeaf.next()
		if curNext == target {
			return curLeaf.writeNext(tx, next)
		}
		cur = curNext
	}
	return nil
}

func (t *Tree) writeRootHead(tx *pmpool.Tx, oid pmpool.ObjectID) error {
	scratch := pmpool.Scratch(rootSize)
	defer pmpool.ReleaseScratch(scratch)
	r := newMVRoot(scratch)
	r.setHead(oid)
	return tx.Write(t.rootObjOID, rootSize, scratch)
}

// Get implements spec.md §4.5.2: append the value for key to out (like
// Go's append, not an assignment) and report whether it was found.
func (t *Tree) Get(key []byte, out []byte) ([]byte, Result) {
	h := t.traverse(key)
	if h == nil {
		return out, NotFound
	}
	deref := t.derefFn()
	idx := h.leaf.find(key, deref)
	if idx == noneIndex {
		return out, NotFound
	}
	val := h.leaf.valueBytes(h.leaf.slot(idx), deref)
	return append(out, val...), OK
}

// Put implements spec.md §4.5.3. Any allocation failure along the way
// aborts the transaction, leaving durable state exactly as it was before
// the call.
func (t *Tree) Put(key, value []byte) Result {
	tx := t.pool.Begin()
	deref := t.derefFn()

	leafHandle, path := t.traverseWithPath(key)
	if leafHandle == nil {
		// The tree currently has no attached leaves, so every other
		// persistent leaf (if any) is sitting empty in the free-leaf
		// pool, still reachable only through the current head. Record it
		// before obtainLeaf can rewrite it out from under h.
		headBefore := t.rootObj().head()
		h, err := t.obtainLeaf(tx)
		if err != nil {
			tx.Abort()
			return Failed
		}
		// h becomes the new head; whatever the chain held before h was
		// plucked out of it must hang off h.next so it stays reachable
		// (a second free leaf, e.g., must not be dropped off the list).
		rest := headBefore
		if headBefore == h.OID() {
			rest = h.leaf.next()
		}
		if err := h.leaf.writeNext(tx, rest); err != nil {
			tx.Abort()
			return Failed
		}
		if err := t.writeRootHead(tx, h.OID()); err != nil {
			tx.Abort()
			return Failed
		}
		outcome, err := h.leaf.assign(tx, deref, key, value)
		if err != nil || outcome != assignOK {
			tx.Abort()
			return Failed
		}
		h.refresh(deref)
		t.root = childRef{leaf: h}
		if err := tx.Commit(); err != nil {
			return Failed
		}
		return OK
	}

	outcome, err := leafHandle.leaf.assign(tx, deref, key, value)
	if err != nil {
		tx.Abort()
		return Failed
	}
	if outcome == assignOK {
		leafHandle.refresh(deref)
		if err := tx.Commit(); err != nil {
			return Failed
		}
		return OK
	}
	if outcome == assignFailed {
		// An overwrite of an existing key whose new value needed a blob
		// allocation that failed. Tree shape must not change for this
		// case, so this is a hard failure, never a split.
		tx.Abort()
		return Failed
	}

	// assignNoRoom: the leaf is full, split it and propagate the new
	// separator up through the path just traversed.
	if err := t.splitAndInsert(tx, leafHandle, path, key, value); err != nil {
		tx.Abort()
		return Failed
	}
	if err := tx.Commit(); err != nil {
		return Failed
	}
	return OK
}

// splitAndInsert implements spec.md §4.5.3's split branch: link a new
// sibling into the persistent next-chain, give it a share of leafHandle's
// slots, insert the new key/value into whichever side it belongs, then
// splice the sibling into the inner-node structure.
//
// A Put that appends past every key already in the full leaf (key is past
// the leaf's own maximum, a pure sequential-insert pattern) is a lopsided
// split: the incoming key alone seeds the new sibling and nothing already
// in the leaf moves, instead of the usual even halving. Nothing mirrors
// this for the opposite (prepend, i.e. descending-key) pattern, so an
// ascending fill ends up with far fewer, fuller leaves than a descending
// fill of the same keys.
func (t *Tree) splitAndInsert(tx *pmpool.Tx, leafHandle *LeafHandle, path []pathEntry, key, value []byte) error {
	deref := t.derefFn()

	sorted := leafHandle.leaf.sort(deref)
	currentMax := leafHandle.leaf.keyBytes(leafHandle.leaf.slot(sorted[len(sorted)-1]), deref)
	appending := bytes.Compare(key, currentMax) > 0

	sibling, err := t.obtainLeaf(tx)
	if err != nil {
		return err
	}

	oldNext := leafHandle.leaf.next()
	if err := sibling.leaf.writeNext(tx, oldNext); err != nil {
		return err
	}
	if err := leafHandle.leaf.writeNext(tx, sibling.leaf.OID()); err != nil {
		return err
	}

	var median []byte
	target := sibling
	if !appending {
		mid := len(sorted) / 2
		dstPos := 0
		for _, srcIdx := range sorted[mid:] {
			if err := moveSlot(tx, leafHandle.leaf, srcIdx, sibling.leaf, dstPos); err != nil {
				return err
			}
			dstPos++
		}
		leafHandle.refresh(deref)
		sibling.refresh(deref)

		median = sibling.MinKey()
		target = leafHandle
		if bytes.Compare(key, median) >= 0 {
			target = sibling
		}
	}

	outcome, err := target.leaf.assign(tx, deref, key, value)
	if err != nil {
		return err
	}
	if outcome != assignOK {
		return pmpool.ErrAllocFailed
	}
	target.refresh(deref)
	if appending {
		median = target.MinKey()
	}

	t.insertNewSibling(path, median, childRef{leaf: sibling})
	return nil
}

// insertNewSibling splices newChild (preceded by separator sep) into the
// inner-node structure immediately after the node the split occurred in,
// growing the tree's height at the root if every ancestor along path was
// already full. It touches only volatile memory, so it cannot fail.
func (t *Tree) insertNewSibling(path []pathEntry, sep []byte, newChild childRef) {
	if len(path) == 0 {
		// The tree had a single attached leaf acting as root, no inner
		// node yet. Build the first one.
		newRoot := t.arena.alloc()
		newRoot.initSingle(t.root)
		newRoot.insertAt(1, sep, newChild)
		t.root = childRef{inner: newRoot}
		return
	}

	level := len(path) - 1
	for {
		parent := path[level].node
		idx := path[level].idx
		if !parent.full() {
			parent.insertAt(idx+1, sep, newChild)
			return
		}

		right, median := parent.splitOff(t.arena, t.derefFn())
		if idx+1 <= parent.count() {
			parent.insertAt(idx+1, sep, newChild)
		} else {
			right.insertAt(idx+1-parent.count(), sep, newChild)
		}
		newChild = childRef{inner: right}
		sep = median

		if level == 0 {
			newRoot := t.arena.alloc()
			newRoot.initSingle(childRef{inner: parent})
			newRoot.insertAt(1, sep, newChild)
			t.root = childRef{inner: newRoot}
			return
		}
		level--
	}
}

// Remove implements spec.md §4.5.4: idempotent, always OK.
func (t *Tree) Remove(key []byte) Result {
	if t.root.inner == nil && t.root.leaf == nil {
		return OK
	}
	h := t.traverse(key)
	if h == nil {
		return OK
	}

	tx := t.pool.Begin()
	deref := t.derefFn()
	if _, err := h.leaf.erase(tx, deref, key); err != nil {
		tx.Abort()
		return OK
	}
	h.refresh(deref)
	if err := tx.Commit(); err != nil {
		t.log.Error("remove commit failed", zap.Error(err))
	}
	return OK
}

// Analyze implements spec.md §4.5.6: a deterministic, allocation-free walk
// of the persistent leaf list.
func (t *Tree) Analyze() Analysis {
	freeSet := make(map[pmpool.ObjectID]bool, len(t.freePool))
	for _, h := range t.freePool {
		freeSet[h.OID()] = true
	}

	a := Analysis{Path: t.path}
	cur := t.rootObj().head()
	for !cur.IsNull() {
		a.LeafTotal++
		leaf := newMVLeaf(cur, t.pool.Deref(cur, LeafSize))
		if leaf.occupied() == 0 {
			a.LeafEmpty++
			if freeSet[cur] {
				a.LeafPrealloc++
			}
		}
		cur = leaf.next()
	}
	return a
}

// RootOid returns the oid of the MVRoot object anchoring this tree, for
// use with OpenWithRoot on a later open.
func (t *Tree) RootOid() pmpool.ObjectID {
	return t.rootObjOID
}

// Close releases the volatile index and closes the underlying pool.
func (t *Tree) Close() error {
	t.arena.reset()
	t.freePool = nil
	t.root = childRef{}
	return t.pool.Close()
}
