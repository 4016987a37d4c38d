package pmpool

import (
	"go.uber.org/zap"

	dsbuffer "github.com/huynhanx03/mvtreekv/pkg/datastructs/buffer"
	bufferpool "github.com/huynhanx03/mvtreekv/pkg/pool/buffer"
)

// undoEntry records enough to restore a range of the mapping to its
// pre-transaction contents: where it lives, and a slice of the snapshot
// captured in undoBuf at the time of the write.
type undoEntry struct {
	offset     uint64
	snapStart  int
	snapLength int
}

type pendingAlloc struct {
	offset uint64
	size   int
}

type pendingFree struct {
	offset uint64
	size   int
}

// Tx is a single atomic transaction against a Pool. Every Put/Remove in
// mvtree runs inside exactly one Tx, committed or aborted on every exit
// path, mirroring pmemobj's transaction model: writes take effect in the
// mapping immediately, and Abort replays an undo log to put them back the
// way they were, rather than buffering writes until Commit. A Tx is not safe
// for concurrent use.
type Tx struct {
	pool    *Pool
	undoBuf *dsbuffer.Buffer
	undo    []undoEntry
	allocs  []pendingAlloc
	frees   []pendingFree
	closed  bool
}

// Begin starts a new transaction against p.
func (p *Pool) Begin() *Tx {
	return &Tx{
		pool:    p,
		undoBuf: bufferpool.Get(),
	}
}

// Alloc reserves size bytes inside the transaction. If the transaction is
// later aborted, the block is returned to its free list rather than staying
// bump-allocated and unreachable.
func (tx *Tx) Alloc(size int) (ObjectID, error) {
	if tx.closed {
		return NullOID, ErrTxClosed
	}
	off, err := tx.pool.alloc.alloc(size)
	if err != nil {
		return NullOID, err
	}
	tx.allocs = append(tx.allocs, pendingAlloc{offset: off, size: size})
	return ObjectID{Pool: tx.pool.Tag(), Offset: off}, nil
}

// Free marks oid (of the given size) to be returned to its free list when
// the transaction commits. Nothing changes if the transaction aborts: the
// object is simply still there, as if Free had never been called.
func (tx *Tx) Free(oid ObjectID, size int) error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.frees = append(tx.frees, pendingFree{offset: oid.Offset, size: size})
	return nil
}

// Write snapshots the current size bytes at oid into the undo log, then
// copies data (which must be size bytes long) over them in place.
func (tx *Tx) Write(oid ObjectID, size int, data []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	dst := tx.pool.alloc.deref(oid.Offset, size)

	snap := tx.undoBuf.Allocate(size)
	copy(snap, dst)
	tx.undo = append(tx.undo, undoEntry{
		offset:     oid.Offset,
		snapStart:  tx.undoBuf.LenNoPadding() - size,
		snapLength: size,
	})

	copy(dst, data)
	return nil
}

// Deref returns the live slice backing oid for direct in-place editing
// within the transaction. Callers that mutate through it must have already
// called Write (or call it afterward with the pre-mutation bytes) to get
// undo coverage; leaf/slot mutations in mvtree always snapshot-then-edit.
func (tx *Tx) Deref(oid ObjectID, size int) []byte {
	return tx.pool.alloc.deref(oid.Offset, size)
}

// Commit finalizes the transaction: pending frees join their free lists and
// the pool is synced so the changes survive a crash.
func (tx *Tx) Commit() error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.closed = true
	for _, f := range tx.frees {
		tx.pool.alloc.free(f.offset, f.size)
	}
	bufferpool.Put(tx.undoBuf)

	if err := tx.pool.Sync(); err != nil {
		tx.pool.log.Error("commit sync failed", zap.Error(err))
		return err
	}
	return nil
}

// Abort undoes every Write this transaction made, in reverse order, and
// returns every block this transaction Alloc'd back to its free list. It
// always succeeds: an abort is the pool's way of guaranteeing pre-call state
// is unchanged, so it cannot itself fail out from under that guarantee.
func (tx *Tx) Abort() error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.closed = true

	snapshot := tx.undoBuf.Bytes()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		e := tx.undo[i]
		dst := tx.pool.alloc.deref(e.offset, e.snapLength)
		copy(dst, snapshot[e.snapStart:e.snapStart+e.snapLength])
	}
	for _, a := range tx.allocs {
		tx.pool.alloc.free(a.offset, a.size)
	}
	bufferpool.Put(tx.undoBuf)
	return nil
}
