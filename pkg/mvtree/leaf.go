package mvtree

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/huynhanx03/mvtreekv/pkg/hash"
	"github.com/huynhanx03/mvtreekv/pkg/pmpool"
)

// leafHeaderSize is the width of MVLeaf's next-pointer header, preceding the
// slot array (spec.md §6: "MVLeaf: { next: oid, slots: [...] }").
const leafHeaderSize = 16

// LeafSize is the fixed on-media width of a durable leaf object.
const LeafSize = leafHeaderSize + LeafKeys*SlotSize

// derefFunc resolves an oid to its live backing bytes, bound to a single
// open pool. Leaf/slot code takes it as a parameter instead of holding a
// *pmpool.Pool directly so this file stays agnostic of how the pool was
// opened (default root vs. OpenWithRoot).
type derefFunc func(oid pmpool.ObjectID, size int) []byte

// MVLeaf is an accessor over one durable leaf object: a next-pointer and
// LeafKeys fixed-width slots. Oversized keys/values spill into a separately
// allocated indirect blob referenced from the slot.
//
// A slot's indirect blob generalizes spec.md §6's "{ len: u32, bytes }"
// shape to the case where both key and value overflow their inline widths
// at once: the blob holds the overflowing key bytes (if any) immediately
// followed by the overflowing value bytes (if any); a part that still fits
// inline contributes zero bytes to the blob. Sizes are always derivable
// from the slot's own keyLen/valLen, so no extra length header is needed
// inside the blob itself.
type MVLeaf struct {
	oid pmpool.ObjectID
	raw []byte
}

func newMVLeaf(oid pmpool.ObjectID, raw []byte) *MVLeaf {
	return &MVLeaf{oid: oid, raw: raw[:LeafSize:LeafSize]}
}

// OID returns the leaf's own persistent object id.
func (l *MVLeaf) OID() pmpool.ObjectID {
	return l.oid
}

func (l *MVLeaf) next() pmpool.ObjectID {
	off := binary.LittleEndian.Uint64(l.raw[8:16])
	if off == 0 {
		return pmpool.NullOID
	}
	pool := binary.LittleEndian.Uint64(l.raw[0:8])
	return pmpool.ObjectID{Pool: pool, Offset: off}
}

// setNext writes the next pointer in place with no undo logging; nothing in
// the engine calls it. Linking into the durable list goes through writeNext
// so it is undo-logged.
func (l *MVLeaf) setNext(oid pmpool.ObjectID) {
	binary.LittleEndian.PutUint64(l.raw[0:8], oid.Pool)
	binary.LittleEndian.PutUint64(l.raw[8:16], oid.Offset)
}

// writeNext transactionally updates this leaf's next pointer.
func (l *MVLeaf) writeNext(tx *pmpool.Tx, oid pmpool.ObjectID) error {
	scratch := pmpool.Scratch(leafHeaderSize)
	defer pmpool.ReleaseScratch(scratch)
	binary.LittleEndian.PutUint64(scratch[0:8], oid.Pool)
	binary.LittleEndian.PutUint64(scratch[8:16], oid.Offset)
	return tx.Write(l.headerOID(), leafHeaderSize, scratch)
}

func (l *MVLeaf) headerOID() pmpool.ObjectID {
	return pmpool.ObjectID{Pool: l.oid.Pool, Offset: l.oid.Offset}
}

func (l *MVLeaf) slot(i int) slot {
	start := leafHeaderSize + i*SlotSize
	return newSlot(l.raw[start : start+SlotSize])
}

func (l *MVLeaf) slotOID(i int) pmpool.ObjectID {
	return pmpool.ObjectID{Pool: l.oid.Pool, Offset: l.oid.Offset + uint64(leafHeaderSize+i*SlotSize)}
}

// slotRaw returns the live backing bytes of slot i, without copying.
func (l *MVLeaf) slotRaw(i int) []byte {
	start := leafHeaderSize + i*SlotSize
	return l.raw[start : start+SlotSize]
}

// moveSlot relocates slot srcIdx of src into slot dstIdx of dst and clears
// the source slot, used by a leaf split to hand the upper half of a full
// leaf's slots to its new sibling. Because it moves the raw slot bytes
// whole, an indirect blob's oid travels with it — ownership transfers
// without reallocating or copying the blob itself.
func moveSlot(tx *pmpool.Tx, src *MVLeaf, srcIdx int, dst *MVLeaf, dstIdx int) error {
	if err := tx.Write(dst.slotOID(dstIdx), SlotSize, src.slotRaw(srcIdx)); err != nil {
		return err
	}
	scratch := pmpool.Scratch(SlotSize)
	defer pmpool.ReleaseScratch(scratch)
	for i := range scratch {
		scratch[i] = 0
	}
	return tx.Write(src.slotOID(srcIdx), SlotSize, scratch)
}

func blobSizeFor(keyLen, valLen int) int {
	sz := 0
	if keyLen > inlineKeyWidth {
		sz += keyLen
	}
	if valLen > inlineValueWidth {
		sz += valLen
	}
	return sz
}

func (l *MVLeaf) keyBytes(s slot, deref derefFunc) []byte {
	kl := s.keyLen()
	if kl <= inlineKeyWidth {
		out := make([]byte, kl)
		copy(out, s.keyInline()[:kl])
		return out
	}
	blob := deref(s.indirect(), blobSizeFor(kl, s.valLen()))
	out := make([]byte, kl)
	copy(out, blob[:kl])
	return out
}

func (l *MVLeaf) valueBytes(s slot, deref derefFunc) []byte {
	vl := s.valLen()
	if vl <= inlineValueWidth {
		out := make([]byte, vl)
		copy(out, s.valInline()[:vl])
		return out
	}
	kl := s.keyLen()
	keyPart := 0
	if kl > inlineKeyWidth {
		keyPart = kl
	}
	blob := deref(s.indirect(), blobSizeFor(kl, vl))
	out := make([]byte, vl)
	copy(out, blob[keyPart:keyPart+vl])
	return out
}

func (l *MVLeaf) keyEquals(s slot, key []byte, deref derefFunc) bool {
	kl := s.keyLen()
	if kl != len(key) {
		return false
	}
	if kl <= inlineKeyWidth {
		return bytesEqual(s.keyInline()[:kl], key)
	}
	blob := deref(s.indirect(), blobSizeFor(kl, s.valLen()))
	return bytesEqual(blob[:kl], key)
}

// find linearly scans occupied slots for key, consulting the fingerprint
// before a full compare (spec.md §4.2: "Hash fingerprint, if present,
// filters early"). Returns noneIndex if absent.
func (l *MVLeaf) find(key []byte, deref derefFunc) int {
	fp := hash.Fingerprint(key)
	for i := 0; i < LeafKeys; i++ {
		s := l.slot(i)
		if s.status() == slotEmpty {
			continue
		}
		if s.fingerprint() != fp {
			continue
		}
		if l.keyEquals(s, key, deref) {
			return i
		}
	}
	return noneIndex
}

// assign implements spec.md §4.2's assign contract: overwrite an existing
// key in place, or install into the first empty slot, or report NoRoom.
func (l *MVLeaf) assign(tx *pmpool.Tx, deref derefFunc, key, value []byte) (assignOutcome, error) {
	fp := hash.Fingerprint(key)

	if idx := l.find(key, deref); idx != noneIndex {
		return l.overwrite(tx, idx, key, value, fp)
	}
	for i := 0; i < LeafKeys; i++ {
		if l.slot(i).status() == slotEmpty {
			return l.install(tx, i, key, value, fp)
		}
	}
	return assignNoRoom, nil
}

// writeSlotContent builds the full new slot state in a scratch buffer and
// commits it with a single undo-logged Tx.Write, allocating an indirect
// blob first if either key or value overflows its inline width.
func (l *MVLeaf) writeSlotContent(tx *pmpool.Tx, idx int, key, value []byte, fp uint8) (assignOutcome, error) {
	return l.writeSlotContentReuse(tx, idx, key, value, fp, pmpool.NullOID, 0)
}

// writeSlotContentReuse is writeSlotContent's general form: when reuseOid is
// non-null and the new blob fits within reuseCap bytes, the existing blob is
// overwritten in place instead of allocating a new one. overwrite uses this
// to honor spec.md §7's "a same-size-or-smaller overwrite never allocates"
// for a slot whose key was already stored indirectly.
func (l *MVLeaf) writeSlotContentReuse(tx *pmpool.Tx, idx int, key, value []byte, fp uint8, reuseOid pmpool.ObjectID, reuseCap int) (assignOutcome, error) {
	scratch := pmpool.Scratch(SlotSize)
	defer pmpool.ReleaseScratch(scratch)
	for i := range scratch {
		scratch[i] = 0
	}
	ns := newSlot(scratch)
	ns.setKeyLen(len(key))
	ns.setValLen(len(value))
	ns.setFingerprint(fp)

	keyIndirect := len(key) > inlineKeyWidth
	valIndirect := len(value) > inlineValueWidth

	if keyIndirect || valIndirect {
		blobSize := blobSizeFor(len(key), len(value))
		oid := reuseOid
		if oid.IsNull() || blobSize > reuseCap {
			var err error
			oid, err = tx.Alloc(blobSize)
			if err != nil {
				return assignFailed, err
			}
		}
		blob := pmpool.Scratch(blobSize)
		defer pmpool.ReleaseScratch(blob)
		pos := 0
		if keyIndirect {
			copy(blob[pos:], key)
			pos += len(key)
		} else {
			copy(ns.keyInline(), key)
		}
		if valIndirect {
			copy(blob[pos:], value)
		} else {
			copy(ns.valInline(), value)
		}
		if err := tx.Write(oid, blobSize, blob); err != nil {
			return assignFailed, err
		}
		ns.setIndirect(oid)
		ns.setStatus(slotIndirect)
	} else {
		copy(ns.keyInline(), key)
		copy(ns.valInline(), value)
		ns.setIndirect(pmpool.NullOID)
		ns.setStatus(slotInline)
	}

	if err := tx.Write(l.slotOID(idx), SlotSize, scratch); err != nil {
		return assignFailed, err
	}
	return assignOK, nil
}

func (l *MVLeaf) install(tx *pmpool.Tx, idx int, key, value []byte, fp uint8) (assignOutcome, error) {
	return l.writeSlotContent(tx, idx, key, value, fp)
}

// overwrite replaces the key at idx in place. assign only reaches here after
// find matched this slot, so the key itself never changes; what can change
// is the value's size and, with it, whether a blob is needed at all.
func (l *MVLeaf) overwrite(tx *pmpool.Tx, idx int, key, value []byte, fp uint8) (assignOutcome, error) {
	old := l.slot(idx)
	oldStatus := old.status()
	oldIndirect := old.indirect()
	oldBlobSize := blobSizeFor(old.keyLen(), old.valLen())

	var outcome assignOutcome
	var err error
	if oldStatus == slotIndirect {
		outcome, err = l.writeSlotContentReuse(tx, idx, key, value, fp, oldIndirect, oldBlobSize)
	} else {
		outcome, err = l.writeSlotContent(tx, idx, key, value, fp)
	}
	if outcome != assignOK {
		return outcome, err
	}

	if oldStatus == slotIndirect {
		reused := l.slot(idx).status() == slotIndirect && l.slot(idx).indirect() == oldIndirect
		if !reused {
			if err := tx.Free(oldIndirect, oldBlobSize); err != nil {
				return assignFailed, err
			}
		}
	}
	return assignOK, nil
}

// erase marks the slot holding key EMPTY and frees its indirect blob if any.
// Never reshuffles other slots.
func (l *MVLeaf) erase(tx *pmpool.Tx, deref derefFunc, key []byte) (Result, error) {
	idx := l.find(key, deref)
	if idx == noneIndex {
		return NotFound, nil
	}
	s := l.slot(idx)
	if s.status() == slotIndirect {
		if err := tx.Free(s.indirect(), blobSizeFor(s.keyLen(), s.valLen())); err != nil {
			return NotFound, err
		}
	}
	scratch := pmpool.Scratch(SlotSize)
	defer pmpool.ReleaseScratch(scratch)
	for i := range scratch {
		scratch[i] = 0
	}
	if err := tx.Write(l.slotOID(idx), SlotSize, scratch); err != nil {
		return NotFound, err
	}
	return OK, nil
}

// occupied reports how many slots currently hold a key.
func (l *MVLeaf) occupied() int {
	n := 0
	for i := 0; i < LeafKeys; i++ {
		if l.slot(i).status() != slotEmpty {
			n++
		}
	}
	return n
}

// sort returns the indices of occupied slots in ascending key order, used
// to compute split separators and to determine a leaf's minimum key.
func (l *MVLeaf) sort(deref derefFunc) []int {
	type entry struct {
		idx int
		key []byte
	}
	var entries []entry
	for i := 0; i < LeafKeys; i++ {
		s := l.slot(i)
		if s.status() == slotEmpty {
			continue
		}
		entries = append(entries, entry{idx: i, key: l.keyBytes(s, deref)})
	}
	sort.Slice(entries, func(a, b int) bool {
		return bytes.Compare(entries[a].key, entries[b].key) < 0
	})
	perm := make([]int, len(entries))
	for i, e := range entries {
		perm[i] = e.idx
	}
	return perm
}

// minKey returns the smallest key in the leaf, or nil if it is empty.
func (l *MVLeaf) minKey(deref derefFunc) []byte {
	sorted := l.sort(deref)
	if len(sorted) == 0 {
		return nil
	}
	return l.keyBytes(l.slot(sorted[0]), deref)
}
