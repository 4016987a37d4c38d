package mvtree

import (
	"encoding/binary"

	"github.com/huynhanx03/mvtreekv/pkg/pmpool"
)

// Slot field offsets, matching SPEC_FULL.md §3's 74-byte layout:
//
//	status       uint8
//	fingerprint  uint8
//	keyLen       uint16 (little-endian)
//	keyInline    [20]byte
//	valLen       uint16 (little-endian)
//	valInline    [32]byte
//	indirect     pmpool.ObjectID (16 bytes)
const (
	slotStatusOffset   = 0
	slotFPOffset       = 1
	slotKeyLenOffset   = 2
	slotKeyInlOffset   = 4
	slotValLenOffset   = slotKeyInlOffset + inlineKeyWidth
	slotValInlOffset   = slotValLenOffset + 2
	slotIndirectOffset = slotValInlOffset + inlineValueWidth

	// SlotSize is the fixed on-media width of one slot.
	SlotSize = slotIndirectOffset + 16 // ObjectID is 2 uint64 = 16 bytes
)

// slot is an accessor over one SlotSize-byte range inside a leaf's mapped
// backing storage. Like pmpool's superblock, it never copies: every getter
// and setter touches the mapping directly, the same SoA/offset-accessor
// style the teacher's datastructs/btree uses for its node type, adapted
// from a uniform []uint64 page to this engine's mixed-width slot record.
type slot struct {
	raw []byte
}

func newSlot(raw []byte) slot {
	return slot{raw: raw[:SlotSize:SlotSize]}
}

func (s slot) status() slotStatus {
	return slotStatus(s.raw[slotStatusOffset])
}

func (s slot) setStatus(st slotStatus) {
	s.raw[slotStatusOffset] = byte(st)
}

func (s slot) fingerprint() uint8 {
	return s.raw[slotFPOffset]
}

func (s slot) setFingerprint(fp uint8) {
	s.raw[slotFPOffset] = fp
}

func (s slot) keyLen() int {
	return int(binary.LittleEndian.Uint16(s.raw[slotKeyLenOffset:]))
}

func (s slot) setKeyLen(n int) {
	binary.LittleEndian.PutUint16(s.raw[slotKeyLenOffset:], uint16(n))
}

func (s slot) keyInline() []byte {
	return s.raw[slotKeyInlOffset : slotKeyInlOffset+inlineKeyWidth]
}

func (s slot) valLen() int {
	return int(binary.LittleEndian.Uint16(s.raw[slotValLenOffset:]))
}

func (s slot) setValLen(n int) {
	binary.LittleEndian.PutUint16(s.raw[slotValLenOffset:], uint16(n))
}

func (s slot) valInline() []byte {
	return s.raw[slotValInlOffset : slotValInlOffset+inlineValueWidth]
}

func (s slot) indirect() pmpool.ObjectID {
	pool := binary.LittleEndian.Uint64(s.raw[slotIndirectOffset:])
	off := binary.LittleEndian.Uint64(s.raw[slotIndirectOffset+8:])
	return pmpool.ObjectID{Pool: pool, Offset: off}
}

func (s slot) setIndirect(oid pmpool.ObjectID) {
	binary.LittleEndian.PutUint64(s.raw[slotIndirectOffset:], oid.Pool)
	binary.LittleEndian.PutUint64(s.raw[slotIndirectOffset+8:], oid.Offset)
}

func (s slot) clear() {
	for i := range s.raw {
		s.raw[i] = 0
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
