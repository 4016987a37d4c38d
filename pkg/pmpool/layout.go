package pmpool

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/huynhanx03/mvtreekv/pkg/internal/calibrated"
)

// Superblock field offsets. The header is fixed-size and lives at the start
// of the mapped file; everything after superblockSize is arena, handed out
// by alloc.go's bump pointer and free lists.
const (
	magicOffset        = 0
	magicSize          = 8
	versionOffset      = 8
	poolUUIDOffset     = 16
	poolUUIDSize       = 16
	poolTagOffset      = 32
	fileSizeOffset     = 40
	rootOffsetOffset   = 48
	bumpOffsetOffset   = 56
	freeListHeadOffset = 64
	freeListHeadSize   = 8 * numBuckets

	superblockSize = 256 // rounded up from 64+freeListHeadSize with slack for future fields
	layoutVersion  = 1

	// numBuckets mirrors the teacher's calibrated.Steps size classing,
	// applied here to persistent free lists instead of sync.Pool buckets.
	numBuckets = calibrated.Steps
)

var magicBytes = [magicSize]byte{'M', 'V', 'T', 'R', 'E', 'E', '0', '1'}

// superblock is a thin accessor over the first superblockSize bytes of a
// mapped pool file. It never copies; every getter/setter reads or writes the
// mapping directly so changes are visible to the OS's page cache immediately
// (durability across a crash still depends on Pool.Sync, same as any other
// in-place update in this scheme).
type superblock struct {
	raw []byte
}

func newSuperblock(mapped []byte) superblock {
	return superblock{raw: mapped[:superblockSize:superblockSize]}
}

func (s superblock) init(fileSize uint64) uuid.UUID {
	copy(s.raw[magicOffset:magicOffset+magicSize], magicBytes[:])
	binary.LittleEndian.PutUint32(s.raw[versionOffset:], layoutVersion)

	id := uuid.New()
	copy(s.raw[poolUUIDOffset:poolUUIDOffset+poolUUIDSize], id[:])
	binary.LittleEndian.PutUint64(s.raw[poolTagOffset:], poolTag(id))
	binary.LittleEndian.PutUint64(s.raw[fileSizeOffset:], fileSize)
	binary.LittleEndian.PutUint64(s.raw[rootOffsetOffset:], 0)
	binary.LittleEndian.PutUint64(s.raw[bumpOffsetOffset:], superblockSize)
	for i := 0; i < numBuckets; i++ {
		s.setFreeListHead(i, 0)
	}
	return id
}

func (s superblock) checkMagicAndVersion() error {
	if string(s.raw[magicOffset:magicOffset+magicSize]) != string(magicBytes[:]) {
		return newConstructionError(KindLayoutMismatch, "bad superblock magic")
	}
	if v := binary.LittleEndian.Uint32(s.raw[versionOffset:]); v != layoutVersion {
		return newConstructionError(KindLayoutMismatch, "unsupported layout version %d", v)
	}
	return nil
}

func (s superblock) poolUUID() uuid.UUID {
	var id uuid.UUID
	copy(id[:], s.raw[poolUUIDOffset:poolUUIDOffset+poolUUIDSize])
	return id
}

func (s superblock) poolTag() uint64 {
	return binary.LittleEndian.Uint64(s.raw[poolTagOffset:])
}

func (s superblock) fileSize() uint64 {
	return binary.LittleEndian.Uint64(s.raw[fileSizeOffset:])
}

func (s superblock) rootOffset() uint64 {
	return binary.LittleEndian.Uint64(s.raw[rootOffsetOffset:])
}

func (s superblock) setRootOffset(off uint64) {
	binary.LittleEndian.PutUint64(s.raw[rootOffsetOffset:], off)
}

func (s superblock) bumpOffset() uint64 {
	return binary.LittleEndian.Uint64(s.raw[bumpOffsetOffset:])
}

func (s superblock) setBumpOffset(off uint64) {
	binary.LittleEndian.PutUint64(s.raw[bumpOffsetOffset:], off)
}

func (s superblock) freeListHead(bucket int) uint64 {
	off := freeListHeadOffset + bucket*8
	return binary.LittleEndian.Uint64(s.raw[off:])
}

func (s superblock) setFreeListHead(bucket int, head uint64) {
	off := freeListHeadOffset + bucket*8
	binary.LittleEndian.PutUint64(s.raw[off:], head)
}
