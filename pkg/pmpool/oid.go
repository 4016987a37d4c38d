package pmpool

import "github.com/google/uuid"

// ObjectID is the 16-byte handle the spec calls an oid: (pool-uuid, offset).
// A full UUID is 128 bits on its own, so to keep the oid at 16 bytes total we
// fold the pool's identity into a 64-bit tag (poolTag, see layout.go) instead
// of carrying the whole UUID in every oid — see DESIGN.md's open-question
// log for why.
type ObjectID struct {
	Pool   uint64 // folded pool identity tag
	Offset uint64 // byte offset within the pool's mapped file
}

// NullOID is the zero-value oid. Offset 0 always belongs to the superblock,
// so it can never be a valid allocated object's offset and doubles safely as
// the NULL sentinel the spec requires for MVRoot.head, MVLeaf.next, and a
// slot's indirect field.
var NullOID = ObjectID{}

// IsNull reports whether oid is the NULL sentinel.
func (oid ObjectID) IsNull() bool {
	return oid.Offset == 0
}

// poolTag folds a uuid.UUID down to the 64-bit tag stored in an ObjectID and
// in the pool's superblock, by XOR-ing its two halves. Collisions between
// distinct pool UUIDs are possible in principle but do not matter: the tag is
// only ever compared against a single pool's own tag to catch the mistake of
// handing one pool's oid to another pool's Deref, not to distinguish pools
// globally.
func poolTag(id uuid.UUID) uint64 {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(id[i])
		lo = lo<<8 | uint64(id[i+8])
	}
	return hi ^ lo
}
