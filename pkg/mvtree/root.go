package mvtree

import (
	"encoding/binary"

	"github.com/huynhanx03/mvtreekv/pkg/pmpool"
)

// rootSize is MVRoot's fixed on-media width: a single oid (spec.md §6:
// "MVRoot: { leaf_head: oid }").
const rootSize = 16

// mvRoot is an accessor over the durable MVRoot object: the pool-global
// anchor holding the head of the persistent leaf list.
type mvRoot struct {
	raw []byte
}

func newMVRoot(raw []byte) mvRoot {
	return mvRoot{raw: raw[:rootSize:rootSize]}
}

func (r mvRoot) head() pmpool.ObjectID {
	off := binary.LittleEndian.Uint64(r.raw[8:])
	if off == 0 {
		return pmpool.NullOID
	}
	pool := binary.LittleEndian.Uint64(r.raw[0:])
	return pmpool.ObjectID{Pool: pool, Offset: off}
}

func (r mvRoot) setHead(oid pmpool.ObjectID) {
	binary.LittleEndian.PutUint64(r.raw[0:], oid.Pool)
	binary.LittleEndian.PutUint64(r.raw[8:], oid.Offset)
}
