package pmpool

import "github.com/huynhanx03/mvtreekv/pkg/pool/byteslice"

// Scratch borrows a temporary buffer for assembling a value before it is
// written into the pool (e.g. an oversized value that must be staged
// contiguously before Tx.Write copies it into an indirect allocation).
// Callers must return it with ReleaseScratch.
func Scratch(size int) []byte {
	return byteslice.Get(size)
}

// ReleaseScratch returns a buffer obtained from Scratch.
func ReleaseScratch(b []byte) {
	byteslice.Put(b)
}
