// Package mvtree implements the ordered key/value engine: durable leaves
// holding fixed-capacity slot arrays, a volatile inner-node index rebuilt on
// every open, and the free-leaf pool that lets Put make progress even when
// the backing pool is full.
package mvtree

// Tuning constants. Both are part of the on-media contract: changing either
// changes leaf size (LeafKeys) or inner-node fanout (InnerKeys) and breaks
// existing pools, exactly as spec.md §3 warns.
const (
	// LeafKeys is the number of slots a durable leaf holds.
	LeafKeys = 48

	// InnerKeys is the maximum number of children an inner node routes to.
	InnerKeys = 5

	// inlineKeyWidth and inlineValueWidth bound what a slot stores without
	// an indirect blob allocation.
	inlineKeyWidth   = 20
	inlineValueWidth = 32
)
