package mvtree

// Result is the operation-level outcome taxonomy from spec.md §7. It is
// returned by value, the same way the teacher's packages return a small
// closed status type rather than relying solely on `error` for expected,
// non-exceptional outcomes (NotFound, a no-op Remove).
type Result int

const (
	// OK means the operation committed, or was a defined no-op (Remove of
	// an absent key).
	OK Result = iota
	// NotFound means Get found no slot for the key.
	NotFound
	// Failed means Put aborted its transaction: some allocation it needed
	// (slot-local, indirect blob, or new leaf) could not be satisfied.
	// Durable state is exactly the pre-call state.
	Failed
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case NotFound:
		return "NOT_FOUND"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// slotStatus is a slot's occupancy state.
type slotStatus uint8

const (
	slotEmpty slotStatus = iota
	slotInline
	slotIndirect
)

// assignOutcome is leaf.assign's internal result, before MVTree decides
// whether a NoRoom needs a split.
type assignOutcome int

const (
	assignOK assignOutcome = iota
	assignNoRoom
	assignFailed
)

// noneIndex is find's sentinel for "no matching slot".
const noneIndex = -1
