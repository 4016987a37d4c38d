package pmpool

// SetAllocShouldFail forces every subsequent allocation to fail with
// ErrAllocFailed until called again with false. This is the pool's half of
// the spec's tx_alloc_should_fail testable property: tests use it to drive
// MVTree.Put down its abort-and-leave-state-unchanged path without needing
// to actually exhaust a multi-megabyte pool file.
func (p *Pool) SetAllocShouldFail(shouldFail bool) {
	p.alloc.failAlloc = shouldFail
}
