package pmpool

import "github.com/pkg/errors"

// Kind classifies why a pool could not be constructed or opened, mirroring
// the teacher's convention of a small closed error taxonomy wrapped with
// github.com/pkg/errors rather than ad-hoc fmt.Errorf chains.
type Kind int

const (
	// KindValidation means Config failed struct validation before any file
	// was touched.
	KindValidation Kind = iota
	// KindPathUnusable means the backing file could not be created, opened,
	// or sized.
	KindPathUnusable
	// KindSizeTooSmall means the requested or existing pool size is below
	// MinPoolSize.
	KindSizeTooSmall
	// KindLayoutMismatch means the superblock magic/version does not match
	// what this build understands, or the pool-uuid a caller-supplied root
	// oid references does not match the opened pool's own tag.
	KindLayoutMismatch
	// KindAllocFailed means an allocation could not be satisfied, whether
	// because the pool is full or because fault injection forced it.
	KindAllocFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPathUnusable:
		return "path_unusable"
	case KindSizeTooSmall:
		return "size_too_small"
	case KindLayoutMismatch:
		return "layout_mismatch"
	case KindAllocFailed:
		return "alloc_failed"
	default:
		return "unknown"
	}
}

// ConstructionError reports why Open/Create failed.
type ConstructionError struct {
	Kind Kind
	err  error
}

func (e *ConstructionError) Error() string {
	return e.Kind.String() + ": " + e.err.Error()
}

func (e *ConstructionError) Unwrap() error {
	return e.err
}

func newConstructionError(kind Kind, msg string, args ...interface{}) *ConstructionError {
	return &ConstructionError{Kind: kind, err: errors.Errorf(msg, args...)}
}

func wrapConstructionError(kind Kind, err error, msg string) *ConstructionError {
	return &ConstructionError{Kind: kind, err: errors.Wrap(err, msg)}
}

// ErrAllocFailed is returned by Tx.Alloc when the pool has no room left, or
// when fault injection (SetAllocShouldFail) forces the failure for tests.
var ErrAllocFailed = errors.New("pmpool: allocation failed")

// ErrTxClosed is returned by any Tx method called after Commit or Abort.
var ErrTxClosed = errors.New("pmpool: transaction already closed")
