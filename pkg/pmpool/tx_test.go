package pmpool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTx_CommitPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.mvt")
	p, err := Open(testConfig(path))
	require.NoError(t, err)
	defer p.Close()

	tx := p.Begin()
	oid, err := tx.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, tx.Write(oid, 16, []byte("0123456789abcdef")))
	require.NoError(t, tx.Commit())

	assert.Equal(t, []byte("0123456789abcdef"), p.Deref(oid, 16))
}

func TestTx_AbortUndoesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.mvt")
	p, err := Open(testConfig(path))
	require.NoError(t, err)
	defer p.Close()

	tx := p.Begin()
	oid, err := tx.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, tx.Write(oid, 16, []byte("before-the-abort")))
	require.NoError(t, tx.Commit())

	tx2 := p.Begin()
	require.NoError(t, tx2.Write(oid, 16, []byte("after-the-abort!")))
	require.NoError(t, tx2.Abort())

	assert.Equal(t, []byte("before-the-abort"), p.Deref(oid, 16))
}

func TestTx_AbortFreesItsOwnAllocs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.mvt")
	p, err := Open(testConfig(path))
	require.NoError(t, err)
	defer p.Close()

	tx := p.Begin()
	oid, err := tx.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, tx.Abort())

	// the block tx allocated and then gave up should be reusable by a
	// later transaction rather than leaking as bump-allocated but
	// unreachable space.
	tx2 := p.Begin()
	oid2, err := tx2.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())
	assert.Equal(t, oid.Offset, oid2.Offset)
}

func TestTx_OperationsAfterCloseFail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.mvt")
	p, err := Open(testConfig(path))
	require.NoError(t, err)
	defer p.Close()

	tx := p.Begin()
	require.NoError(t, tx.Commit())

	_, err = tx.Alloc(16)
	assert.ErrorIs(t, err, ErrTxClosed)
	assert.ErrorIs(t, tx.Free(NullOID, 16), ErrTxClosed)
	assert.ErrorIs(t, tx.Write(NullOID, 16, nil), ErrTxClosed)
}

func TestFaultInjector_ForcesAllocFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.mvt")
	p, err := Open(testConfig(path))
	require.NoError(t, err)
	defer p.Close()

	p.SetAllocShouldFail(true)
	tx := p.Begin()
	_, err = tx.Alloc(16)
	assert.ErrorIs(t, err, ErrAllocFailed)
	require.NoError(t, tx.Abort())

	p.SetAllocShouldFail(false)
	tx2 := p.Begin()
	_, err = tx2.Alloc(16)
	assert.NoError(t, err)
	require.NoError(t, tx2.Commit())
}
