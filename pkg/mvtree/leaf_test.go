package mvtree

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynhanx03/mvtreekv/pkg/mvtreelog"
	"github.com/huynhanx03/mvtreekv/pkg/pmpool"
)

func newTestLeaf(t *testing.T) (*pmpool.Pool, *MVLeaf) {
	t.Helper()
	cfg := pmpool.Config{
		Path:   filepath.Join(t.TempDir(), "leaf.mvt"),
		Size:   pmpool.MinPoolSize,
		Logger: mvtreelog.Config{Level: "error"},
	}
	pool, err := pmpool.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	tx := pool.Begin()
	oid, err := tx.Alloc(LeafSize)
	require.NoError(t, err)
	scratch := pmpool.Scratch(LeafSize)
	defer pmpool.ReleaseScratch(scratch)
	for i := range scratch {
		scratch[i] = 0
	}
	require.NoError(t, tx.Write(oid, LeafSize, scratch))
	require.NoError(t, tx.Commit())

	return pool, newMVLeaf(oid, pool.Deref(oid, LeafSize))
}

func derefFor(pool *pmpool.Pool) derefFunc {
	return func(oid pmpool.ObjectID, size int) []byte { return pool.Deref(oid, size) }
}

func TestLeaf_AssignAndFind(t *testing.T) {
	pool, leaf := newTestLeaf(t)
	deref := derefFor(pool)

	tx := pool.Begin()
	outcome, err := leaf.assign(tx, deref, []byte("key1"), []byte("value1"))
	require.NoError(t, err)
	assert.Equal(t, assignOK, outcome)
	require.NoError(t, tx.Commit())

	idx := leaf.find([]byte("key1"), deref)
	require.NotEqual(t, noneIndex, idx)
	assert.Equal(t, []byte("value1"), leaf.valueBytes(leaf.slot(idx), deref))
	assert.Equal(t, noneIndex, leaf.find([]byte("missing"), deref))
}

func TestLeaf_OverwriteShapes(t *testing.T) {
	pool, leaf := newTestLeaf(t)
	deref := derefFor(pool)

	for _, v := range []string{"value1", "VALUE1", "new_value", "?"} {
		tx := pool.Begin()
		outcome, err := leaf.assign(tx, deref, []byte("key1"), []byte(v))
		require.NoError(t, err)
		require.Equal(t, assignOK, outcome)
		require.NoError(t, tx.Commit())
	}

	assert.Equal(t, 1, leaf.occupied())
	idx := leaf.find([]byte("key1"), deref)
	assert.Equal(t, []byte("?"), leaf.valueBytes(leaf.slot(idx), deref))
}

func TestLeaf_BinaryKey(t *testing.T) {
	pool, leaf := newTestLeaf(t)
	deref := derefFor(pool)

	tx := pool.Begin()
	_, err := leaf.assign(tx, deref, []byte("a"), []byte("should_not_change"))
	require.NoError(t, err)
	_, err = leaf.assign(tx, deref, []byte("a\x00b"), []byte("stuff"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	idx := leaf.find([]byte("a\x00b"), deref)
	require.NotEqual(t, noneIndex, idx)
	assert.Equal(t, []byte("stuff"), leaf.valueBytes(leaf.slot(idx), deref))

	idxA := leaf.find([]byte("a"), deref)
	require.NotEqual(t, noneIndex, idxA)
	assert.Equal(t, []byte("should_not_change"), leaf.valueBytes(leaf.slot(idxA), deref))

	tx2 := pool.Begin()
	result, err := leaf.erase(tx2, deref, []byte("a\x00b"))
	require.NoError(t, err)
	assert.Equal(t, OK, result)
	require.NoError(t, tx2.Commit())

	assert.Equal(t, noneIndex, leaf.find([]byte("a\x00b"), deref))
	assert.NotEqual(t, noneIndex, leaf.find([]byte("a"), deref), "erasing 'a\\x00b' must not disturb 'a'")
}

func TestLeaf_EmptyKeyAndValue(t *testing.T) {
	pool, leaf := newTestLeaf(t)
	deref := derefFor(pool)

	tx := pool.Begin()
	outcome, err := leaf.assign(tx, deref, []byte(""), []byte(""))
	require.NoError(t, err)
	require.Equal(t, assignOK, outcome)
	require.NoError(t, tx.Commit())

	idx := leaf.find([]byte(""), deref)
	require.NotEqual(t, noneIndex, idx)
	assert.Equal(t, []byte(""), leaf.valueBytes(leaf.slot(idx), deref))
}

func TestLeaf_IndirectBlobForOversizedKeyAndValue(t *testing.T) {
	pool, leaf := newTestLeaf(t)
	deref := derefFor(pool)

	longKey := bytes.Repeat([]byte("k"), inlineKeyWidth+5)
	longValue := bytes.Repeat([]byte("v"), inlineValueWidth+9)

	tx := pool.Begin()
	outcome, err := leaf.assign(tx, deref, longKey, longValue)
	require.NoError(t, err)
	require.Equal(t, assignOK, outcome)
	require.NoError(t, tx.Commit())

	idx := leaf.find(longKey, deref)
	require.NotEqual(t, noneIndex, idx)
	s := leaf.slot(idx)
	assert.Equal(t, slotIndirect, s.status())
	assert.Equal(t, longKey, leaf.keyBytes(s, deref))
	assert.Equal(t, longValue, leaf.valueBytes(s, deref))
}

func TestLeaf_EraseFreesIndirectBlob(t *testing.T) {
	pool, leaf := newTestLeaf(t)
	deref := derefFor(pool)

	longValue := bytes.Repeat([]byte("v"), inlineValueWidth+16)
	tx := pool.Begin()
	_, err := leaf.assign(tx, deref, []byte("k"), longValue)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	blob := leaf.slot(leaf.find([]byte("k"), deref)).indirect()

	tx2 := pool.Begin()
	result, err := leaf.erase(tx2, deref, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, OK, result)
	require.NoError(t, tx2.Commit())

	assert.Equal(t, 0, leaf.occupied())
	assert.Equal(t, noneIndex, leaf.find([]byte("k"), deref))

	// The freed blob is back on its free list, so the next allocation of
	// the same size gets the same block.
	tx3 := pool.Begin()
	reused, err := tx3.Alloc(len(longValue))
	require.NoError(t, err)
	assert.Equal(t, blob, reused)
	require.NoError(t, tx3.Abort())
}

func TestLeaf_SortOrdersByKey(t *testing.T) {
	pool, leaf := newTestLeaf(t)
	deref := derefFor(pool)

	tx := pool.Begin()
	for _, k := range []string{"charlie", "alpha", "bravo"} {
		_, err := leaf.assign(tx, deref, []byte(k), []byte(k))
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	sorted := leaf.sort(deref)
	require.Len(t, sorted, 3)
	var got []string
	for _, idx := range sorted {
		got = append(got, string(leaf.keyBytes(leaf.slot(idx), deref)))
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, got)
	assert.Equal(t, []byte("alpha"), leaf.minKey(deref))
}

func TestLeaf_OverwriteIndirectKeyReusesBlobWhenItFits(t *testing.T) {
	pool, leaf := newTestLeaf(t)
	deref := derefFor(pool)

	longKey := bytes.Repeat([]byte("k"), inlineKeyWidth+5)
	longValue := bytes.Repeat([]byte("v"), inlineValueWidth+40)

	tx := pool.Begin()
	outcome, err := leaf.assign(tx, deref, longKey, longValue)
	require.NoError(t, err)
	require.Equal(t, assignOK, outcome)
	require.NoError(t, tx.Commit())

	idx := leaf.find(longKey, deref)
	require.NotEqual(t, noneIndex, idx)
	oidBefore := leaf.slot(idx).indirect()

	shorterValue := bytes.Repeat([]byte("w"), inlineValueWidth+1)
	tx2 := pool.Begin()
	outcome, err = leaf.assign(tx2, deref, longKey, shorterValue)
	require.NoError(t, err)
	require.Equal(t, assignOK, outcome)
	require.NoError(t, tx2.Commit())

	idx = leaf.find(longKey, deref)
	require.NotEqual(t, noneIndex, idx)
	s := leaf.slot(idx)
	assert.Equal(t, slotIndirect, s.status())
	assert.Equal(t, oidBefore, s.indirect(), "a same-size-or-smaller overwrite must reuse the existing blob")
	assert.Equal(t, shorterValue, leaf.valueBytes(s, deref))

	largerValue := bytes.Repeat([]byte("z"), inlineValueWidth+200)
	tx3 := pool.Begin()
	outcome, err = leaf.assign(tx3, deref, longKey, largerValue)
	require.NoError(t, err)
	require.Equal(t, assignOK, outcome)
	require.NoError(t, tx3.Commit())

	idx = leaf.find(longKey, deref)
	require.NotEqual(t, noneIndex, idx)
	assert.Equal(t, largerValue, leaf.valueBytes(leaf.slot(idx), deref))
}

func TestLeaf_AssignReportsNoRoomWhenFull(t *testing.T) {
	pool, leaf := newTestLeaf(t)
	deref := derefFor(pool)

	tx := pool.Begin()
	for i := 0; i < LeafKeys; i++ {
		k := []byte{byte(i)}
		outcome, err := leaf.assign(tx, deref, k, k)
		require.NoError(t, err)
		require.Equal(t, assignOK, outcome)
	}
	require.NoError(t, tx.Commit())

	tx2 := pool.Begin()
	outcome, err := leaf.assign(tx2, deref, []byte("one-too-many"), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, assignNoRoom, outcome)
	require.NoError(t, tx2.Abort())
}
