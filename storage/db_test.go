package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTxnCommitAndDiscard(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)

	txn, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, txn.Put([]byte("a"), []byte("1")))
	value, ok, err := txn.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok, "transaction must observe its own writes")
	require.Equal(t, []byte("1"), value)
	require.NoError(t, txn.Commit())

	txn, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, txn.Put([]byte("b"), []byte("2")))
	require.NoError(t, txn.Delete([]byte("a")))
	txn.Discard()

	view, err := db.View()
	require.NoError(t, err)
	defer view.Release()
	_, ok, err = view.Get([]byte("b"))
	require.NoError(t, err)
	require.False(t, ok, "discarded write leaked")
	value, ok, err = view.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok, "discarded delete leaked")
	require.Equal(t, []byte("1"), value)
}

func TestIterateOrderAndBounds(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)

	txn, err := db.Begin()
	require.NoError(t, err)
	for _, k := range []string{"p/c", "p/a", "q/a", "p/b"} {
		require.NoError(t, txn.Put([]byte(k), []byte(k)))
	}
	require.NoError(t, txn.Commit())

	view, err := db.View()
	require.NoError(t, err)
	defer view.Release()

	var keys []string
	err = view.Iterate([]byte("p/"), PrefixEnd([]byte("p/")), func(key, _ []byte) (bool, error) {
		keys = append(keys, string(key))
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"p/a", "p/b", "p/c"}, keys)

	keys = keys[:0]
	err = view.Iterate([]byte("p/b"), nil, func(key, _ []byte) (bool, error) {
		keys = append(keys, string(key))
		return len(keys) < 2, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"p/b", "p/c"}, keys)
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)
	view, err := db.View()
	require.NoError(t, err)
	defer view.Release()

	store := ReadOnly(view)
	require.ErrorIs(t, store.Put([]byte("k"), []byte("v")), ErrReadOnly)
	require.ErrorIs(t, store.Delete([]byte("k")), ErrReadOnly)
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	txn, err := db1.Begin()
	require.NoError(t, err)
	require.NoError(t, txn.Put([]byte("key"), []byte("value")))
	require.NoError(t, txn.Commit())
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()
	view, err := db2.View()
	require.NoError(t, err)
	defer view.Release()
	got, ok, err := view.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("value"), got)
}
