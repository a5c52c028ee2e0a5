package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrReadOnly is returned when a write is attempted through a snapshot view.
var ErrReadOnly = errors.New("storage: read-only view")

// Reader exposes point lookups and ordered range scans.
type Reader interface {
	// Get returns the stored value. The boolean reports whether the key exists.
	Get(key []byte) ([]byte, bool, error)
	// Iterate walks keys in [start, limit) in ascending byte order. A nil limit
	// scans to the end of the keyspace. Returning false from fn stops the scan.
	Iterate(start, limit []byte, fn func(key, value []byte) (bool, error)) error
}

// Store is a readable and writable key-value view.
type Store interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Txn is an atomic unit of work. Writes become visible to other readers only
// after Commit; Discard drops every write made through the transaction.
type Txn interface {
	Store
	Commit() error
	Discard()
}

// View is a consistent point-in-time snapshot.
type View interface {
	Reader
	Release()
}

// Database is the persistence backend used by the state layer. Only one
// transaction may be open at a time; Begin blocks until the previous one is
// committed or discarded.
type Database interface {
	Begin() (Txn, error)
	View() (View, error)
	Close()
}

// LevelDB is a Database backed by goleveldb, either on disk or in memory.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewMemDB returns a LevelDB instance over volatile memory storage. Intended
// for tests and ephemeral devnets.
func NewMemDB() *LevelDB {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		// Memory storage cannot fail to open.
		panic(fmt.Sprintf("storage: open memdb: %v", err))
	}
	return &LevelDB{db: db}
}

// Begin opens a new transaction.
func (ldb *LevelDB) Begin() (Txn, error) {
	tr, err := ldb.db.OpenTransaction()
	if err != nil {
		return nil, err
	}
	return &levelTxn{tr: tr}, nil
}

// View returns a snapshot of the current committed state.
func (ldb *LevelDB) View() (View, error) {
	snap, err := ldb.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &levelView{snap: snap}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	_ = ldb.db.Close()
}

type levelTxn struct {
	tr *leveldb.Transaction
}

func (t *levelTxn) Get(key []byte) ([]byte, bool, error) {
	value, err := t.tr.Get(key, nil)
	return lookupResult(value, err)
}

func (t *levelTxn) Iterate(start, limit []byte, fn func(key, value []byte) (bool, error)) error {
	return walk(t.tr.NewIterator(&util.Range{Start: start, Limit: limit}, nil), fn)
}

func (t *levelTxn) Put(key, value []byte) error {
	return t.tr.Put(key, value, nil)
}

func (t *levelTxn) Delete(key []byte) error {
	return t.tr.Delete(key, nil)
}

func (t *levelTxn) Commit() error {
	return t.tr.Commit()
}

func (t *levelTxn) Discard() {
	t.tr.Discard()
}

type levelView struct {
	snap *leveldb.Snapshot
}

func (v *levelView) Get(key []byte) ([]byte, bool, error) {
	value, err := v.snap.Get(key, nil)
	return lookupResult(value, err)
}

func (v *levelView) Iterate(start, limit []byte, fn func(key, value []byte) (bool, error)) error {
	return walk(v.snap.NewIterator(&util.Range{Start: start, Limit: limit}, nil), fn)
}

func (v *levelView) Release() {
	v.snap.Release()
}

// ReadOnly adapts a snapshot to the Store interface; writes fail with
// ErrReadOnly.
func ReadOnly(r Reader) Store {
	return readOnlyStore{Reader: r}
}

type readOnlyStore struct {
	Reader
}

func (readOnlyStore) Put([]byte, []byte) error { return ErrReadOnly }

func (readOnlyStore) Delete([]byte) error { return ErrReadOnly }

// PrefixEnd returns the smallest key strictly greater than every key carrying
// the supplied prefix, or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	return util.BytesPrefix(prefix).Limit
}

func lookupResult(value []byte, err error) ([]byte, bool, error) {
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func walk(it iterator.Iterator, fn func(key, value []byte) (bool, error)) error {
	defer it.Release()
	for it.Next() {
		// The iterator reuses its buffers between steps.
		key := bytes.Clone(it.Key())
		value := bytes.Clone(it.Value())
		more, err := fn(key, value)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return it.Error()
}
