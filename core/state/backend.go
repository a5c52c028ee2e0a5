package state

import (
	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/native/marketplace"
	"nftmarket/storage"
)

func decode(data []byte, out interface{}) error {
	return rlp.DecodeBytes(data, out)
}

// Backend opens marketplace transactions and snapshots over a Database.
type Backend struct {
	db storage.Database
}

// NewBackend wraps db.
func NewBackend(db storage.Database) *Backend {
	return &Backend{db: db}
}

// Begin opens a write transaction. It blocks while another one is open.
func (b *Backend) Begin() (marketplace.Txn, error) {
	txn, err := b.db.Begin()
	if err != nil {
		return nil, err
	}
	return &Txn{Manager: NewManager(txn), txn: txn}, nil
}

// Snapshot returns a read-only view of committed state.
func (b *Backend) Snapshot() (marketplace.View, error) {
	view, err := b.db.View()
	if err != nil {
		return nil, err
	}
	return &View{Manager: NewManager(storage.ReadOnly(view)), view: view}, nil
}

// Update runs fn inside a transaction and commits when it returns nil.
// Genesis loading and test fixtures use it to seed balances and tokens.
func (b *Backend) Update(fn func(*Manager) error) error {
	txn, err := b.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(NewManager(txn)); err != nil {
		txn.Discard()
		return err
	}
	return txn.Commit()
}

// Txn is a Manager bound to an open transaction.
type Txn struct {
	*Manager
	txn storage.Txn
}

func (t *Txn) Commit() error { return t.txn.Commit() }

func (t *Txn) Discard() { t.txn.Discard() }

// View is a Manager bound to a snapshot.
type View struct {
	*Manager
	view storage.View
}

func (v *View) Release() { v.view.Release() }

var (
	_ marketplace.Backend = (*Backend)(nil)
	_ marketplace.Store   = (*Manager)(nil)
)
