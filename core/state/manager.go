package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/storage"
)

var errNilStore = errors.New("state: store not configured")

// Manager maps the marketplace, bank and NFT tables onto an ordered key-value
// store. Records are RLP encoded. A Manager is bound to a single transaction
// or snapshot and is not safe for concurrent use.
type Manager struct {
	store storage.Store
}

// NewManager creates a state manager operating on the provided store.
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) kv() (storage.Store, error) {
	if m == nil || m.store == nil {
		return nil, errNilStore
	}
	return m.store, nil
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	kv, err := m.kv()
	if err != nil {
		return false, err
	}
	data, ok, err := kv.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %x: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	kv, err := m.kv()
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %x: %w", key, err)
	}
	return kv.Put(key, encoded)
}

func (m *Manager) has(key []byte) (bool, error) {
	kv, err := m.kv()
	if err != nil {
		return false, err
	}
	_, ok, err := kv.Get(key)
	return ok, err
}

func (m *Manager) put(key, value []byte) error {
	kv, err := m.kv()
	if err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	return kv.Put(key, value)
}

func (m *Manager) delete(key []byte) error {
	kv, err := m.kv()
	if err != nil {
		return err
	}
	return kv.Delete(key)
}

func (m *Manager) getUint64(key []byte) (uint64, error) {
	kv, err := m.kv()
	if err != nil {
		return 0, err
	}
	data, ok, err := kv.Get(key)
	if err != nil || !ok {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("state: counter %x has %d bytes", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func (m *Manager) putUint64(key []byte, v uint64) error {
	return m.put(key, binary.BigEndian.AppendUint64(nil, v))
}

// scan walks the keys carrying prefix, starting at start when non-nil.
func (m *Manager) scan(prefix, start []byte, fn func(key, value []byte) (bool, error)) error {
	kv, err := m.kv()
	if err != nil {
		return err
	}
	if start == nil {
		start = prefix
	}
	return kv.Iterate(start, storage.PrefixEnd(prefix), fn)
}
