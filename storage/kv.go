package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KVStore is the typed view of a Database consumed by the sale ledgers.
// Values are RLP encoded; lists are append-only and returned in insertion
// order.
type KVStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out *[][]byte) error
}

// Manager adapts a raw Database into a KVStore.
type Manager struct {
	db Database
}

// NewManager wraps the supplied database.
func NewManager(db Database) *Manager {
	return &Manager{db: db}
}

// KVGet decodes the stored value into out. It reports false when the key has
// never been written.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, fmt.Errorf("storage: manager not initialised")
	}
	raw, err := m.db.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut RLP-encodes the value and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("storage: manager not initialised")
	}
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// KVDelete removes the key. Deleting an absent key is not an error.
func (m *Manager) KVDelete(key []byte) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("storage: manager not initialised")
	}
	return m.db.Delete(key)
}

// KVAppend appends a raw entry to the list stored under key.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("storage: manager not initialised")
	}
	var list [][]byte
	if err := m.KVGetList(key, &list); err != nil {
		return err
	}
	entry := make([]byte, len(value))
	copy(entry, value)
	list = append(list, entry)
	return m.KVPut(key, list)
}

// KVGetList loads the list stored under key. A missing key yields an empty
// list.
func (m *Manager) KVGetList(key []byte, out *[][]byte) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("storage: manager not initialised")
	}
	if out == nil {
		return fmt.Errorf("storage: nil list target")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		*out = nil
	}
	return nil
}

var _ KVStore = (*Manager)(nil)
