package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"trustrent/storage"
)

// Manager reads and writes RLP-encoded records on a key/value database. Most
// keys are keccak256 hashed; ordered collections such as the event journal use
// raw prefixed keys so they can be iterated.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on db. Pass an Overlay to make
// a group of writes atomic.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Database exposes the backing database.
func (m *Manager) Database() storage.Database { return m.db }

var counterPrefix = []byte("counter:")

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func uint64Bytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func (m *Manager) rawGet(key []byte) ([]byte, bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, len(data) > 0, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.rawGet(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Delete(kvKey(key))
}

// KVAppendUint64 appends v to the RLP-encoded uint64 list stored under key.
func (m *Manager) KVAppendUint64(key []byte, v uint64) error {
	var list []uint64
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	list = append(list, v)
	return m.KVPut(key, list)
}

// KVGetUint64List returns the uint64 list stored under key. Missing keys yield
// an empty slice.
func (m *Manager) KVGetUint64List(key []byte) ([]uint64, error) {
	list := []uint64{}
	if _, err := m.KVGet(key, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []uint64{}
	}
	return list, nil
}

// NextID increments and returns the named counter. The first value is 1.
func (m *Manager) NextID(name string) (uint64, error) {
	key := prefixedKey(counterPrefix, []byte(name))
	var current uint64
	if _, err := m.KVGet(key, &current); err != nil {
		return 0, err
	}
	current++
	if err := m.KVPut(key, current); err != nil {
		return 0, err
	}
	return current, nil
}

// Counter returns the last value issued by NextID for name.
func (m *Manager) Counter(name string) (uint64, error) {
	var current uint64
	if _, err := m.KVGet(prefixedKey(counterPrefix, []byte(name)), &current); err != nil {
		return 0, err
	}
	return current, nil
}
