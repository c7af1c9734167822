package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"reflectledger/storage"
)

// Store persists RLP-encoded values in a key-value database. Keys are hashed
// with keccak256 so callers can use readable namespaced keys.
type Store struct {
	db storage.Database
}

// NewStore wraps the supplied database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func storeKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Put encodes and stores the value under the supplied key.
func (s *Store) Put(key []byte, value interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: database not configured")
	}
	if len(key) == 0 {
		return fmt.Errorf("store: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.db.Put(storeKey(key), encoded)
}

// Get decodes the value stored under the key into out. The boolean reports
// whether the key existed.
func (s *Store) Get(key []byte, out interface{}) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("store: database not configured")
	}
	if len(key) == 0 {
		return false, fmt.Errorf("store: key must not be empty")
	}
	data, err := s.db.Get(storeKey(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}
