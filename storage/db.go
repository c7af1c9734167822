package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database holds raw snapshot bytes. Implementations copy values in and out,
// so callers may reuse their buffers.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Close()
}

var (
	_ Database = (*MemDB)(nil)
	_ Database = (*LevelDB)(nil)
)

// MemDB keeps values in a map. Simulations and tests use it when nothing has
// to outlive the process.
type MemDB struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{entries: make(map[string][]byte)}
}

func (m *MemDB) Put(key []byte, value []byte) error {
	m.mu.Lock()
	m.entries[string(key)] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MemDB) Close() {}

// LevelDB stores snapshots in a LevelDB directory.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens the directory at path, creating it when missing. Only one
// process may hold it open.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Put(key []byte, value []byte) error {
	return l.db.Put(key, value, nil)
}

// Get maps a missing key to ErrNotFound.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Close releases the directory lock. Errors are dropped.
func (l *LevelDB) Close() {
	_ = l.db.Close()
}
