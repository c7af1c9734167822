package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"reflectledger/storage"
)

type storedRecord struct {
	Name   string
	Amount *big.Int
	Flags  []bool
}

func TestStoreRoundTripMemDB(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	in := storedRecord{Name: "ledger", Amount: big.NewInt(1234), Flags: []bool{true, false}}
	require.NoError(t, store.Put([]byte("token/snapshot"), in))

	var out storedRecord
	ok, err := store.Get([]byte("token/snapshot"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in.Name, out.Name)
	require.Zero(t, in.Amount.Cmp(out.Amount))
	require.Equal(t, in.Flags, out.Flags)
}

func TestStoreMissingKey(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	var out storedRecord
	ok, err := store.Get([]byte("absent"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreLevelDBPersists(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, NewStore(db).Put([]byte("k"), storedRecord{Name: "persisted", Amount: big.NewInt(7)}))
	db.Close()

	reopened, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()
	var out storedRecord
	ok, err := NewStore(reopened).Get([]byte("k"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "persisted", out.Name)
}

func TestStoreRequiresKey(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	require.Error(t, store.Put(nil, storedRecord{}))
	_, err := store.Get(nil, nil)
	require.Error(t, err)
}
