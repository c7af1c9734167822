package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatabasesCopyValues(t *testing.T) {
	level, err := NewLevelDB(t.TempDir())
	require.NoError(t, err)
	defer level.Close()

	for name, db := range map[string]Database{"memory": NewMemDB(), "leveldb": level} {
		_, err := db.Get([]byte("missing"))
		require.ErrorIs(t, err, ErrNotFound, name)

		buf := []byte("snapshot")
		require.NoError(t, db.Put([]byte("k"), buf), name)
		buf[0] = 'X'
		got, err := db.Get([]byte("k"))
		require.NoError(t, err, name)
		require.Equal(t, "snapshot", string(got), name)
	}
}
