package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func snapshotEntries(x *BalanceIndex) []Entry {
	return x.Entries()
}

func TestBalanceIndexInsertUpdateRemove(t *testing.T) {
	x := NewBalanceIndex()
	x.Set(addr(1), big.NewInt(10))
	x.Set(addr(2), big.NewInt(20))
	x.Set(addr(3), big.NewInt(30))
	require.Equal(t, 3, x.Len())
	require.Equal(t, int64(20), x.Get(addr(2)).Int64())

	x.Set(addr(2), big.NewInt(25))
	require.Equal(t, int64(25), x.Get(addr(2)).Int64())
	require.Equal(t, 1, x.IndexOf(addr(2)))

	x.Set(addr(1), big.NewInt(0))
	require.False(t, x.Contains(addr(1)))
	require.Equal(t, 2, x.Len())
	// The last entry fills the hole left by the removal.
	require.Equal(t, 0, x.IndexOf(addr(3)))
	require.Equal(t, int64(0), x.Get(addr(1)).Int64())
	require.Equal(t, -1, x.IndexOf(addr(1)))
}

func TestBalanceIndexZeroForAbsentIsNoop(t *testing.T) {
	x := NewBalanceIndex()
	undo := x.Set(addr(9), big.NewInt(0))
	undo()
	require.Equal(t, 0, x.Len())
	x.Set(addr(9), nil)
	require.Equal(t, 0, x.Len())
}

func TestBalanceIndexGetReturnsCopy(t *testing.T) {
	x := NewBalanceIndex()
	x.Set(addr(1), big.NewInt(5))
	got := x.Get(addr(1))
	got.SetInt64(99)
	require.Equal(t, int64(5), x.Get(addr(1)).Int64())
}

func TestBalanceIndexUndoRestoresExactLayout(t *testing.T) {
	x := NewBalanceIndex()
	j := NewJournal()
	for i := byte(1); i <= 4; i++ {
		x.Set(addr(i), big.NewInt(int64(i)*100))
	}
	before := snapshotEntries(x)

	snap := j.Snapshot()
	j.Record(x.Set(addr(2), big.NewInt(0)))
	j.Record(x.Set(addr(5), big.NewInt(500)))
	j.Record(x.Set(addr(4), big.NewInt(1)))
	j.Record(x.Set(addr(4), big.NewInt(0)))
	j.Record(x.Set(addr(1), big.NewInt(0)))
	require.NotEqual(t, before, snapshotEntries(x))

	j.RevertToSnapshot(snap)
	require.Equal(t, before, snapshotEntries(x))
	for i, entry := range before {
		require.Equal(t, i, x.IndexOf(entry.Account))
	}
	require.Equal(t, 0, j.Length())
}

func TestBalanceIndexIteratorResumesFromCursor(t *testing.T) {
	x := NewBalanceIndex()
	for i := byte(1); i <= 5; i++ {
		x.Set(addr(i), big.NewInt(int64(i)))
	}
	it := x.Iterator(0)
	var seen []common.Address
	for i := 0; i < 2; i++ {
		entry, ok := it.Next()
		require.True(t, ok)
		seen = append(seen, entry.Account)
	}
	cursor := it.Cursor()
	require.Equal(t, 2, cursor)

	resumed := x.Iterator(cursor)
	for {
		entry, ok := resumed.Next()
		if !ok {
			break
		}
		seen = append(seen, entry.Account)
	}
	require.Equal(t, []common.Address{addr(1), addr(2), addr(3), addr(4), addr(5)}, seen)

	// Restarting from the beginning yields the same finite sequence.
	restarted := x.Iterator(0)
	count := 0
	for _, ok := restarted.Next(); ok; _, ok = restarted.Next() {
		count++
	}
	require.Equal(t, 5, count)
}

func TestBalanceIndexIteratorClampsStaleCursor(t *testing.T) {
	x := NewBalanceIndex()
	x.Set(addr(1), big.NewInt(1))
	it := x.Iterator(42)
	_, ok := it.Next()
	require.False(t, ok)
	require.Equal(t, 1, it.Cursor())

	neg := x.Iterator(-3)
	entry, ok := neg.Next()
	require.True(t, ok)
	require.Equal(t, addr(1), entry.Account)
}
