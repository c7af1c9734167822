package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Entry is a single (account, balance) pair held by the balance index.
type Entry struct {
	Account common.Address
	Balance *big.Int
}

// BalanceIndex is an iterable balance map. Entries live in a dense slice and a
// side map resolves accounts to their slot, so inserts, updates and removals
// are O(1). Removing an entry moves the last slot into the hole; apart from
// that, iteration follows insertion order.
type BalanceIndex struct {
	entries []Entry
	slots   map[common.Address]int
}

// NewBalanceIndex returns an empty index.
func NewBalanceIndex() *BalanceIndex {
	return &BalanceIndex{slots: make(map[common.Address]int)}
}

// Len returns the number of accounts holding a non-zero balance.
func (x *BalanceIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Get returns a copy of the account balance, or zero when the account is not
// indexed.
func (x *BalanceIndex) Get(account common.Address) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	slot, ok := x.slots[account]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(x.entries[slot].Balance)
}

// Contains reports whether the account currently holds a non-zero balance.
func (x *BalanceIndex) Contains(account common.Address) bool {
	if x == nil {
		return false
	}
	_, ok := x.slots[account]
	return ok
}

// IndexOf returns the slot of the account or -1 when absent.
func (x *BalanceIndex) IndexOf(account common.Address) int {
	if x == nil {
		return -1
	}
	slot, ok := x.slots[account]
	if !ok {
		return -1
	}
	return slot
}

// At returns a copy of the entry stored in the supplied slot.
func (x *BalanceIndex) At(slot int) (Entry, bool) {
	if x == nil || slot < 0 || slot >= len(x.entries) {
		return Entry{}, false
	}
	entry := x.entries[slot]
	return Entry{Account: entry.Account, Balance: new(big.Int).Set(entry.Balance)}, true
}

// Set stores the balance for the account. Positive balances insert or update
// the entry, zero (or nil) balances remove it. The returned closure restores
// the exact previous layout, including slot order, and is meant to be
// recorded in a Journal.
func (x *BalanceIndex) Set(account common.Address, balance *big.Int) func() {
	slot, present := x.slots[account]
	if balance == nil || balance.Sign() <= 0 {
		if !present {
			return func() {}
		}
		return x.remove(account, slot)
	}
	value := new(big.Int).Set(balance)
	if present {
		previous := x.entries[slot].Balance
		x.entries[slot].Balance = value
		return func() {
			x.entries[slot].Balance = previous
		}
	}
	x.entries = append(x.entries, Entry{Account: account, Balance: value})
	x.slots[account] = len(x.entries) - 1
	return func() {
		x.entries = x.entries[:len(x.entries)-1]
		delete(x.slots, account)
	}
}

func (x *BalanceIndex) remove(account common.Address, slot int) func() {
	last := len(x.entries) - 1
	removed := x.entries[slot]
	if slot != last {
		moved := x.entries[last]
		x.entries[slot] = moved
		x.slots[moved.Account] = slot
	}
	x.entries[last] = Entry{}
	x.entries = x.entries[:last]
	delete(x.slots, account)
	return func() {
		x.entries = append(x.entries, Entry{})
		if slot != last {
			moved := x.entries[slot]
			x.entries[last] = moved
			x.slots[moved.Account] = last
		}
		x.entries[slot] = removed
		x.slots[account] = slot
	}
}

// Entries returns a copy of every indexed entry in slot order.
func (x *BalanceIndex) Entries() []Entry {
	if x == nil {
		return nil
	}
	out := make([]Entry, len(x.entries))
	for i, entry := range x.entries {
		out[i] = Entry{Account: entry.Account, Balance: new(big.Int).Set(entry.Balance)}
	}
	return out
}

// Iterator returns a cursor positioned at the supplied slot. Cursors outside
// the index are clamped, so a stale saved cursor never panics.
func (x *BalanceIndex) Iterator(cursor int) *Iterator {
	if cursor < 0 {
		cursor = 0
	}
	if n := x.Len(); cursor > n {
		cursor = n
	}
	return &Iterator{index: x, cursor: cursor}
}

// Iterator walks the index forward from a saved cursor. It is finite: Next
// reports false once the end of the index is reached.
type Iterator struct {
	index  *BalanceIndex
	cursor int
}

// Next returns the entry under the cursor and advances it.
func (it *Iterator) Next() (Entry, bool) {
	if it == nil {
		return Entry{}, false
	}
	entry, ok := it.index.At(it.cursor)
	if !ok {
		return Entry{}, false
	}
	it.cursor++
	return entry, true
}

// Cursor returns the slot the next call to Next will read.
func (it *Iterator) Cursor() int {
	if it == nil {
		return 0
	}
	return it.cursor
}
