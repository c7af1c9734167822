package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("asset: insufficient balance")
	ErrInvalidAmount       = errors.New("asset: amount must be positive")
)

// Ledger is an in-memory fungible asset. It stands in for the native coin
// and for the external dividend asset.
type Ledger struct {
	mu       sync.RWMutex
	symbol   string
	balances map[common.Address]*big.Int
	supply   *big.Int
}

// NewLedger returns an empty ledger for the supplied ticker.
func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		balances: make(map[common.Address]*big.Int),
		supply:   big.NewInt(0),
	}
}

// Symbol returns the ticker.
func (l *Ledger) Symbol() string { return l.symbol }

// Mint credits amount to the account.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(to, amount)
	l.supply = new(big.Int).Add(l.supply, amount)
	return nil
}

// BalanceOf returns a copy of the account balance.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// TotalSupply returns everything minted.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.supply)
}

// Transfer moves amount between accounts. Zero amounts are no-ops.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s %s holds %v, needs %s", ErrInsufficientBalance, l.symbol, from.Hex(), bal, amount)
	}
	l.balances[from] = new(big.Int).Sub(bal, amount)
	l.credit(to, amount)
	return nil
}

func (l *Ledger) credit(to common.Address, amount *big.Int) {
	bal := l.balances[to]
	if bal == nil {
		bal = big.NewInt(0)
	}
	l.balances[to] = new(big.Int).Add(bal, amount)
}

// Holder is a single ledger balance.
type Holder struct {
	Account common.Address
	Balance *big.Int
}

// Holders lists non-zero balances ordered by address.
func (l *Ledger) Holders() []Holder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Holder, 0, len(l.balances))
	for addr, bal := range l.balances {
		if bal.Sign() == 0 {
			continue
		}
		out = append(out, Holder{Account: addr, Balance: new(big.Int).Set(bal)})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Account[:], out[j].Account[:]) < 0
	})
	return out
}
