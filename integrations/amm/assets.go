package amm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is one side of a pool as seen by the router.
type Asset interface {
	BalanceOf(addr common.Address) *big.Int
	// Pull moves amount from owner into pair on behalf of the router.
	Pull(ctx context.Context, router, owner, pair common.Address, amount *big.Int, liquidity bool) error
	// Push pays amount out of pair.
	Push(ctx context.Context, pair, to common.Address, amount *big.Int) error
}

// FungibleLedger is a plain balance ledger such as the native coin.
type FungibleLedger interface {
	BalanceOf(addr common.Address) *big.Int
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// TokenLedger is the fee-taking token. Pulls go through allowances so the
// ledger sees the router as spender.
type TokenLedger interface {
	BalanceOf(addr common.Address) *big.Int
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
	TransferForLiquidity(ctx context.Context, spender, from, pair common.Address, amount *big.Int) error
}

type ledgerAsset struct{ ledger FungibleLedger }

// LedgerAsset adapts a plain ledger. Pulls behave like attached value.
func LedgerAsset(l FungibleLedger) Asset { return ledgerAsset{ledger: l} }

func (a ledgerAsset) BalanceOf(addr common.Address) *big.Int { return a.ledger.BalanceOf(addr) }

func (a ledgerAsset) Pull(ctx context.Context, _, owner, pair common.Address, amount *big.Int, _ bool) error {
	return a.ledger.Transfer(ctx, owner, pair, amount)
}

func (a ledgerAsset) Push(ctx context.Context, pair, to common.Address, amount *big.Int) error {
	return a.ledger.Transfer(ctx, pair, to, amount)
}

type tokenAsset struct{ ledger TokenLedger }

// TokenAsset adapts the fee-taking token.
func TokenAsset(l TokenLedger) Asset { return tokenAsset{ledger: l} }

func (a tokenAsset) BalanceOf(addr common.Address) *big.Int { return a.ledger.BalanceOf(addr) }

func (a tokenAsset) Pull(ctx context.Context, router, owner, pair common.Address, amount *big.Int, liquidity bool) error {
	if liquidity {
		return a.ledger.TransferForLiquidity(ctx, router, owner, pair, amount)
	}
	return a.ledger.TransferFrom(ctx, router, owner, pair, amount)
}

func (a tokenAsset) Push(ctx context.Context, pair, to common.Address, amount *big.Int) error {
	return a.ledger.Transfer(ctx, pair, to, amount)
}
