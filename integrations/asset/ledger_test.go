package asset

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLedgerTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(" usdt ")
	if l.Symbol() != "USDT" {
		t.Fatalf("unexpected symbol %q", l.Symbol())
	}
	a := common.HexToAddress("0x0a")
	b := common.HexToAddress("0x0b")
	if err := l.Mint(a, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Transfer(ctx, a, b, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.BalanceOf(a); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("sender balance %s", got)
	}
	if got := l.BalanceOf(b); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("receiver balance %s", got)
	}
	if err := l.Transfer(ctx, b, a, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := l.Transfer(ctx, b, a, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if err := l.Mint(a, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if l.TotalSupply().Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("supply changed: %s", l.TotalSupply())
	}
	holders := l.Holders()
	if len(holders) != 2 || holders[0].Account != a {
		t.Fatalf("unexpected holders %+v", holders)
	}
}

func TestLedgerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLedger("X")
	if err := l.Transfer(ctx, common.Address{}, common.Address{}, big.NewInt(1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
