package events

import (
	"math/big"

	"reflectledger/core/types"
)

const (
	TypeSwapAndLiquify = "token.swap"
	TypeSwapFailed     = "token.swap_failed"
)

// SwapAndLiquify reports a completed auto-swap leg.
type SwapAndLiquify struct {
	ID                  string
	TokensSwapped       *big.Int
	NativeReceived      *big.Int
	TokensIntoLiquidity *big.Int
	LiquidityMinted     *big.Int
	TreasuryTokens      *big.Int
	DividendTokens      *big.Int
	DividendsReceived   *big.Int
}

func (SwapAndLiquify) EventType() string { return TypeSwapAndLiquify }

func (e SwapAndLiquify) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapAndLiquify,
		Attributes: map[string]string{
			"id":                  e.ID,
			"tokensSwapped":       formatAmount(e.TokensSwapped),
			"nativeReceived":      formatAmount(e.NativeReceived),
			"tokensIntoLiquidity": formatAmount(e.TokensIntoLiquidity),
			"liquidityMinted":     formatAmount(e.LiquidityMinted),
			"treasuryTokens":      formatAmount(e.TreasuryTokens),
			"dividendTokens":      formatAmount(e.DividendTokens),
			"dividendsReceived":   formatAmount(e.DividendsReceived),
		},
	}
}

// SwapFailed reports an absorbed failure of the auto-swap leg. NativeHeld is
// set when the contract keeps native coin it could not pair.
type SwapFailed struct {
	ID         string
	Stage      string
	Amount     *big.Int
	Reason     string
	NativeHeld *big.Int
}

func (SwapFailed) EventType() string { return TypeSwapFailed }

func (e SwapFailed) Event() *types.Event {
	attrs := map[string]string{
		"id":     e.ID,
		"stage":  e.Stage,
		"amount": formatAmount(e.Amount),
		"reason": e.Reason,
	}
	if e.NativeHeld != nil {
		attrs["nativeHeld"] = formatAmount(e.NativeHeld)
	}
	return &types.Event{Type: TypeSwapFailed, Attributes: attrs}
}
