package token

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/native/fees"
)

func (e *Engine) Name() string    { return e.name }
func (e *Engine) Symbol() string  { return e.symbol }
func (e *Engine) Decimals() uint8 { return e.decimals }

func (e *Engine) Owner() common.Address    { return e.owner }
func (e *Engine) Contract() common.Address { return e.contract }

// TotalSupply returns the circulating supply, net of burns.
func (e *Engine) TotalSupply() *big.Int { return new(big.Int).Set(e.totalSupply) }

func (e *Engine) BalanceOf(addr common.Address) *big.Int { return e.balances.Get(addr) }

// Allowance returns how much spender may move on behalf of owner.
func (e *Engine) Allowance(owner, spender common.Address) *big.Int {
	if byOwner, ok := e.allowances[owner]; ok {
		if amount, ok := byOwner[spender]; ok {
			return new(big.Int).Set(amount)
		}
	}
	return big.NewInt(0)
}

func (e *Engine) IsExcludedFromFee(addr common.Address) bool {
	return e.peekAccount(addr).ExcludedFromFee
}

func (e *Engine) IsExcludedFromDividends(addr common.Address) bool {
	return e.tracker.IsExcluded(addr)
}

func (e *Engine) IsExcludedFromWalletCap(addr common.Address) bool {
	return roleView{e}.IsExcludedFromWalletCap(addr)
}

func (e *Engine) CanTradeInPresale(addr common.Address) bool {
	return e.peekAccount(addr).CanTradeInPresale
}

func (e *Engine) IsLiquidityProvider(addr common.Address) bool {
	return e.peekAccount(addr).LiquidityProvider
}

func (e *Engine) IsAutomatedMarketMakerPair(addr common.Address) bool { return e.pairs[addr] }

// AccountOf returns a copy of the account flags.
func (e *Engine) AccountOf(addr common.Address) Account { return e.peekAccount(addr) }

func (e *Engine) WithdrawableDividendsOf(addr common.Address) *big.Int {
	return e.tracker.WithdrawableDividendsOf(addr)
}

func (e *Engine) WithdrawnDividendsOf(addr common.Address) *big.Int {
	return e.tracker.WithdrawnDividendsOf(addr)
}

func (e *Engine) CumulativeDividendsOf(addr common.Address) *big.Int {
	return e.tracker.AccumulativeDividendsOf(addr)
}

func (e *Engine) TotalDividendsDistributed() *big.Int { return e.tracker.TotalDistributed() }

// Tax returns the effective rate of a component, halved while half-tax is on.
func (e *Engine) Tax(c fees.Component) uint32 { return e.schedule.Rate(c) }

func (e *Engine) TaxDividend() uint32    { return e.Tax(fees.ComponentDividend) }
func (e *Engine) TaxBurn() uint32        { return e.Tax(fees.ComponentBurn) }
func (e *Engine) TaxMarketing() uint32   { return e.Tax(fees.ComponentMarketing) }
func (e *Engine) TaxDonation() uint32    { return e.Tax(fees.ComponentDonation) }
func (e *Engine) TaxDevelopment() uint32 { return e.Tax(fees.ComponentDevelopment) }
func (e *Engine) TaxLiquidity() uint32   { return e.Tax(fees.ComponentLiquidity) }

// FeeRates returns the configured rates before any half-tax discount.
func (e *Engine) FeeRates() fees.Rates { return e.schedule.Rates() }

func (e *Engine) HalfTax() bool                { return e.schedule.HalfTax() }
func (e *Engine) AutoSwap() bool               { return e.autoSwap }
func (e *Engine) AutoDividendProcessing() bool { return e.autoDividends }
func (e *Engine) SwapThreshold() *big.Int      { return new(big.Int).Set(e.swapThreshold) }
func (e *Engine) PresaleCompleted() bool       { return e.policy.PresaleCompleted() }
func (e *Engine) VestStart() time.Time         { return e.policy.VestStart() }
func (e *Engine) ClaimWait() time.Duration     { return e.tracker.ClaimWait() }
func (e *Engine) HolderCount() int             { return e.balances.Len() }

// Now returns the engine clock.
func (e *Engine) Now() time.Time { return e.now() }

// MaxWalletTokens returns the wallet cap, zero when uncapped.
func (e *Engine) MaxWalletTokens() *big.Int {
	if limit := e.policy.MaxWallet(); limit != nil {
		return limit
	}
	return big.NewInt(0)
}

// PendingSwap returns the sum of every bucket waiting for the swap leg.
func (e *Engine) PendingSwap() *big.Int {
	total := big.NewInt(0)
	for _, amount := range e.pending {
		if amount != nil {
			total.Add(total, amount)
		}
	}
	return total
}

// PendingBucket returns the amount waiting in a single bucket.
func (e *Engine) PendingBucket(c fees.Component) *big.Int {
	if amount := e.pending[c]; amount != nil {
		return new(big.Int).Set(amount)
	}
	return big.NewInt(0)
}

// TreasuryWallet returns the wallet and payout mode of a treasury component.
func (e *Engine) TreasuryWallet(c fees.Component) (common.Address, fees.PayoutMode) {
	return e.treasury[c], e.payouts[c]
}

// Pairs lists the registered AMM pairs.
func (e *Engine) Pairs() []common.Address {
	out := make([]common.Address, 0, len(e.pairs))
	for addr := range e.pairs {
		out = append(out, addr)
	}
	sortAddresses(out)
	return out
}
