package token

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "reflectledger/core/errors"
	"reflectledger/core/events"
	nativecommon "reflectledger/native/common"
	"reflectledger/native/dividends"
	"reflectledger/native/fees"
)

// Account flag names carried by AccountFlag events.
const (
	FlagExcludedFromFees      = "excludedFromFeesAndDividends"
	FlagExcludedFromWalletCap = "excludedFromWalletCap"
	FlagCanTradeInPresale     = "canTradeInPresale"
	FlagLiquidityProvider     = "liquidityProvider"
	FlagAutomatedMarketMaker  = "automatedMarketMakerPair"
)

// ownerCall runs fn atomically after checking the caller.
func (e *Engine) ownerCall(caller common.Address, fn func() error) (err error) {
	rev := e.begin()
	defer func() { err = e.finish(rev, err) }()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	return fn()
}

// SetTax updates one fee component.
func (e *Engine) SetTax(caller common.Address, c fees.Component, bps uint32) error {
	return e.ownerCall(caller, func() error {
		undo, err := e.schedule.SetRate(c, bps)
		if err != nil {
			return err
		}
		e.journal.Record(undo)
		e.emit(events.FeeRate{Component: string(c), Bps: bps})
		return nil
	})
}

func (e *Engine) SetTaxDividend(caller common.Address, bps uint32) error {
	return e.SetTax(caller, fees.ComponentDividend, bps)
}

func (e *Engine) SetTaxBurn(caller common.Address, bps uint32) error {
	return e.SetTax(caller, fees.ComponentBurn, bps)
}

func (e *Engine) SetTaxMarketing(caller common.Address, bps uint32) error {
	return e.SetTax(caller, fees.ComponentMarketing, bps)
}

func (e *Engine) SetTaxDonation(caller common.Address, bps uint32) error {
	return e.SetTax(caller, fees.ComponentDonation, bps)
}

func (e *Engine) SetTaxDevelopment(caller common.Address, bps uint32) error {
	return e.SetTax(caller, fees.ComponentDevelopment, bps)
}

func (e *Engine) SetTaxLiquidity(caller common.Address, bps uint32) error {
	return e.SetTax(caller, fees.ComponentLiquidity, bps)
}

// ExcludeAccountFromFeesAndDividends toggles both exclusions together.
func (e *Engine) ExcludeAccountFromFeesAndDividends(caller, account common.Address, excluded bool) error {
	return e.ownerCall(caller, func() error {
		if account == (common.Address{}) {
			return coreerrors.ErrZeroAddress
		}
		e.setFlag(&e.account(account).ExcludedFromFee, excluded)
		e.tracker.SetExcluded(account, excluded, e.balances.Get(account))
		e.emit(events.AccountFlag{Account: account, Flag: FlagExcludedFromFees, Value: excluded})
		return nil
	})
}

func (e *Engine) ExcludeAccountFromWalletCap(caller, account common.Address, excluded bool) error {
	return e.accountFlag(caller, account, FlagExcludedFromWalletCap, excluded, func(a *Account) *bool { return &a.ExcludedFromWalletCap })
}

func (e *Engine) SetCanTradeInPresale(caller, account common.Address, allowed bool) error {
	return e.accountFlag(caller, account, FlagCanTradeInPresale, allowed, func(a *Account) *bool { return &a.CanTradeInPresale })
}

func (e *Engine) SetLiquidityProvider(caller, account common.Address, allowed bool) error {
	return e.accountFlag(caller, account, FlagLiquidityProvider, allowed, func(a *Account) *bool { return &a.LiquidityProvider })
}

func (e *Engine) accountFlag(caller, account common.Address, flag string, value bool, field func(*Account) *bool) error {
	return e.ownerCall(caller, func() error {
		if account == (common.Address{}) {
			return coreerrors.ErrZeroAddress
		}
		e.setFlag(field(e.account(account)), value)
		e.emit(events.AccountFlag{Account: account, Flag: flag, Value: value})
		return nil
	})
}

// SetAutomatedMarketMakerPair registers a pool. Pairs never earn dividends
// and are exempt from the wallet cap.
func (e *Engine) SetAutomatedMarketMakerPair(caller, pair common.Address, enabled bool) error {
	return e.ownerCall(caller, func() error {
		if pair == (common.Address{}) {
			return coreerrors.ErrZeroAddress
		}
		if e.pairs[pair] == enabled {
			return nil
		}
		if enabled {
			e.pairs[pair] = true
			e.journal.Record(func() { delete(e.pairs, pair) })
			e.tracker.SetExcluded(pair, true, e.balances.Get(pair))
		} else {
			delete(e.pairs, pair)
			e.journal.Record(func() { e.pairs[pair] = true })
		}
		e.emit(events.AccountFlag{Account: pair, Flag: FlagAutomatedMarketMaker, Value: enabled})
		return nil
	})
}

func (e *Engine) SwitchAutoDividendProcessing(caller common.Address, enabled bool) error {
	return e.ownerCall(caller, func() error {
		e.setFlag(&e.autoDividends, enabled)
		e.emit(events.Setting{Name: "autoDividendProcessing", Value: strconv.FormatBool(enabled)})
		return nil
	})
}

func (e *Engine) SwitchHalfTax(caller common.Address, enabled bool) error {
	return e.ownerCall(caller, func() error {
		e.journal.Record(e.schedule.SetHalfTax(enabled))
		e.emit(events.Setting{Name: "halfTax", Value: strconv.FormatBool(enabled)})
		return nil
	})
}

func (e *Engine) SwitchAutoSwap(caller common.Address, enabled bool) error {
	return e.ownerCall(caller, func() error {
		e.setFlag(&e.autoSwap, enabled)
		e.emit(events.Setting{Name: "autoSwap", Value: strconv.FormatBool(enabled)})
		return nil
	})
}

func (e *Engine) SetSwapThreshold(caller common.Address, amount *big.Int) error {
	return e.ownerCall(caller, func() error {
		if err := checkAmount(amount); err != nil {
			return err
		}
		previous := e.swapThreshold
		e.swapThreshold = new(big.Int).Set(amount)
		e.journal.Record(func() { e.swapThreshold = previous })
		e.emit(events.Setting{Name: "swapThreshold", Value: amount.String()})
		return nil
	})
}

func (e *Engine) SetClaimWait(caller common.Address, wait time.Duration) error {
	return e.ownerCall(caller, func() error {
		if err := e.tracker.SetClaimWait(wait); err != nil {
			return err
		}
		e.emit(events.Setting{Name: "claimWait", Value: wait.String()})
		return nil
	})
}

// SetMaxWalletTokens replaces the wallet cap; zero removes it.
func (e *Engine) SetMaxWalletTokens(caller common.Address, amount *big.Int) error {
	return e.ownerCall(caller, func() error {
		if err := checkAmount(amount); err != nil {
			return err
		}
		e.policy.SetMaxWallet(amount)
		e.emit(events.Setting{Name: "maxWalletTokens", Value: amount.String()})
		return nil
	})
}

// SetTreasuryWallet routes a treasury component to wallet with the supplied
// payout mode.
func (e *Engine) SetTreasuryWallet(caller common.Address, c fees.Component, wallet common.Address, mode fees.PayoutMode) error {
	return e.ownerCall(caller, func() error {
		if !isTreasury(c) {
			return fmt.Errorf("%w: %s is not a treasury component", coreerrors.ErrUnknownFee, c)
		}
		if wallet == (common.Address{}) {
			return coreerrors.ErrZeroAddress
		}
		if mode == "" {
			mode = fees.PayoutNative
		}
		if mode != fees.PayoutNative && mode != fees.PayoutToken {
			return fmt.Errorf("token: unknown payout mode %q", mode)
		}
		prevWallet, prevMode := e.treasury[c], e.payouts[c]
		e.treasury[c] = wallet
		e.payouts[c] = mode
		e.journal.Record(func() {
			e.treasury[c] = prevWallet
			e.payouts[c] = prevMode
		})
		e.emit(events.Setting{Name: string(c) + "Wallet", Value: wallet.Hex() + "/" + string(mode)})
		return nil
	})
}

// CompletePresale opens trading. It can only fire once.
func (e *Engine) CompletePresale(caller common.Address) error {
	return e.ownerCall(caller, func() error {
		now := e.now()
		if err := e.policy.CompletePresale(now); err != nil {
			return err
		}
		e.emit(events.PresaleCompleted{At: now})
		return nil
	})
}

// VestPrivateSaleWallets locks the current balances of the private sale
// wallets behind the vesting schedule. It can only run once.
func (e *Engine) VestPrivateSaleWallets(caller common.Address) error {
	return e.ownerCall(caller, func() error {
		n, err := e.policy.Vest(e.balances.Get, e.now())
		if err != nil {
			return err
		}
		e.emit(events.PrivateSaleVested{Wallets: n, Start: e.policy.VestStart()})
		return nil
	})
}

// TransferOwnership hands the owner surface to next, which becomes fee and
// wallet cap exempt.
func (e *Engine) TransferOwnership(caller, next common.Address) error {
	return e.ownerCall(caller, func() error {
		if next == (common.Address{}) {
			return coreerrors.ErrZeroAddress
		}
		previous := e.owner
		e.owner = next
		e.journal.Record(func() { e.owner = previous })
		acct := e.account(next)
		e.setFlag(&acct.ExcludedFromFee, true)
		e.setFlag(&acct.ExcludedFromWalletCap, true)
		e.emit(events.OwnershipTransferred{Previous: previous, Next: next})
		return nil
	})
}

// ProcessDividendTracker runs a bounded dividend sweep. Anyone may call it.
func (e *Engine) ProcessDividendTracker(ctx context.Context, iterations int) (result dividends.ProcessResult, err error) {
	rev := e.begin()
	defer func() { err = e.finish(rev, err) }()
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleDividends); err != nil {
		return dividends.ProcessResult{}, err
	}
	if iterations <= 0 {
		iterations = e.sweepIterations
	}
	return e.tracker.Process(ctx, iterations, false), nil
}

// ClaimDividends pays the account's withdrawable dividends.
func (e *Engine) ClaimDividends(ctx context.Context, account common.Address) (amount *big.Int, err error) {
	rev := e.begin()
	defer func() { err = e.finish(rev, err) }()
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleDividends); err != nil {
		return nil, err
	}
	return e.tracker.Claim(ctx, account, false)
}
