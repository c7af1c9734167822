package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "reflectledger/core/errors"
	"reflectledger/core/events"
	nativecommon "reflectledger/native/common"
	"reflectledger/native/fees"
	"reflectledger/native/restrictions"
	"reflectledger/observability/metrics"
)

const (
	kindTransfer     = "transfer"
	kindTransferFrom = "transfer_from"
	kindLiquidity    = "liquidity"
)

// Transfer moves amount from sender to recipient.
func (e *Engine) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) (err error) {
	rev := e.begin()
	defer func() { err = e.finish(rev, err) }()
	return e.transfer(ctx, from, to, amount, restrictions.KindTransfer, kindTransfer)
}

// TransferFrom moves amount on behalf of from, consuming the spender's
// allowance unless it is infinite.
func (e *Engine) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) (err error) {
	rev := e.begin()
	defer func() { err = e.finish(rev, err) }()
	if err := e.spendAllowance(from, spender, amount); err != nil {
		return err
	}
	return e.transfer(ctx, from, to, amount, restrictions.KindTransfer, kindTransferFrom)
}

// TransferForLiquidity moves the token leg of an add-liquidity into a
// registered pair. Only the owner, the contract and whitelisted providers
// may provide liquidity; the leg is never taxed.
func (e *Engine) TransferForLiquidity(ctx context.Context, spender, from, pair common.Address, amount *big.Int) (err error) {
	rev := e.begin()
	defer func() { err = e.finish(rev, err) }()
	if !e.pairs[pair] {
		return fmt.Errorf("token: %s is not an AMM pair", pair.Hex())
	}
	if err := e.spendAllowance(from, spender, amount); err != nil {
		return err
	}
	return e.transfer(ctx, from, pair, amount, restrictions.KindLiquidity, kindLiquidity)
}

// Approve sets the spender's allowance over the owner's tokens.
func (e *Engine) Approve(owner, spender common.Address, amount *big.Int) (err error) {
	rev := e.begin()
	defer func() { err = e.finish(rev, err) }()
	if err := checkAmount(amount); err != nil {
		return err
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return coreerrors.ErrZeroAddress
	}
	e.setAllowance(owner, spender, amount)
	e.emit(events.Approval{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) setAllowance(owner, spender common.Address, amount *big.Int) {
	byOwner, ok := e.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*big.Int)
		e.allowances[owner] = byOwner
		e.journal.Record(func() { delete(e.allowances, owner) })
	}
	previous, existed := byOwner[spender]
	byOwner[spender] = new(big.Int).Set(amount)
	e.journal.Record(func() {
		if existed {
			byOwner[spender] = previous
		} else {
			delete(byOwner, spender)
		}
	})
}

func (e *Engine) spendAllowance(owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	current := e.Allowance(owner, spender)
	if current.Cmp(MaxAllowance) == 0 {
		return nil
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allows %s %s, needs %s", coreerrors.ErrInsufficientAllowance, owner.Hex(), spender.Hex(), current, amount)
	}
	e.setAllowance(owner, spender, new(big.Int).Sub(current, amount))
	return nil
}

func (e *Engine) transfer(ctx context.Context, from, to common.Address, amount *big.Int, kind restrictions.Kind, label string) error {
	ctx, span := e.tracer.Start(ctx, "token.transfer", trace.WithAttributes(
		attribute.String("token.kind", label),
		attribute.String("token.from", from.Hex()),
		attribute.String("token.to", to.Hex()),
	))
	defer span.End()
	err := e.settle(ctx, from, to, amount, kind, label)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Token().ObserveRejection(rejectionReason(err))
	}
	return err
}

func (e *Engine) settle(ctx context.Context, from, to common.Address, amount *big.Int, kind restrictions.Kind, label string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		return coreerrors.ErrZeroAddress
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleTransfers); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		e.emit(events.Transfer{From: from, To: to, Amount: big.NewInt(0)})
		return nil
	}
	if balance := e.balances.Get(from); balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", coreerrors.ErrInsufficientBalance, from.Hex(), balance, amount)
	}

	split := e.computeFees(from, to, amount, kind)
	receiverAfter := new(big.Int).Add(e.balances.Get(to), split.Net)
	if from == to {
		receiverAfter.Sub(receiverAfter, amount)
	}
	now := e.now()
	if err := e.policy.Check(roleView{e}, restrictions.Transfer{
		From:                 from,
		To:                   to,
		Amount:               amount,
		ReceiverBalanceAfter: receiverAfter,
		Kind:                 kind,
		Now:                  now,
	}); err != nil {
		return err
	}

	e.maybeSwap(ctx, from)

	balance := e.balances.Get(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", coreerrors.ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	e.setBalance(from, balance.Sub(balance, amount))
	e.credit(to, split.Net)
	e.collectFees(from, split)
	e.policy.RecordOutflow(from, amount)
	acct := e.account(from)
	previous := acct.LastTransfer
	acct.LastTransfer = now
	e.journal.Record(func() { acct.LastTransfer = previous })

	e.emit(events.Transfer{From: from, To: to, Amount: new(big.Int).Set(split.Net)})
	if split.Applied {
		e.emit(events.FeesCollected{
			From:        from,
			To:          to,
			Gross:       split.Gross,
			Net:         split.Net,
			Dividend:    split.Dividend,
			Burn:        split.Burn,
			Marketing:   split.Marketing,
			Donation:    split.Donation,
			Development: split.Development,
			Liquidity:   split.Liquidity,
			HalfTax:     e.schedule.HalfTax(),
		})
		for _, c := range fees.Components {
			metrics.Token().AddFee(string(c), split.Component(c))
		}
	}
	metrics.Token().ObserveTransfer(label, split.Applied)

	if e.autoDividends && !e.inSwap && e.sweepIterations > 0 {
		if nativecommon.Guard(e.pauses, nativecommon.ModuleDividends) == nil {
			e.tracker.Process(ctx, e.sweepIterations, true)
		}
	}
	return nil
}

// computeFees is pure: it only reads flags and the current schedule.
func (e *Engine) computeFees(from, to common.Address, amount *big.Int, kind restrictions.Kind) fees.ApplyResult {
	exempt := kind == restrictions.KindLiquidity ||
		e.inSwap ||
		e.peekAccount(from).ExcludedFromFee ||
		e.peekAccount(to).ExcludedFromFee ||
		(!e.taxWallets && !e.pairs[from] && !e.pairs[to])
	return fees.Apply(fees.ApplyInput{Gross: amount, Exempt: exempt, Rates: e.schedule.Effective()})
}

// collectFees books every fee component: burn is destroyed, token-mode
// treasury shares go straight to their wallet, everything else waits in the
// contract for the next swap leg.
func (e *Engine) collectFees(from common.Address, split fees.ApplyResult) {
	if !split.Applied {
		return
	}
	held := new(big.Int)
	for _, c := range []fees.Component{fees.ComponentDividend, fees.ComponentLiquidity} {
		amount := split.Component(c)
		held.Add(held, amount)
		e.addPending(c, amount)
	}
	for _, c := range TreasuryComponents {
		amount := split.Component(c)
		if amount.Sign() == 0 {
			continue
		}
		if e.payouts[c] == fees.PayoutToken {
			wallet := e.treasury[c]
			e.credit(wallet, amount)
			e.emit(events.Transfer{From: from, To: wallet, Amount: new(big.Int).Set(amount)})
			continue
		}
		held.Add(held, amount)
		e.addPending(c, amount)
	}
	if held.Sign() > 0 {
		e.credit(e.contract, held)
		e.emit(events.Transfer{From: from, To: e.contract, Amount: held})
	}
	if split.Burn.Sign() > 0 {
		e.burn(split.Burn)
		e.emit(events.Transfer{From: from, To: common.Address{}, Amount: new(big.Int).Set(split.Burn)})
	}
}

func (e *Engine) burn(amount *big.Int) {
	previous := e.totalSupply
	e.totalSupply = new(big.Int).Sub(previous, amount)
	e.journal.Record(func() { e.totalSupply = previous })
}

type roleView struct{ e *Engine }

func (r roleView) IsOwner(a common.Address) bool    { return a == r.e.owner }
func (r roleView) IsContract(a common.Address) bool { return a == r.e.contract }
func (r roleView) IsPair(a common.Address) bool     { return r.e.pairs[a] }

func (r roleView) CanTradeInPresale(a common.Address) bool {
	return r.e.peekAccount(a).CanTradeInPresale
}

func (r roleView) IsExcludedFromWalletCap(a common.Address) bool {
	return r.e.pairs[a] || r.e.peekAccount(a).ExcludedFromWalletCap
}

func (r roleView) IsLiquidityProvider(a common.Address) bool {
	return r.e.peekAccount(a).LiquidityProvider
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, coreerrors.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, coreerrors.ErrInsufficientAllowance):
		return "insufficient_allowance"
	case errors.Is(err, coreerrors.ErrTradingLocked):
		return "trading_locked"
	case errors.Is(err, coreerrors.ErrWalletCapExceeded):
		return "wallet_cap"
	case errors.Is(err, coreerrors.ErrVestingLocked):
		return "vesting_locked"
	case errors.Is(err, coreerrors.ErrLiquidityRestricted):
		return "liquidity_restricted"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, coreerrors.ErrAmountOverflow), errors.Is(err, coreerrors.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "other"
	}
}
