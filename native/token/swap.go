package token

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"reflectledger/core/events"
	nativecommon "reflectledger/native/common"
	"reflectledger/native/fees"
	"reflectledger/observability/metrics"
)

// Swap leg stages, used in events, metrics and logs.
const (
	StageLiquidity    = "liquidity"
	StageAddLiquidity = "add_liquidity"
	StageDividend     = "dividend"
)

func (e *Engine) maybeSwap(ctx context.Context, from common.Address) {
	if e.inSwap || !e.autoSwap || e.router == nil || e.pairs[from] {
		return
	}
	if nativecommon.Guard(e.pauses, nativecommon.ModuleSwap) != nil {
		return
	}
	pending := e.PendingSwap()
	if pending.Sign() == 0 || pending.Cmp(e.swapThreshold) < 0 {
		return
	}
	e.swapAndLiquify(ctx)
}

// takePending zeroes every bucket and returns what they held.
func (e *Engine) takePending() map[fees.Component]*big.Int {
	taken := make(map[fees.Component]*big.Int, len(e.pending))
	for c, amount := range e.pending {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		taken[c] = amount
	}
	previous := e.pending
	e.pending = make(map[fees.Component]*big.Int)
	e.journal.Record(func() { e.pending = previous })
	return taken
}

// swapAndLiquify converts the pending fee buckets. Each stage runs under its
// own revision; a failed stage is reverted, its tokens returned to pending
// and the failure absorbed. Collaborators must fail before mutating their
// own state.
func (e *Engine) swapAndLiquify(ctx context.Context) {
	id := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "token.swapAndLiquify", trace.WithAttributes(attribute.String("swap.id", id)))
	defer span.End()

	e.inSwap = true
	defer func() { e.inSwap = false }()

	buckets := e.takePending()
	deadline := e.now().Add(e.swapDeadline)
	report := events.SwapAndLiquify{
		ID:                  id,
		TokensSwapped:       big.NewInt(0),
		NativeReceived:      big.NewInt(0),
		TokensIntoLiquidity: big.NewInt(0),
		LiquidityMinted:     big.NewInt(0),
		TreasuryTokens:      big.NewInt(0),
		DividendTokens:      big.NewInt(0),
		DividendsReceived:   big.NewInt(0),
	}

	if amount := buckets[fees.ComponentLiquidity]; amount != nil {
		half := new(big.Int).Rsh(amount, 1)
		other := new(big.Int).Sub(amount, half)
		var received, minted *big.Int
		// The collaborator cannot be rolled back, so a failed add-liquidity
		// only returns the unpaired half; the native already received stays
		// with the contract and is reported in the failure event.
		swapped := e.runStage(ctx, id, StageLiquidity, fees.ComponentLiquidity, amount, nil, func(ctx context.Context) error {
			var err error
			received, err = e.swapTokens(ctx, half, []common.Address{e.contract, e.native}, e.contract, deadline)
			return err
		})
		if swapped {
			report.TokensSwapped.Add(report.TokensSwapped, half)
			report.NativeReceived.Add(report.NativeReceived, received)
			paired := e.runStage(ctx, id, StageAddLiquidity, fees.ComponentLiquidity, other, received, func(ctx context.Context) error {
				var err error
				minted, err = e.addLiquidity(ctx, other, received, deadline)
				return err
			})
			if paired {
				report.TokensIntoLiquidity.Add(report.TokensIntoLiquidity, other)
				report.LiquidityMinted.Add(report.LiquidityMinted, minted)
			}
		}
	}

	for _, c := range TreasuryComponents {
		amount := buckets[c]
		if amount == nil {
			continue
		}
		wallet := e.treasury[c]
		ok := e.runStage(ctx, id, string(c), c, amount, nil, func(ctx context.Context) error {
			_, err := e.swapTokens(ctx, amount, []common.Address{e.contract, e.native}, wallet, deadline)
			return err
		})
		if ok {
			report.TokensSwapped.Add(report.TokensSwapped, amount)
			report.TreasuryTokens.Add(report.TreasuryTokens, amount)
		}
	}

	if amount := buckets[fees.ComponentDividend]; amount != nil {
		if e.tracker.TotalShares().Sign() == 0 {
			e.addPending(fees.ComponentDividend, amount)
		} else {
			var received *big.Int
			ok := e.runStage(ctx, id, StageDividend, fees.ComponentDividend, amount, nil, func(ctx context.Context) error {
				var err error
				path := []common.Address{e.contract, e.native, e.dividendAsset}
				received, err = e.swapTokens(ctx, amount, path, e.tracker.Holder(), deadline)
				if err != nil {
					return err
				}
				return e.tracker.Distribute(received)
			})
			if ok {
				report.TokensSwapped.Add(report.TokensSwapped, amount)
				report.DividendTokens.Add(report.DividendTokens, amount)
				report.DividendsReceived.Add(report.DividendsReceived, received)
			}
		}
	}
	e.emit(report)
}

// runStage runs fn under its own revision. nativeHeld is the native the
// contract keeps if the stage fails, nil when none.
func (e *Engine) runStage(ctx context.Context, id, stage string, c fees.Component, amount, nativeHeld *big.Int, fn func(context.Context) error) bool {
	ctx, span := e.tracer.Start(ctx, "token.swap."+stage, trace.WithAttributes(
		attribute.String("swap.id", id),
		attribute.String("swap.amount", amount.String()),
	))
	defer span.End()

	rev := e.begin()
	err := e.finish(rev, fn(ctx))
	if err == nil {
		metrics.Token().ObserveSwapLeg(stage, true)
		return true
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.addPending(c, amount)
	failure := events.SwapFailed{ID: id, Stage: stage, Amount: new(big.Int).Set(amount), Reason: err.Error()}
	attrs := []any{
		slog.String("id", id),
		slog.String("stage", stage),
		slog.String("amount", amount.String()),
		slog.String("error", err.Error()),
	}
	if nativeHeld != nil && nativeHeld.Sign() > 0 {
		failure.NativeHeld = new(big.Int).Set(nativeHeld)
		attrs = append(attrs, slog.String("native_held", nativeHeld.String()))
	}
	e.emit(failure)
	e.logger.Warn("swap leg failed", attrs...)
	metrics.Token().ObserveSwapLeg(stage, false)
	return false
}

func (e *Engine) swapTokens(ctx context.Context, amount *big.Int, path []common.Address, recipient common.Address, deadline time.Time) (*big.Int, error) {
	e.setAllowance(e.contract, e.routerAddr, amount)
	amounts, err := e.router.SwapExactInputForOutput(ctx, e.contract, amount, path, recipient, deadline)
	if err != nil {
		return nil, err
	}
	if len(amounts) == 0 || amounts[len(amounts)-1] == nil {
		return nil, fmt.Errorf("token: router returned no output")
	}
	return new(big.Int).Set(amounts[len(amounts)-1]), nil
}

func (e *Engine) addLiquidity(ctx context.Context, tokens, native *big.Int, deadline time.Time) (*big.Int, error) {
	e.setAllowance(e.contract, e.routerAddr, tokens)
	minted, err := e.router.AddLiquidity(ctx, e.contract, tokens, native, e.liquidityOwner, deadline)
	if err != nil {
		return nil, err
	}
	if minted == nil {
		minted = big.NewInt(0)
	}
	return minted, nil
}

// SwapAndLiquify lets the owner run the swap leg without waiting for the
// threshold.
func (e *Engine) SwapAndLiquify(ctx context.Context, caller common.Address) (err error) {
	rev := e.begin()
	defer func() { err = e.finish(rev, err) }()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleSwap); err != nil {
		return err
	}
	if e.router == nil {
		return fmt.Errorf("token: router not configured")
	}
	if e.inSwap || e.PendingSwap().Sign() == 0 {
		return nil
	}
	e.swapAndLiquify(ctx)
	return nil
}
