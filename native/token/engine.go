package token

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	coreerrors "reflectledger/core/errors"
	"reflectledger/core/events"
	"reflectledger/core/state"
	nativecommon "reflectledger/native/common"
	"reflectledger/native/dividends"
	"reflectledger/native/fees"
	"reflectledger/native/restrictions"
	"reflectledger/observability/metrics"
)

// MaxAllowance is the infinite approval sentinel (2^256-1). Allowances at
// this value are never decremented.
var MaxAllowance = new(uint256.Int).SetAllOne().ToBig()

// Router is the AMM collaborator used by swap-and-liquify. Implementations
// call back into the engine synchronously to move tokens.
type Router interface {
	SwapExactInputForOutput(ctx context.Context, sender common.Address, amountIn *big.Int, path []common.Address, recipient common.Address, deadline time.Time) ([]*big.Int, error)
	AddLiquidity(ctx context.Context, sender common.Address, tokenAmount, nativeAmount *big.Int, recipient common.Address, deadline time.Time) (*big.Int, error)
	GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
}

// Account carries the per-account flags of the ledger. Balances live in the
// balance index and dividend exclusion in the tracker.
type Account struct {
	ExcludedFromFee       bool
	ExcludedFromWalletCap bool
	CanTradeInPresale     bool
	LiquidityProvider     bool
	LastTransfer          time.Time
}

// Engine settles transfers: restrictions, fees, balances, dividend
// accounting and the auto-swap leg. It is not safe for concurrent use; wrap
// it in a Host when several goroutines share it. Every public mutation is
// atomic: on error the journal restores the state seen on entry.
type Engine struct {
	name     string
	symbol   string
	decimals uint8

	owner          common.Address
	contract       common.Address
	router         Router
	routerAddr     common.Address
	native         common.Address
	dividendAsset  common.Address
	liquidityOwner common.Address

	journal     *state.Journal
	balances    *state.BalanceIndex
	allowances  map[common.Address]map[common.Address]*big.Int
	accounts    map[common.Address]*Account
	pairs       map[common.Address]bool
	totalSupply *big.Int

	schedule *fees.Schedule
	policy   *restrictions.Policy
	tracker  *dividends.Tracker

	treasury map[fees.Component]common.Address
	payouts  map[fees.Component]fees.PayoutMode
	pending  map[fees.Component]*big.Int

	swapThreshold   *big.Int
	swapDeadline    time.Duration
	sweepIterations int
	autoSwap        bool
	autoDividends   bool
	taxWallets      bool

	inSwap bool
	depth  int
	outbox []events.Event

	pauses  nativecommon.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer
	nowFn   func() time.Time
}

// NewEngine mints the total supply to the owner and applies the launch
// exclusions. router may be nil, in which case pending fees accumulate until
// one is configured.
func NewEngine(params Params, router Router, asset dividends.Asset) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	schedule, err := fees.NewSchedule(params.Rates, params.Minimums, params.CapBps)
	if err != nil {
		return nil, err
	}
	journal := state.NewJournal()
	policy, err := restrictions.New(journal, params.MaxWallet, params.PrivateSaleWallets, params.Vesting)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		name:            params.Name,
		symbol:          params.Symbol,
		decimals:        params.Decimals,
		owner:           params.Owner,
		contract:        params.Contract,
		router:          router,
		routerAddr:      params.Router,
		native:          params.Native,
		dividendAsset:   params.DividendAsset,
		liquidityOwner:  params.LiquidityRecipient,
		journal:         journal,
		balances:        state.NewBalanceIndex(),
		allowances:      make(map[common.Address]map[common.Address]*big.Int),
		accounts:        make(map[common.Address]*Account),
		pairs:           make(map[common.Address]bool),
		totalSupply:     new(big.Int).Set(params.TotalSupply),
		schedule:        schedule,
		policy:          policy,
		treasury:        make(map[fees.Component]common.Address),
		payouts:         make(map[fees.Component]fees.PayoutMode),
		pending:         make(map[fees.Component]*big.Int),
		swapThreshold:   big.NewInt(0),
		swapDeadline:    params.SwapDeadline,
		sweepIterations: params.SweepIterations,
		autoSwap:        params.AutoSwap,
		autoDividends:   params.AutoDividendProcessing,
		taxWallets:      params.TaxWalletTransfers,
		emitter:         events.NoopEmitter{},
		logger:          slog.Default(),
		tracer:          otel.Tracer("reflectledger/token"),
		nowFn:           func() time.Time { return time.Now().UTC() },
	}
	if e.liquidityOwner == (common.Address{}) {
		e.liquidityOwner = e.owner
	}
	if e.swapDeadline <= 0 {
		e.swapDeadline = DefaultSwapDeadline
	}
	if params.SwapThreshold != nil {
		e.swapThreshold.Set(params.SwapThreshold)
	}
	for _, c := range TreasuryComponents {
		e.treasury[c] = e.owner
		e.payouts[c] = fees.PayoutNative
		if wallet, ok := params.Treasury[c]; ok && wallet != (common.Address{}) {
			e.treasury[c] = wallet
		}
		if mode, ok := params.Payouts[c]; ok {
			e.payouts[c] = mode
		}
	}
	holder := params.DividendHolder
	if holder == (common.Address{}) {
		holder = params.Contract
	}
	e.tracker = dividends.NewTracker(journal, e.balances, asset, holder)
	e.tracker.SetEmitter(outboxEmitter{e})
	if params.ClaimWait != 0 {
		if err := e.tracker.SetClaimWait(params.ClaimWait); err != nil {
			return nil, err
		}
	}

	for _, addr := range []common.Address{e.owner, e.contract} {
		acct := e.account(addr)
		acct.ExcludedFromFee = true
		acct.ExcludedFromWalletCap = true
	}
	for _, addr := range []common.Address{DeadAddress, e.routerAddr, holder} {
		if addr == (common.Address{}) {
			continue
		}
		e.account(addr).ExcludedFromWalletCap = true
	}
	for _, addr := range []common.Address{e.owner, e.contract, DeadAddress, e.routerAddr, holder} {
		if addr == (common.Address{}) {
			continue
		}
		e.tracker.SetExcluded(addr, true, nil)
	}
	e.setBalance(e.owner, e.totalSupply)
	e.journal.Reset()
	metrics.Token().SetHolders(e.balances.Len())
	return e, nil
}

// SetEmitter configures the event sink. Nil resets to a no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the logger used for absorbed failures.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
	e.tracker.SetLogger(logger)
}

// SetNowFunc overrides the clock. Nil restores the UTC wall clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	e.nowFn = now
	e.tracker.SetNowFunc(now)
}

// SetRouter wires the AMM collaborator and its account.
func (e *Engine) SetRouter(router Router, addr common.Address) {
	e.router = router
	if addr != (common.Address{}) && addr != e.routerAddr {
		e.routerAddr = addr
		e.account(addr).ExcludedFromWalletCap = true
		e.tracker.SetExcluded(addr, true, e.balances.Get(addr))
		e.journal.Reset()
	}
}

// SetPauses configures the pause view consulted before transfers, swaps and
// dividend claims.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Tracker exposes the dividend tracker for read access.
func (e *Engine) Tracker() *dividends.Tracker { return e.tracker }

// Policy exposes the restriction policy for read access.
func (e *Engine) Policy() *restrictions.Policy { return e.policy }

type outboxEmitter struct{ e *Engine }

func (o outboxEmitter) Emit(ev events.Event) { o.e.emit(ev) }

// emit buffers the event until the outermost call commits.
func (e *Engine) emit(ev events.Event) {
	if ev == nil {
		return
	}
	e.outbox = append(e.outbox, ev)
}

type revision struct {
	journal int
	outbox  int
}

func (e *Engine) begin() revision {
	e.depth++
	return revision{journal: e.journal.Snapshot(), outbox: len(e.outbox)}
}

// finish commits or reverts the call opened by begin. Only the outermost
// call resets the journal and publishes buffered events.
func (e *Engine) finish(rev revision, err error) error {
	e.depth--
	if err != nil {
		e.revert(rev)
		return err
	}
	if e.depth == 0 {
		e.journal.Reset()
		out := e.outbox
		e.outbox = nil
		for _, ev := range out {
			e.emitter.Emit(ev)
		}
		metrics.Token().SetHolders(e.balances.Len())
		metrics.Token().SetPendingSwap(e.PendingSwap())
	}
	return nil
}

func (e *Engine) revert(rev revision) {
	e.journal.RevertToSnapshot(rev.journal)
	if rev.outbox < len(e.outbox) {
		e.outbox = e.outbox[:rev.outbox]
	}
}

func (e *Engine) account(addr common.Address) *Account {
	if acct, ok := e.accounts[addr]; ok {
		return acct
	}
	acct := &Account{}
	e.accounts[addr] = acct
	e.journal.Record(func() { delete(e.accounts, addr) })
	return acct
}

func (e *Engine) peekAccount(addr common.Address) Account {
	if acct, ok := e.accounts[addr]; ok {
		return *acct
	}
	return Account{}
}

// setBalance stores the balance and keeps dividend shares in sync.
func (e *Engine) setBalance(addr common.Address, balance *big.Int) {
	old := e.balances.Get(addr)
	if old.Cmp(balance) == 0 {
		return
	}
	e.journal.Record(e.balances.Set(addr, balance))
	e.tracker.OnBalanceChange(addr, old, balance)
}

func (e *Engine) credit(addr common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	e.setBalance(addr, new(big.Int).Add(e.balances.Get(addr), amount))
}

func (e *Engine) addPending(c fees.Component, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	previous := e.pending[c]
	next := new(big.Int).Set(amount)
	if previous != nil {
		next.Add(next, previous)
	}
	e.pending[c] = next
	e.journal.Record(func() { e.pending[c] = previous })
}

func (e *Engine) setFlag(dst *bool, value bool) {
	previous := *dst
	*dst = value
	e.journal.Record(func() { *dst = previous })
}

func (e *Engine) now() time.Time { return e.nowFn() }

func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.owner {
		return coreerrors.ErrNotOwner
	}
	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return coreerrors.ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return coreerrors.ErrAmountOverflow
	}
	return nil
}
