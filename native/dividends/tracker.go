package dividends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "reflectledger/core/errors"
	"reflectledger/core/events"
	"reflectledger/core/state"
	"reflectledger/observability/metrics"
)

// Magnitude scales the per-share accumulator so that small distributions
// survive integer division.
var Magnitude = new(big.Int).Lsh(big.NewInt(1), 128)

const (
	DefaultClaimWait = time.Hour
	MinClaimWait     = time.Hour
	MaxClaimWait     = 24 * time.Hour
)

// Asset is the fungible ledger dividends are paid in.
type Asset interface {
	BalanceOf(addr common.Address) *big.Int
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Record is the dividend bookkeeping of a single account.
type Record struct {
	Shares     *big.Int
	Correction *big.Int
	Withdrawn  *big.Int
	LastClaim  time.Time
	Excluded   bool
}

func newRecord() *Record {
	return &Record{Shares: big.NewInt(0), Correction: big.NewInt(0), Withdrawn: big.NewInt(0)}
}

func (r *Record) clone() *Record {
	return &Record{
		Shares:     new(big.Int).Set(r.Shares),
		Correction: new(big.Int).Set(r.Correction),
		Withdrawn:  new(big.Int).Set(r.Withdrawn),
		LastClaim:  r.LastClaim,
		Excluded:   r.Excluded,
	}
}

// Tracker implements magnified per-share dividend accounting. Every mutation
// is recorded in the journal shared with the token engine. Stored big.Int
// values are never mutated in place; updates swap in fresh values.
type Tracker struct {
	journal *state.Journal
	holders *state.BalanceIndex
	asset   Asset
	holder  common.Address

	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() time.Time

	perShare         *big.Int
	base             *big.Int
	totalDistributed *big.Int
	totalWithdrawn   *big.Int
	records          map[common.Address]*Record
	claimWait        time.Duration
	lastProcessed    int
}

// NewTracker constructs a tracker paying out of holder's balance of asset.
// holders is the token balance index walked by Process.
func NewTracker(journal *state.Journal, holders *state.BalanceIndex, asset Asset, holder common.Address) *Tracker {
	return &Tracker{
		journal:          journal,
		holders:          holders,
		asset:            asset,
		holder:           holder,
		emitter:          events.NoopEmitter{},
		logger:           slog.Default(),
		nowFn:            func() time.Time { return time.Now().UTC() },
		perShare:         big.NewInt(0),
		base:             big.NewInt(0),
		totalDistributed: big.NewInt(0),
		totalWithdrawn:   big.NewInt(0),
		records:          make(map[common.Address]*Record),
		claimWait:        DefaultClaimWait,
	}
}

// SetEmitter configures the event sink. Nil resets to a no-op emitter.
func (t *Tracker) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// SetLogger overrides the logger used for skipped sweep claims.
func (t *Tracker) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	t.logger = logger
}

// SetNowFunc overrides the clock. Nil restores the UTC wall clock.
func (t *Tracker) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	t.nowFn = now
}

// Holder returns the account that custodies undistributed dividend assets.
func (t *Tracker) Holder() common.Address { return t.holder }

// Asset returns the dividend asset ledger.
func (t *Tracker) Asset() Asset { return t.asset }

func (t *Tracker) assign(dst **big.Int, value *big.Int) {
	previous := *dst
	*dst = value
	t.journal.Record(func() { *dst = previous })
}

func (t *Tracker) record(account common.Address) *Record {
	if rec, ok := t.records[account]; ok {
		return rec
	}
	rec := newRecord()
	t.records[account] = rec
	t.journal.Record(func() { delete(t.records, account) })
	return rec
}

// MagnifiedPerShare returns the current accumulator.
func (t *Tracker) MagnifiedPerShare() *big.Int { return new(big.Int).Set(t.perShare) }

// TotalShares returns the dividend base.
func (t *Tracker) TotalShares() *big.Int { return new(big.Int).Set(t.base) }

// TotalDistributed returns the cumulative distributed amount.
func (t *Tracker) TotalDistributed() *big.Int { return new(big.Int).Set(t.totalDistributed) }

// TotalWithdrawn returns the cumulative claimed amount.
func (t *Tracker) TotalWithdrawn() *big.Int { return new(big.Int).Set(t.totalWithdrawn) }

// ClaimWait returns the minimum delay between automatic claims of an account.
func (t *Tracker) ClaimWait() time.Duration { return t.claimWait }

// LastProcessedIndex returns the sweep cursor.
func (t *Tracker) LastProcessedIndex() int { return t.lastProcessed }

// Distribute credits amount to every share holder pro rata.
func (t *Tracker) Distribute(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if t.base.Sign() <= 0 {
		return coreerrors.ErrNoShareholders
	}
	increment := new(big.Int).Mul(amount, Magnitude)
	increment.Quo(increment, t.base)
	t.assign(&t.perShare, new(big.Int).Add(t.perShare, increment))
	t.assign(&t.totalDistributed, new(big.Int).Add(t.totalDistributed, amount))
	t.emitter.Emit(events.DividendsDistributed{Amount: new(big.Int).Set(amount), PerShare: t.MagnifiedPerShare()})
	metrics.Token().AddDistributed(amount)
	return nil
}

// OnBalanceChange moves the account's shares from oldBalance to newBalance
// without changing what it is owed.
func (t *Tracker) OnBalanceChange(account common.Address, oldBalance, newBalance *big.Int) {
	if rec, ok := t.records[account]; ok && rec.Excluded {
		return
	}
	if oldBalance == nil {
		oldBalance = big.NewInt(0)
	}
	if newBalance == nil {
		newBalance = big.NewInt(0)
	}
	delta := new(big.Int).Sub(newBalance, oldBalance)
	if delta.Sign() == 0 {
		return
	}
	rec := t.record(account)
	adjust := new(big.Int).Mul(t.perShare, delta)
	t.assign(&rec.Correction, new(big.Int).Sub(rec.Correction, adjust))
	t.assign(&rec.Shares, new(big.Int).Set(newBalance))
	t.assign(&t.base, new(big.Int).Add(t.base, delta))
}

// SetExcluded toggles the account's participation. Excluding forfeits what is
// owed and removes its shares from the base; including re-enters it with
// balance shares and nothing owed.
func (t *Tracker) SetExcluded(account common.Address, excluded bool, balance *big.Int) {
	rec := t.record(account)
	if rec.Excluded == excluded {
		return
	}
	prevExcluded := rec.Excluded
	rec.Excluded = excluded
	t.journal.Record(func() { rec.Excluded = prevExcluded })

	if excluded {
		t.assign(&t.base, new(big.Int).Sub(t.base, rec.Shares))
		t.assign(&rec.Shares, big.NewInt(0))
		t.assign(&rec.Correction, new(big.Int).Mul(rec.Withdrawn, Magnitude))
		return
	}
	shares := big.NewInt(0)
	if balance != nil && balance.Sign() > 0 {
		shares.Set(balance)
	}
	correction := new(big.Int).Mul(rec.Withdrawn, Magnitude)
	correction.Sub(correction, new(big.Int).Mul(t.perShare, shares))
	t.assign(&rec.Shares, shares)
	t.assign(&rec.Correction, correction)
	t.assign(&t.base, new(big.Int).Add(t.base, shares))
}

// IsExcluded reports whether the account is excluded from dividends.
func (t *Tracker) IsExcluded(account common.Address) bool {
	rec, ok := t.records[account]
	return ok && rec.Excluded
}

// AccumulativeDividendsOf returns everything ever earned by the account.
func (t *Tracker) AccumulativeDividendsOf(account common.Address) *big.Int {
	rec, ok := t.records[account]
	if !ok {
		return big.NewInt(0)
	}
	return t.accumulative(rec)
}

func (t *Tracker) accumulative(rec *Record) *big.Int {
	out := new(big.Int).Mul(t.perShare, rec.Shares)
	out.Add(out, rec.Correction)
	if out.Sign() <= 0 {
		return big.NewInt(0)
	}
	return out.Quo(out, Magnitude)
}

// WithdrawableDividendsOf returns what the account can claim now.
func (t *Tracker) WithdrawableDividendsOf(account common.Address) *big.Int {
	rec, ok := t.records[account]
	if !ok || rec.Excluded {
		return big.NewInt(0)
	}
	out := t.accumulative(rec)
	out.Sub(out, rec.Withdrawn)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// WithdrawnDividendsOf returns what the account already claimed.
func (t *Tracker) WithdrawnDividendsOf(account common.Address) *big.Int {
	rec, ok := t.records[account]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(rec.Withdrawn)
}

// Claim pays the account's withdrawable dividends. Bookkeeping is updated
// before the asset transfer and reverted when the transfer fails.
func (t *Tracker) Claim(ctx context.Context, account common.Address, automatic bool) (*big.Int, error) {
	amount := t.WithdrawableDividendsOf(account)
	if amount.Sign() == 0 {
		return nil, coreerrors.ErrNoDividends
	}
	snap := t.journal.Snapshot()
	rec := t.record(account)
	t.assign(&rec.Withdrawn, new(big.Int).Add(rec.Withdrawn, amount))
	t.assign(&t.totalWithdrawn, new(big.Int).Add(t.totalWithdrawn, amount))
	prevClaim := rec.LastClaim
	rec.LastClaim = t.nowFn()
	t.journal.Record(func() { rec.LastClaim = prevClaim })

	if t.asset == nil {
		t.journal.RevertToSnapshot(snap)
		return nil, fmt.Errorf("dividends: asset not configured")
	}
	if err := t.asset.Transfer(ctx, t.holder, account, amount); err != nil {
		t.journal.RevertToSnapshot(snap)
		return nil, fmt.Errorf("dividends: pay %s: %w", account.Hex(), err)
	}
	t.emitter.Emit(events.DividendClaimed{Account: account, Amount: new(big.Int).Set(amount), Automatic: automatic})
	metrics.Token().AddClaimed(automatic, amount)
	return amount, nil
}

// SetClaimWait bounds the delay between automatic claims.
func (t *Tracker) SetClaimWait(wait time.Duration) error {
	if wait < MinClaimWait || wait > MaxClaimWait {
		return coreerrors.ErrClaimWaitBounds
	}
	previous := t.claimWait
	t.claimWait = wait
	t.journal.Record(func() { t.claimWait = previous })
	return nil
}

func (t *Tracker) canAutoClaim(rec *Record, now time.Time) bool {
	if rec.LastClaim.IsZero() {
		return true
	}
	return !now.Before(rec.LastClaim.Add(t.claimWait))
}

// ProcessResult summarises one sweep.
type ProcessResult struct {
	Iterations int
	Claims     int
	Cursor     int
}

// Process walks at most maxIterations holders starting at the saved cursor,
// wrapping around once per call, and pays every account whose claim wait has
// elapsed. Accounts that cannot be paid are logged and skipped.
func (t *Tracker) Process(ctx context.Context, maxIterations int, automatic bool) ProcessResult {
	n := t.holders.Len()
	if maxIterations > n {
		maxIterations = n
	}
	result := ProcessResult{Cursor: t.lastProcessed}
	if maxIterations <= 0 {
		return result
	}
	now := t.nowFn()
	it := t.holders.Iterator(t.lastProcessed)
	for result.Iterations < maxIterations {
		if err := ctx.Err(); err != nil {
			break
		}
		entry, ok := it.Next()
		if !ok {
			it = t.holders.Iterator(0)
			continue
		}
		result.Iterations++
		rec, tracked := t.records[entry.Account]
		if !tracked || rec.Excluded || !t.canAutoClaim(rec, now) {
			continue
		}
		if _, err := t.Claim(ctx, entry.Account, true); err != nil {
			if !errors.Is(err, coreerrors.ErrNoDividends) {
				t.logger.Warn("dividend sweep claim skipped",
					slog.String("account", entry.Account.Hex()),
					slog.String("error", err.Error()))
			}
			continue
		}
		result.Claims++
	}
	result.Cursor = it.Cursor()
	if result.Cursor >= n {
		result.Cursor = 0
	}
	previous := t.lastProcessed
	t.lastProcessed = result.Cursor
	t.journal.Record(func() { t.lastProcessed = previous })
	t.emitter.Emit(events.DividendsProcessed{
		Iterations: result.Iterations,
		Claims:     result.Claims,
		Cursor:     result.Cursor,
		Automatic:  automatic,
	})
	return result
}

// AccountInfo is the read view of an account's dividend position.
type AccountInfo struct {
	Account      common.Address
	Index        int
	Excluded     bool
	Shares       *big.Int
	Withdrawable *big.Int
	Withdrawn    *big.Int
	Accumulative *big.Int
	LastClaim    time.Time
	NextClaim    time.Time
	IterationsTo int
}

// AccountInfo returns the account's dividend position and how many sweep
// iterations remain until it is reached.
func (t *Tracker) AccountInfo(account common.Address) AccountInfo {
	info := AccountInfo{
		Account:      account,
		Index:        t.holders.IndexOf(account),
		Shares:       big.NewInt(0),
		Withdrawable: t.WithdrawableDividendsOf(account),
		Withdrawn:    t.WithdrawnDividendsOf(account),
		Accumulative: t.AccumulativeDividendsOf(account),
		IterationsTo: -1,
	}
	if rec, ok := t.records[account]; ok {
		info.Excluded = rec.Excluded
		info.Shares = new(big.Int).Set(rec.Shares)
		info.LastClaim = rec.LastClaim
		if !rec.LastClaim.IsZero() {
			info.NextClaim = rec.LastClaim.Add(t.claimWait)
		}
	}
	if info.Index >= 0 {
		if info.Index >= t.lastProcessed {
			info.IterationsTo = info.Index - t.lastProcessed
		} else {
			info.IterationsTo = t.holders.Len() - t.lastProcessed + info.Index
		}
	}
	return info
}
