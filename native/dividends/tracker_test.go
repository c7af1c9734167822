package dividends

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	coreerrors "reflectledger/core/errors"
	"reflectledger/core/events"
	"reflectledger/core/state"
	"reflectledger/integrations/asset"
)

var (
	holderAddr = common.HexToAddress("0xd1")
	alice      = common.HexToAddress("0xa1")
	bob        = common.HexToAddress("0xb0")
	carol      = common.HexToAddress("0xc0")
)

type fixture struct {
	t        *testing.T
	journal  *state.Journal
	index    *state.BalanceIndex
	asset    *asset.Ledger
	tracker  *Tracker
	recorder *events.Recorder
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		journal:  state.NewJournal(),
		index:    state.NewBalanceIndex(),
		asset:    asset.NewLedger("USDT"),
		recorder: &events.Recorder{},
		now:      time.Unix(1_700_000_000, 0).UTC(),
	}
	f.tracker = NewTracker(f.journal, f.index, f.asset, holderAddr)
	f.tracker.SetEmitter(f.recorder)
	f.tracker.SetNowFunc(func() time.Time { return f.now })
	return f
}

func (f *fixture) setBalance(addr common.Address, amount int64) {
	old := f.index.Get(addr)
	next := big.NewInt(amount)
	f.journal.Record(f.index.Set(addr, next))
	f.tracker.OnBalanceChange(addr, old, next)
}

func (f *fixture) distribute(amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.asset.Mint(holderAddr, big.NewInt(amount)))
	require.NoError(f.t, f.tracker.Distribute(big.NewInt(amount)))
}

func (f *fixture) withdrawable(addr common.Address) int64 {
	return f.tracker.WithdrawableDividendsOf(addr).Int64()
}

func TestDistributeRequiresShareholders(t *testing.T) {
	f := newFixture(t)
	err := f.tracker.Distribute(big.NewInt(10))
	require.ErrorIs(t, err, coreerrors.ErrNoShareholders)
	require.NoError(t, f.tracker.Distribute(big.NewInt(0)))
}

func TestDistributeProRata(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 300)
	f.setBalance(bob, 100)
	f.distribute(1_000)

	require.Equal(t, int64(750), f.withdrawable(alice))
	require.Equal(t, int64(250), f.withdrawable(bob))
	require.Equal(t, int64(1_000), f.tracker.TotalDistributed().Int64())
	require.Len(t, f.recorder.OfType(events.TypeDividendsDistributed), 1)
}

func TestBalanceChangePreservesWithdrawable(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 300)
	f.setBalance(bob, 100)
	f.distribute(1_000)

	f.setBalance(alice, 200)
	f.setBalance(bob, 200)
	require.Equal(t, int64(750), f.withdrawable(alice))
	require.Equal(t, int64(250), f.withdrawable(bob))

	f.setBalance(bob, 0)
	require.Equal(t, int64(250), f.withdrawable(bob))
	require.Equal(t, int64(200), f.tracker.TotalShares().Int64())

	f.distribute(400)
	require.Equal(t, int64(1_150), f.withdrawable(alice))
	require.Equal(t, int64(250), f.withdrawable(bob))
}

func TestConservationWithRounding(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 1)
	f.setBalance(bob, 2)
	f.setBalance(carol, 4)
	f.distribute(1_000)
	f.setBalance(carol, 9)
	f.distribute(333)

	total := big.NewInt(0)
	for _, addr := range []common.Address{alice, bob, carol} {
		total.Add(total, f.tracker.WithdrawableDividendsOf(addr))
		total.Add(total, f.tracker.WithdrawnDividendsOf(addr))
	}
	distributed := f.tracker.TotalDistributed()
	require.LessOrEqual(t, total.Cmp(distributed), 0)
	// Each distribution loses at most one unit per holder to flooring.
	require.GreaterOrEqual(t, total.Int64(), distributed.Int64()-6)
}

func TestClaimPaysAndRecords(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 100)
	f.distribute(500)

	paid, err := f.tracker.Claim(context.Background(), alice, false)
	require.NoError(t, err)
	require.Equal(t, int64(500), paid.Int64())
	require.Equal(t, int64(500), f.asset.BalanceOf(alice).Int64())
	require.Equal(t, int64(0), f.withdrawable(alice))
	require.Equal(t, int64(500), f.tracker.WithdrawnDividendsOf(alice).Int64())
	require.Equal(t, int64(500), f.tracker.AccumulativeDividendsOf(alice).Int64())
	require.Equal(t, int64(500), f.tracker.TotalWithdrawn().Int64())

	_, err = f.tracker.Claim(context.Background(), alice, false)
	require.ErrorIs(t, err, coreerrors.ErrNoDividends)
	claims := f.recorder.OfType(events.TypeDividendClaimed)
	require.Len(t, claims, 1)
	require.False(t, claims[0].(events.DividendClaimed).Automatic)
}

func TestClaimRevertsWhenPaymentFails(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 100)
	require.NoError(t, f.tracker.Distribute(big.NewInt(500)))

	_, err := f.tracker.Claim(context.Background(), alice, false)
	if !errors.Is(err, asset.ErrInsufficientBalance) {
		t.Fatalf("expected payment failure, got %v", err)
	}
	require.Equal(t, int64(500), f.withdrawable(alice))
	require.Equal(t, int64(0), f.tracker.TotalWithdrawn().Int64())
	require.True(t, f.tracker.AccountInfo(alice).LastClaim.IsZero())
}

func TestExclusionForfeitsAndReentersClean(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 100)
	f.setBalance(bob, 100)
	f.distribute(200)

	f.tracker.SetExcluded(alice, true, big.NewInt(100))
	require.True(t, f.tracker.IsExcluded(alice))
	require.Equal(t, int64(0), f.withdrawable(alice))
	require.Equal(t, int64(100), f.tracker.TotalShares().Int64())

	// Balance changes of excluded accounts are ignored.
	f.setBalance(alice, 150)
	require.Equal(t, int64(100), f.tracker.TotalShares().Int64())

	f.distribute(100)
	require.Equal(t, int64(200), f.withdrawable(bob))
	require.Equal(t, int64(0), f.withdrawable(alice))

	f.tracker.SetExcluded(alice, false, big.NewInt(150))
	require.False(t, f.tracker.IsExcluded(alice))
	require.Equal(t, int64(0), f.withdrawable(alice))
	require.Equal(t, int64(250), f.tracker.TotalShares().Int64())

	f.distribute(500)
	require.Equal(t, int64(300), f.withdrawable(alice))
	require.Equal(t, int64(400), f.withdrawable(bob))
}

func TestReincludeAfterClaimKeepsWithdrawn(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 100)
	f.distribute(100)
	_, err := f.tracker.Claim(context.Background(), alice, false)
	require.NoError(t, err)

	f.tracker.SetExcluded(alice, true, big.NewInt(100))
	f.tracker.SetExcluded(alice, false, big.NewInt(100))
	require.Equal(t, int64(0), f.withdrawable(alice))
	require.Equal(t, int64(100), f.tracker.WithdrawnDividendsOf(alice).Int64())
	require.Equal(t, int64(100), f.tracker.AccumulativeDividendsOf(alice).Int64())
}

func TestJournalRevertRestoresTracker(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 100)
	f.distribute(100)

	snap := f.journal.Snapshot()
	f.setBalance(bob, 300)
	f.tracker.SetExcluded(alice, true, big.NewInt(100))
	require.NoError(t, f.tracker.Distribute(big.NewInt(50)))
	f.journal.RevertToSnapshot(snap)

	require.Equal(t, int64(100), f.withdrawable(alice))
	require.Equal(t, int64(100), f.tracker.TotalShares().Int64())
	require.Equal(t, int64(100), f.tracker.TotalDistributed().Int64())
	require.False(t, f.tracker.IsExcluded(alice))
}

func TestProcessSweepsFromCursor(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 100)
	f.setBalance(bob, 100)
	f.setBalance(carol, 100)
	f.distribute(300)
	ctx := context.Background()

	res := f.tracker.Process(ctx, 2, true)
	require.Equal(t, ProcessResult{Iterations: 2, Claims: 2, Cursor: 2}, res)
	require.Equal(t, int64(100), f.asset.BalanceOf(alice).Int64())
	require.Equal(t, int64(100), f.asset.BalanceOf(bob).Int64())
	require.Equal(t, int64(0), f.asset.BalanceOf(carol).Int64())

	f.distribute(300)
	res = f.tracker.Process(ctx, 2, true)
	// carol is paid; alice is inside her claim wait.
	require.Equal(t, ProcessResult{Iterations: 2, Claims: 1, Cursor: 1}, res)
	require.Equal(t, int64(200), f.asset.BalanceOf(carol).Int64())
	require.Equal(t, int64(100), f.asset.BalanceOf(alice).Int64())

	f.now = f.now.Add(time.Hour)
	res = f.tracker.Process(ctx, 10, true)
	require.Equal(t, ProcessResult{Iterations: 3, Claims: 2, Cursor: 1}, res)
	require.Equal(t, int64(200), f.asset.BalanceOf(alice).Int64())
	require.Equal(t, int64(200), f.asset.BalanceOf(bob).Int64())
	require.Equal(t, 1, f.tracker.LastProcessedIndex())
	require.Len(t, f.recorder.OfType(events.TypeDividendsProcessed), 3)
}

func TestProcessEmptyIndex(t *testing.T) {
	f := newFixture(t)
	res := f.tracker.Process(context.Background(), 5, false)
	require.Equal(t, ProcessResult{}, res)
}

func TestClaimWaitBounds(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, DefaultClaimWait, f.tracker.ClaimWait())
	require.ErrorIs(t, f.tracker.SetClaimWait(30*time.Minute), coreerrors.ErrClaimWaitBounds)
	require.ErrorIs(t, f.tracker.SetClaimWait(25*time.Hour), coreerrors.ErrClaimWaitBounds)
	require.NoError(t, f.tracker.SetClaimWait(2*time.Hour))
	require.Equal(t, 2*time.Hour, f.tracker.ClaimWait())
}

func TestAccountInfo(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 100)
	f.setBalance(bob, 300)
	f.distribute(400)
	_, err := f.tracker.Claim(context.Background(), bob, false)
	require.NoError(t, err)

	info := f.tracker.AccountInfo(bob)
	require.Equal(t, 1, info.Index)
	require.Equal(t, 1, info.IterationsTo)
	require.Equal(t, int64(300), info.Shares.Int64())
	require.Equal(t, int64(300), info.Withdrawn.Int64())
	require.Equal(t, f.now.Add(time.Hour), info.NextClaim)

	missing := f.tracker.AccountInfo(carol)
	require.Equal(t, -1, missing.Index)
	require.Equal(t, -1, missing.IterationsTo)
}

func TestStateRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.setBalance(alice, 100)
	f.distribute(100)
	f.tracker.SetExcluded(bob, true, nil)

	restored := NewTracker(state.NewJournal(), f.index, f.asset, holderAddr)
	restored.Load(f.tracker.State())
	require.Equal(t, int64(100), restored.WithdrawableDividendsOf(alice).Int64())
	require.True(t, restored.IsExcluded(bob))
	require.Equal(t, DefaultClaimWait, restored.ClaimWait())
}
