package token

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/core/state"
	"reflectledger/native/dividends"
	"reflectledger/native/fees"
	"reflectledger/native/restrictions"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion uint64 = 1

// SnapshotKey is the store key engines are persisted under.
var SnapshotKey = []byte("reflectledger/token/snapshot")

// Snapshot is the RLP-encodable engine state. Maps are flattened into slices
// sorted by address; balances keep their index slot order so the dividend
// sweep cursor stays meaningful. Times are unix seconds, zero when unset.
type Snapshot struct {
	Version     uint64
	Owner       common.Address
	TotalSupply *big.Int

	Balances   []BalanceRecord
	Allowances []AllowanceRecord
	Accounts   []AccountRecord
	Pairs      []common.Address

	Rates    RatesRecord
	HalfTax  bool
	Treasury []TreasuryRecord
	Pending  []PendingRecord

	SwapThreshold *big.Int
	AutoSwap      bool
	AutoDividends bool
	TaxWallets    bool

	MaxWallet          *big.Int
	PresaleCompleted   bool
	PresaleCompletedAt uint64
	Vested             bool
	VestStart          uint64
	Grants             []GrantRecord

	Dividends DividendsRecord
}

type BalanceRecord struct {
	Account common.Address
	Balance *big.Int
}

type AllowanceRecord struct {
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

type AccountRecord struct {
	Account               common.Address
	ExcludedFromFee       bool
	ExcludedFromWalletCap bool
	CanTradeInPresale     bool
	LiquidityProvider     bool
	LastTransfer          uint64
}

type RatesRecord struct {
	Dividend    uint32
	Burn        uint32
	Marketing   uint32
	Donation    uint32
	Development uint32
	Liquidity   uint32
}

type TreasuryRecord struct {
	Component string
	Wallet    common.Address
	Mode      string
}

type PendingRecord struct {
	Component string
	Amount    *big.Int
}

type GrantRecord struct {
	Account  common.Address
	Vested   *big.Int
	Released *big.Int
}

type DividendsRecord struct {
	PerShare         *big.Int
	Base             *big.Int
	TotalDistributed *big.Int
	TotalWithdrawn   *big.Int
	ClaimWaitSeconds uint64
	LastProcessed    uint64
	Records          []DividendRecord
}

// DividendRecord stores the signed correction as a decimal string since RLP
// only encodes non-negative integers.
type DividendRecord struct {
	Account    common.Address
	Shares     *big.Int
	Correction string
	Withdrawn  *big.Int
	LastClaim  uint64
	Excluded   bool
}

func unixOf(t time.Time) uint64 {
	if t.IsZero() || t.Unix() <= 0 {
		return 0
	}
	return uint64(t.Unix())
}

func timeOf(sec uint64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
}

func sortedKeys[V any](m map[common.Address]V) []common.Address {
	keys := make([]common.Address, 0, len(m))
	for addr := range m {
		keys = append(keys, addr)
	}
	sortAddresses(keys)
	return keys
}

// Export captures the committed engine state.
func (e *Engine) Export() *Snapshot {
	rates := e.schedule.Rates()
	snap := &Snapshot{
		Version:     SnapshotVersion,
		Owner:       e.owner,
		TotalSupply: e.TotalSupply(),
		Pairs:       e.Pairs(),
		Rates: RatesRecord{
			Dividend:    rates.Dividend,
			Burn:        rates.Burn,
			Marketing:   rates.Marketing,
			Donation:    rates.Donation,
			Development: rates.Development,
			Liquidity:   rates.Liquidity,
		},
		HalfTax:       e.schedule.HalfTax(),
		SwapThreshold: e.SwapThreshold(),
		AutoSwap:      e.autoSwap,
		AutoDividends: e.autoDividends,
		TaxWallets:    e.taxWallets,
	}
	for _, entry := range e.balances.Entries() {
		snap.Balances = append(snap.Balances, BalanceRecord{Account: entry.Account, Balance: entry.Balance})
	}
	for _, owner := range sortedKeys(e.allowances) {
		byOwner := e.allowances[owner]
		for _, spender := range sortedKeys(byOwner) {
			snap.Allowances = append(snap.Allowances, AllowanceRecord{Owner: owner, Spender: spender, Amount: new(big.Int).Set(byOwner[spender])})
		}
	}
	for _, addr := range sortedKeys(e.accounts) {
		acct := e.accounts[addr]
		snap.Accounts = append(snap.Accounts, AccountRecord{
			Account:               addr,
			ExcludedFromFee:       acct.ExcludedFromFee,
			ExcludedFromWalletCap: acct.ExcludedFromWalletCap,
			CanTradeInPresale:     acct.CanTradeInPresale,
			LiquidityProvider:     acct.LiquidityProvider,
			LastTransfer:          unixOf(acct.LastTransfer),
		})
	}
	for _, c := range TreasuryComponents {
		snap.Treasury = append(snap.Treasury, TreasuryRecord{Component: string(c), Wallet: e.treasury[c], Mode: string(e.payouts[c])})
	}
	for _, c := range fees.Components {
		if amount := e.pending[c]; amount != nil && amount.Sign() > 0 {
			snap.Pending = append(snap.Pending, PendingRecord{Component: string(c), Amount: new(big.Int).Set(amount)})
		}
	}

	policy := e.policy.State()
	snap.MaxWallet = policy.MaxWallet
	if snap.MaxWallet == nil {
		snap.MaxWallet = big.NewInt(0)
	}
	snap.PresaleCompleted = policy.PresaleCompleted
	snap.PresaleCompletedAt = unixOf(policy.CompletedAt)
	snap.Vested = policy.Vested
	snap.VestStart = unixOf(policy.VestStart)
	for _, addr := range sortedKeys(policy.Grants) {
		grant := policy.Grants[addr]
		snap.Grants = append(snap.Grants, GrantRecord{Account: addr, Vested: grant.Vested, Released: grant.Released})
	}

	tracker := e.tracker.State()
	snap.Dividends = DividendsRecord{
		PerShare:         tracker.PerShare,
		Base:             tracker.Base,
		TotalDistributed: tracker.TotalDistributed,
		TotalWithdrawn:   tracker.TotalWithdrawn,
		ClaimWaitSeconds: uint64(tracker.ClaimWait / time.Second),
		LastProcessed:    uint64(tracker.LastProcessed),
	}
	for _, addr := range sortedKeys(tracker.Records) {
		rec := tracker.Records[addr]
		snap.Dividends.Records = append(snap.Dividends.Records, DividendRecord{
			Account:    addr,
			Shares:     rec.Shares,
			Correction: rec.Correction.String(),
			Withdrawn:  rec.Withdrawn,
			LastClaim:  unixOf(rec.LastClaim),
			Excluded:   rec.Excluded,
		})
	}
	return snap
}

// Restore replaces the engine state with the snapshot. Collaborators, names
// and clocks configured at construction are kept.
func (e *Engine) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("token: nil snapshot")
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("token: unsupported snapshot version %d", snap.Version)
	}
	if e.depth != 0 {
		return fmt.Errorf("token: restore during an active call")
	}
	rates := fees.Rates{
		Dividend:    snap.Rates.Dividend,
		Burn:        snap.Rates.Burn,
		Marketing:   snap.Rates.Marketing,
		Donation:    snap.Rates.Donation,
		Development: snap.Rates.Development,
		Liquidity:   snap.Rates.Liquidity,
	}
	schedule, err := fees.NewSchedule(rates, e.schedule.Minimums(), e.schedule.Cap())
	if err != nil {
		return fmt.Errorf("token: restore fee schedule: %w", err)
	}
	schedule.SetHalfTax(snap.HalfTax)

	records := make(map[common.Address]*dividends.Record, len(snap.Dividends.Records))
	for _, rec := range snap.Dividends.Records {
		correction, ok := new(big.Int).SetString(rec.Correction, 10)
		if !ok {
			return fmt.Errorf("token: invalid dividend correction %q for %s", rec.Correction, rec.Account.Hex())
		}
		records[rec.Account] = &dividends.Record{
			Shares:     rec.Shares,
			Correction: correction,
			Withdrawn:  rec.Withdrawn,
			LastClaim:  timeOf(rec.LastClaim),
			Excluded:   rec.Excluded,
		}
	}

	balances := state.NewBalanceIndex()
	for _, rec := range snap.Balances {
		balances.Set(rec.Account, rec.Balance)
	}
	e.balances = balances
	e.tracker = dividends.NewTracker(e.journal, balances, e.tracker.Asset(), e.tracker.Holder())
	e.tracker.SetEmitter(outboxEmitter{e})
	e.tracker.SetLogger(e.logger)
	e.tracker.SetNowFunc(e.nowFn)
	e.tracker.Load(dividends.TrackerState{
		PerShare:         snap.Dividends.PerShare,
		Base:             snap.Dividends.Base,
		TotalDistributed: snap.Dividends.TotalDistributed,
		TotalWithdrawn:   snap.Dividends.TotalWithdrawn,
		ClaimWait:        time.Duration(snap.Dividends.ClaimWaitSeconds) * time.Second,
		LastProcessed:    int(snap.Dividends.LastProcessed),
		Records:          records,
	})

	grants := make(map[common.Address]*restrictions.Grant, len(snap.Grants))
	for _, g := range snap.Grants {
		grants[g.Account] = &restrictions.Grant{Vested: g.Vested, Released: g.Released}
	}
	e.policy.Load(restrictions.PolicyState{
		MaxWallet:        snap.MaxWallet,
		PresaleCompleted: snap.PresaleCompleted,
		CompletedAt:      timeOf(snap.PresaleCompletedAt),
		Vested:           snap.Vested,
		VestStart:        timeOf(snap.VestStart),
		Grants:           grants,
	})

	e.owner = snap.Owner
	e.totalSupply = new(big.Int).Set(snap.TotalSupply)
	e.allowances = make(map[common.Address]map[common.Address]*big.Int)
	for _, a := range snap.Allowances {
		byOwner, ok := e.allowances[a.Owner]
		if !ok {
			byOwner = make(map[common.Address]*big.Int)
			e.allowances[a.Owner] = byOwner
		}
		byOwner[a.Spender] = new(big.Int).Set(a.Amount)
	}
	e.accounts = make(map[common.Address]*Account, len(snap.Accounts))
	for _, a := range snap.Accounts {
		e.accounts[a.Account] = &Account{
			ExcludedFromFee:       a.ExcludedFromFee,
			ExcludedFromWalletCap: a.ExcludedFromWalletCap,
			CanTradeInPresale:     a.CanTradeInPresale,
			LiquidityProvider:     a.LiquidityProvider,
			LastTransfer:          timeOf(a.LastTransfer),
		}
	}
	e.pairs = make(map[common.Address]bool, len(snap.Pairs))
	for _, p := range snap.Pairs {
		e.pairs[p] = true
	}
	e.schedule = schedule
	for _, t := range snap.Treasury {
		c := fees.Component(t.Component)
		if !isTreasury(c) {
			continue
		}
		e.treasury[c] = t.Wallet
		e.payouts[c] = fees.PayoutMode(t.Mode)
	}
	e.pending = make(map[fees.Component]*big.Int, len(snap.Pending))
	for _, p := range snap.Pending {
		e.pending[fees.Component(p.Component)] = new(big.Int).Set(p.Amount)
	}
	e.swapThreshold = new(big.Int).Set(snap.SwapThreshold)
	e.autoSwap = snap.AutoSwap
	e.autoDividends = snap.AutoDividends
	e.taxWallets = snap.TaxWallets
	e.journal.Reset()
	return nil
}

// Save persists the engine snapshot in the store.
func (e *Engine) Save(store *state.Store) error {
	return store.Put(SnapshotKey, e.Export())
}

// LoadSnapshot reads a persisted snapshot. The boolean is false when nothing
// was saved yet.
func LoadSnapshot(store *state.Store) (*Snapshot, bool, error) {
	snap := new(Snapshot)
	ok, err := store.Get(SnapshotKey, snap)
	if err != nil || !ok {
		return nil, ok, err
	}
	return snap, true, nil
}
