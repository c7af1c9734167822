package restrictions

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "reflectledger/core/errors"
	"reflectledger/core/state"
)

// Kind distinguishes ordinary transfers from the token leg of an
// add-liquidity operation.
type Kind uint8

const (
	KindTransfer Kind = iota
	KindLiquidity
)

func (k Kind) String() string {
	if k == KindLiquidity {
		return "liquidity"
	}
	return "transfer"
}

// View exposes the account roles and flags consulted by the policy.
type View interface {
	IsOwner(addr common.Address) bool
	IsContract(addr common.Address) bool
	IsPair(addr common.Address) bool
	CanTradeInPresale(addr common.Address) bool
	IsExcludedFromWalletCap(addr common.Address) bool
	IsLiquidityProvider(addr common.Address) bool
}

// Transfer describes a pending balance movement.
type Transfer struct {
	From                 common.Address
	To                   common.Address
	Amount               *big.Int
	ReceiverBalanceAfter *big.Int
	Kind                 Kind
	Now                  time.Time
}

// Policy evaluates trading locks, wallet caps, vesting and liquidity
// provisioning rules. Mutations are recorded in the shared journal.
type Policy struct {
	journal *state.Journal

	maxWallet *big.Int
	schedule  []Step

	presaleCompleted bool
	completedAt      time.Time

	privateWallets []common.Address
	vested         bool
	vestStart      time.Time
	grants         map[common.Address]*Grant
}

// New constructs a policy. A nil or empty schedule selects DefaultSchedule.
func New(journal *state.Journal, maxWallet *big.Int, privateWallets []common.Address, schedule []Step) (*Policy, error) {
	if len(schedule) == 0 {
		schedule = DefaultSchedule()
	}
	if err := validateSchedule(schedule); err != nil {
		return nil, err
	}
	p := &Policy{
		journal:        journal,
		schedule:       append([]Step(nil), schedule...),
		privateWallets: dedupe(privateWallets),
		grants:         make(map[common.Address]*Grant),
	}
	if maxWallet != nil && maxWallet.Sign() > 0 {
		p.maxWallet = new(big.Int).Set(maxWallet)
	}
	return p, nil
}

func dedupe(in []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(in))
	out := make([]common.Address, 0, len(in))
	for _, addr := range in {
		if addr == (common.Address{}) {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// Check runs every rule in order and returns the first violation.
func (p *Policy) Check(view View, t Transfer) error {
	if err := p.checkTradingLock(view, t); err != nil {
		return err
	}
	if err := p.checkWalletCap(view, t); err != nil {
		return err
	}
	if err := p.checkVesting(t); err != nil {
		return err
	}
	return p.checkLiquidity(view, t)
}

func (p *Policy) checkTradingLock(view View, t Transfer) error {
	if p.presaleCompleted {
		return nil
	}
	initiator := t.From
	if view.IsPair(t.From) {
		initiator = t.To
	}
	if view.IsContract(t.From) || view.IsContract(initiator) || view.IsOwner(initiator) || view.CanTradeInPresale(initiator) {
		return nil
	}
	return fmt.Errorf("%w: %s", coreerrors.ErrTradingLocked, initiator.Hex())
}

func (p *Policy) checkWalletCap(view View, t Transfer) error {
	if p.maxWallet == nil || t.ReceiverBalanceAfter == nil {
		return nil
	}
	if view.IsExcludedFromWalletCap(t.To) {
		return nil
	}
	if t.ReceiverBalanceAfter.Cmp(p.maxWallet) > 0 {
		return fmt.Errorf("%w: %s would hold %s > %s", coreerrors.ErrWalletCapExceeded, t.To.Hex(), t.ReceiverBalanceAfter, p.maxWallet)
	}
	return nil
}

func (p *Policy) checkVesting(t Transfer) error {
	grant, ok := p.grants[t.From]
	if !ok || !p.VestingActive() || t.Amount == nil {
		return nil
	}
	if p.UnlockedBps(t.Now) >= bpsDenominator {
		return nil
	}
	unlocked := p.unlockedFor(grant, t.Now)
	next := new(big.Int).Add(grant.Released, t.Amount)
	if next.Cmp(unlocked) > 0 {
		return fmt.Errorf("%w: %s released %s of %s unlocked", coreerrors.ErrVestingLocked, t.From.Hex(), grant.Released, unlocked)
	}
	return nil
}

func (p *Policy) checkLiquidity(view View, t Transfer) error {
	if t.Kind != KindLiquidity {
		return nil
	}
	if view.IsOwner(t.From) || view.IsContract(t.From) || view.IsLiquidityProvider(t.From) {
		return nil
	}
	return fmt.Errorf("%w: %s", coreerrors.ErrLiquidityRestricted, t.From.Hex())
}

// MaxWallet returns the wallet cap, or nil when uncapped.
func (p *Policy) MaxWallet() *big.Int {
	if p.maxWallet == nil {
		return nil
	}
	return new(big.Int).Set(p.maxWallet)
}

// SetMaxWallet replaces the wallet cap. Zero or nil removes it.
func (p *Policy) SetMaxWallet(amount *big.Int) {
	previous := p.maxWallet
	if amount == nil || amount.Sign() <= 0 {
		p.maxWallet = nil
	} else {
		p.maxWallet = new(big.Int).Set(amount)
	}
	p.journal.Record(func() { p.maxWallet = previous })
}

// PresaleCompleted reports whether the one-way presale latch has fired.
func (p *Policy) PresaleCompleted() bool { return p.presaleCompleted }

// CompletePresale opens trading for everyone. Vesting starts now when the
// private sale wallets were already vested.
func (p *Policy) CompletePresale(now time.Time) error {
	if p.presaleCompleted {
		return coreerrors.ErrPresaleCompleted
	}
	prevStart := p.vestStart
	p.presaleCompleted = true
	p.completedAt = now
	if p.vested && p.vestStart.IsZero() {
		p.vestStart = now
	}
	p.journal.Record(func() {
		p.presaleCompleted = false
		p.completedAt = time.Time{}
		p.vestStart = prevStart
	})
	return nil
}
