package restrictions

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "reflectledger/core/errors"
)

const bpsDenominator = 10_000

// Step unlocks Bps of every grant once After has elapsed since the vesting
// start. The unlocked fraction is a step function, never interpolated.
type Step struct {
	After time.Duration
	Bps   uint32
}

const week = 7 * 24 * time.Hour

// DefaultSchedule releases 25% at presale completion, 50% after two weeks,
// 75% after three and everything after four.
func DefaultSchedule() []Step {
	return []Step{
		{After: 0, Bps: 2_500},
		{After: 2 * week, Bps: 5_000},
		{After: 3 * week, Bps: 7_500},
		{After: 4 * week, Bps: 10_000},
	}
}

func validateSchedule(schedule []Step) error {
	var prev Step
	for i, step := range schedule {
		if step.Bps > bpsDenominator {
			return fmt.Errorf("restrictions: vesting step %d unlocks %d bps", i, step.Bps)
		}
		if i > 0 && (step.After <= prev.After || step.Bps < prev.Bps) {
			return fmt.Errorf("restrictions: vesting steps must be strictly ordered")
		}
		prev = step
	}
	if prev.Bps != bpsDenominator {
		return fmt.Errorf("restrictions: vesting schedule must end at 100%%")
	}
	return nil
}

// Grant tracks the vested amount of a private sale wallet and how much of it
// has already left the wallet.
type Grant struct {
	Vested   *big.Int
	Released *big.Int
}

func (g *Grant) clone() *Grant {
	return &Grant{Vested: new(big.Int).Set(g.Vested), Released: new(big.Int).Set(g.Released)}
}

// PrivateWallets returns the configured private sale wallets.
func (p *Policy) PrivateWallets() []common.Address {
	return append([]common.Address(nil), p.privateWallets...)
}

// Vested reports whether VestPrivateSaleWallets already ran.
func (p *Policy) Vested() bool { return p.vested }

// VestStart returns the vesting start, zero until both vesting and presale
// completion happened.
func (p *Policy) VestStart() time.Time { return p.vestStart }

// VestingActive reports whether grants are currently enforced.
func (p *Policy) VestingActive() bool {
	return p.vested && p.presaleCompleted && !p.vestStart.IsZero()
}

// Vest snapshots the balance of every private sale wallet as its grant. It may
// only run once.
func (p *Policy) Vest(balanceOf func(common.Address) *big.Int, now time.Time) (int, error) {
	if p.vested {
		return 0, coreerrors.ErrAlreadyVested
	}
	prevGrants := p.grants
	prevStart := p.vestStart
	grants := make(map[common.Address]*Grant, len(p.privateWallets))
	for _, wallet := range p.privateWallets {
		balance := balanceOf(wallet)
		if balance == nil || balance.Sign() <= 0 {
			continue
		}
		grants[wallet] = &Grant{Vested: new(big.Int).Set(balance), Released: big.NewInt(0)}
	}
	p.grants = grants
	p.vested = true
	if p.presaleCompleted {
		p.vestStart = now
	}
	p.journal.Record(func() {
		p.grants = prevGrants
		p.vested = false
		p.vestStart = prevStart
	})
	return len(grants), nil
}

// Grant returns a copy of the grant held by the wallet.
func (p *Policy) Grant(addr common.Address) (*Grant, bool) {
	grant, ok := p.grants[addr]
	if !ok {
		return nil, false
	}
	return grant.clone(), true
}

// RecordOutflow books amount against the wallet's grant, if it has one.
// Released never exceeds Vested.
func (p *Policy) RecordOutflow(addr common.Address, amount *big.Int) {
	grant, ok := p.grants[addr]
	if !ok || amount == nil || amount.Sign() <= 0 || !p.VestingActive() {
		return
	}
	remaining := new(big.Int).Sub(grant.Vested, grant.Released)
	if remaining.Sign() <= 0 {
		return
	}
	if amount.Cmp(remaining) < 0 {
		remaining.Set(amount)
	}
	previous := grant.Released
	grant.Released = new(big.Int).Add(previous, remaining)
	p.journal.Record(func() { grant.Released = previous })
}

// UnlockedBps returns the fraction of every grant unlocked at now.
func (p *Policy) UnlockedBps(now time.Time) uint32 {
	if !p.VestingActive() {
		return 0
	}
	elapsed := now.Sub(p.vestStart)
	var unlocked uint32
	for _, step := range p.schedule {
		if elapsed >= step.After {
			unlocked = step.Bps
		}
	}
	return unlocked
}

// Unlocked returns how much of the wallet's grant may have left it by now.
func (p *Policy) Unlocked(addr common.Address, now time.Time) *big.Int {
	grant, ok := p.grants[addr]
	if !ok {
		return big.NewInt(0)
	}
	return p.unlockedFor(grant, now)
}

func (p *Policy) unlockedFor(grant *Grant, now time.Time) *big.Int {
	out := new(big.Int).Mul(grant.Vested, big.NewInt(int64(p.UnlockedBps(now))))
	return out.Quo(out, big.NewInt(bpsDenominator))
}
