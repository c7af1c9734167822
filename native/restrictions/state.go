package restrictions

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PolicyState is a detached copy of the policy's mutable state.
type PolicyState struct {
	MaxWallet        *big.Int
	PresaleCompleted bool
	CompletedAt      time.Time
	Vested           bool
	VestStart        time.Time
	Grants           map[common.Address]*Grant
}

// State returns a deep copy of the mutable state.
func (p *Policy) State() PolicyState {
	grants := make(map[common.Address]*Grant, len(p.grants))
	for addr, grant := range p.grants {
		grants[addr] = grant.clone()
	}
	return PolicyState{
		MaxWallet:        p.MaxWallet(),
		PresaleCompleted: p.presaleCompleted,
		CompletedAt:      p.completedAt,
		Vested:           p.vested,
		VestStart:        p.vestStart,
		Grants:           grants,
	}
}

// Load replaces the mutable state without journaling.
func (p *Policy) Load(s PolicyState) {
	p.maxWallet = nil
	if s.MaxWallet != nil && s.MaxWallet.Sign() > 0 {
		p.maxWallet = new(big.Int).Set(s.MaxWallet)
	}
	p.presaleCompleted = s.PresaleCompleted
	p.completedAt = s.CompletedAt
	p.vested = s.Vested
	p.vestStart = s.VestStart
	p.grants = make(map[common.Address]*Grant, len(s.Grants))
	for addr, grant := range s.Grants {
		if grant == nil || grant.Vested == nil {
			continue
		}
		released := big.NewInt(0)
		if grant.Released != nil {
			released.Set(grant.Released)
		}
		p.grants[addr] = &Grant{Vested: new(big.Int).Set(grant.Vested), Released: released}
	}
}

// CompletedAt returns when the presale was completed.
func (p *Policy) CompletedAt() time.Time { return p.completedAt }
