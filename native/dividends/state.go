package dividends

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TrackerState is a detached copy of the tracker's bookkeeping used for
// persistence.
type TrackerState struct {
	PerShare         *big.Int
	Base             *big.Int
	TotalDistributed *big.Int
	TotalWithdrawn   *big.Int
	ClaimWait        time.Duration
	LastProcessed    int
	Records          map[common.Address]*Record
}

// State returns a deep copy of the tracker's bookkeeping.
func (t *Tracker) State() TrackerState {
	records := make(map[common.Address]*Record, len(t.records))
	for addr, rec := range t.records {
		records[addr] = rec.clone()
	}
	return TrackerState{
		PerShare:         new(big.Int).Set(t.perShare),
		Base:             new(big.Int).Set(t.base),
		TotalDistributed: new(big.Int).Set(t.totalDistributed),
		TotalWithdrawn:   new(big.Int).Set(t.totalWithdrawn),
		ClaimWait:        t.claimWait,
		LastProcessed:    t.lastProcessed,
		Records:          records,
	}
}

// Load replaces the tracker's bookkeeping. It is not journaled and is meant
// for restoring persisted state into a fresh tracker.
func (t *Tracker) Load(s TrackerState) {
	t.perShare = copyOrZero(s.PerShare)
	t.base = copyOrZero(s.Base)
	t.totalDistributed = copyOrZero(s.TotalDistributed)
	t.totalWithdrawn = copyOrZero(s.TotalWithdrawn)
	t.claimWait = s.ClaimWait
	if t.claimWait == 0 {
		t.claimWait = DefaultClaimWait
	}
	t.lastProcessed = s.LastProcessed
	t.records = make(map[common.Address]*Record, len(s.Records))
	for addr, rec := range s.Records {
		if rec == nil {
			continue
		}
		clone := &Record{
			Shares:     copyOrZero(rec.Shares),
			Correction: copyOrZero(rec.Correction),
			Withdrawn:  copyOrZero(rec.Withdrawn),
			LastClaim:  rec.LastClaim,
			Excluded:   rec.Excluded,
		}
		t.records[addr] = clone
	}
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
