package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/core/types"
)

const (
	TypeDividendsDistributed = "dividends.distributed"
	TypeDividendClaimed      = "dividends.claimed"
	TypeDividendsProcessed   = "dividends.processed"
)

type DividendsDistributed struct {
	Amount   *big.Int
	PerShare *big.Int
}

func (DividendsDistributed) EventType() string { return TypeDividendsDistributed }

func (e DividendsDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeDividendsDistributed,
		Attributes: map[string]string{
			"amount":   formatAmount(e.Amount),
			"perShare": formatAmount(e.PerShare),
		},
	}
}

type DividendClaimed struct {
	Account   common.Address
	Amount    *big.Int
	Automatic bool
}

func (DividendClaimed) EventType() string { return TypeDividendClaimed }

func (e DividendClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeDividendClaimed,
		Attributes: map[string]string{
			"account":   formatAccount(e.Account),
			"amount":    formatAmount(e.Amount),
			"automatic": strconv.FormatBool(e.Automatic),
		},
	}
}

type DividendsProcessed struct {
	Iterations int
	Claims     int
	Cursor     int
	Automatic  bool
}

func (DividendsProcessed) EventType() string { return TypeDividendsProcessed }

func (e DividendsProcessed) Event() *types.Event {
	return &types.Event{
		Type: TypeDividendsProcessed,
		Attributes: map[string]string{
			"iterations": strconv.Itoa(e.Iterations),
			"claims":     strconv.Itoa(e.Claims),
			"cursor":     strconv.Itoa(e.Cursor),
			"automatic":  strconv.FormatBool(e.Automatic),
		},
	}
}
