package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/core/types"
)

const (
	// TypeTransfer is emitted for every token balance movement. The amount is
	// the net amount credited to the receiver.
	TypeTransfer = "token.transfer"
	// TypeApproval is emitted whenever an allowance is set or consumed.
	TypeApproval = "token.approval"
	// TypeFeesCollected records the fee split of a taxed transfer.
	TypeFeesCollected = "token.fees"
)

type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTransfer,
		Attributes: map[string]string{
			"from":   formatAccount(e.From),
			"to":     formatAccount(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}

type Approval struct {
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{
		Type: TypeApproval,
		Attributes: map[string]string{
			"owner":   formatAccount(e.Owner),
			"spender": formatAccount(e.Spender),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// FeesCollected summarises the split applied to a taxed transfer.
type FeesCollected struct {
	From        common.Address
	To          common.Address
	Gross       *big.Int
	Net         *big.Int
	Dividend    *big.Int
	Burn        *big.Int
	Marketing   *big.Int
	Donation    *big.Int
	Development *big.Int
	Liquidity   *big.Int
	HalfTax     bool
}

func (FeesCollected) EventType() string { return TypeFeesCollected }

func (e FeesCollected) Event() *types.Event {
	return &types.Event{
		Type: TypeFeesCollected,
		Attributes: map[string]string{
			"from":        formatAccount(e.From),
			"to":          formatAccount(e.To),
			"gross":       formatAmount(e.Gross),
			"net":         formatAmount(e.Net),
			"dividend":    formatAmount(e.Dividend),
			"burn":        formatAmount(e.Burn),
			"marketing":   formatAmount(e.Marketing),
			"donation":    formatAmount(e.Donation),
			"development": formatAmount(e.Development),
			"liquidity":   formatAmount(e.Liquidity),
			"halfTax":     strconv.FormatBool(e.HalfTax),
		},
	}
}
