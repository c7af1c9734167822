package events

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/core/types"
)

const (
	TypeOwnershipTransferred = "token.ownership"
	TypeAccountFlag          = "token.account_flag"
	TypeFeeRate              = "token.fee_rate"
	TypeSetting              = "token.setting"
	TypePresaleCompleted     = "token.presale_completed"
	TypePrivateSaleVested    = "token.vested"
)

type OwnershipTransferred struct {
	Previous common.Address
	Next     common.Address
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

func (e OwnershipTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeOwnershipTransferred,
		Attributes: map[string]string{
			"previous": formatAccount(e.Previous),
			"next":     formatAccount(e.Next),
		},
	}
}

// AccountFlag records an owner toggle of a per-account flag such as
// fee exclusion or presale trading permission.
type AccountFlag struct {
	Account common.Address
	Flag    string
	Value   bool
}

func (AccountFlag) EventType() string { return TypeAccountFlag }

func (e AccountFlag) Event() *types.Event {
	return &types.Event{
		Type: TypeAccountFlag,
		Attributes: map[string]string{
			"account": formatAccount(e.Account),
			"flag":    e.Flag,
			"value":   strconv.FormatBool(e.Value),
		},
	}
}

type FeeRate struct {
	Component string
	Bps       uint32
}

func (FeeRate) EventType() string { return TypeFeeRate }

func (e FeeRate) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeRate,
		Attributes: map[string]string{
			"component": e.Component,
			"bps":       strconv.FormatUint(uint64(e.Bps), 10),
		},
	}
}

// Setting records a global switch or threshold change.
type Setting struct {
	Name  string
	Value string
}

func (Setting) EventType() string { return TypeSetting }

func (e Setting) Event() *types.Event {
	return &types.Event{
		Type:       TypeSetting,
		Attributes: map[string]string{"name": e.Name, "value": e.Value},
	}
}

type PresaleCompleted struct {
	At time.Time
}

func (PresaleCompleted) EventType() string { return TypePresaleCompleted }

func (e PresaleCompleted) Event() *types.Event {
	return &types.Event{
		Type:       TypePresaleCompleted,
		Attributes: map[string]string{"at": formatUnix(e.At)},
	}
}

type PrivateSaleVested struct {
	Wallets int
	Start   time.Time
}

func (PrivateSaleVested) EventType() string { return TypePrivateSaleVested }

func (e PrivateSaleVested) Event() *types.Event {
	return &types.Event{
		Type: TypePrivateSaleVested,
		Attributes: map[string]string{
			"wallets": strconv.Itoa(e.Wallets),
			"start":   formatUnix(e.Start),
		},
	}
}
