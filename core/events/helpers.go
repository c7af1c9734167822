package events

import (
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAccount(addr common.Address) string {
	return crypto.FromCommon(addr).String()
}

func formatUnix(ts time.Time) string {
	if ts.IsZero() {
		return "0"
	}
	return strconv.FormatInt(ts.UTC().Unix(), 10)
}
