package token

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/native/dividends"
	"reflectledger/native/fees"
	"reflectledger/native/restrictions"
)

const (
	DefaultName     = "Catcoin Mama"
	DefaultSymbol   = "CATSMAMA"
	DefaultDecimals = 18

	// DefaultSweepIterations bounds the automatic dividend sweep run after
	// each transfer.
	DefaultSweepIterations = 32
	DefaultSwapDeadline    = 5 * time.Minute
)

// DeadAddress is excluded from dividends and the wallet cap.
var DeadAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// Units scales whole tokens to base units for the supplied decimals.
func Units(whole int64, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return scale.Mul(scale, big.NewInt(whole))
}

// Params configures a token engine at genesis.
type Params struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int

	Owner common.Address
	// Contract is the token's own account. It holds pending fee buckets and
	// is the seller during swap-and-liquify.
	Contract common.Address
	// DividendHolder custodies the dividend asset until it is claimed.
	DividendHolder common.Address
	Router         common.Address
	// Native and DividendAsset identify the assets in router paths.
	Native        common.Address
	DividendAsset common.Address
	// LiquidityRecipient receives the pool shares minted by swap-and-liquify.
	LiquidityRecipient common.Address

	Treasury map[fees.Component]common.Address
	Payouts  map[fees.Component]fees.PayoutMode

	Rates    fees.Rates
	Minimums fees.Rates
	CapBps   uint32

	SwapThreshold      *big.Int
	MaxWallet          *big.Int
	PrivateSaleWallets []common.Address
	Vesting            []restrictions.Step
	ClaimWait          time.Duration
	SweepIterations    int
	SwapDeadline       time.Duration

	AutoSwap               bool
	AutoDividendProcessing bool
	TaxWalletTransfers     bool
}

// DefaultParams returns the launch configuration: 1,000,000,000,000,000
// tokens with 18 decimals, a 10,000,000,000 token swap threshold and a wallet
// cap of one percent of supply.
func DefaultParams(owner, contract common.Address) Params {
	supply := Units(1_000_000_000_000_000, DefaultDecimals)
	return Params{
		Name:               DefaultName,
		Symbol:             DefaultSymbol,
		Decimals:           DefaultDecimals,
		TotalSupply:        supply,
		Owner:              owner,
		Contract:           contract,
		LiquidityRecipient: owner,
		Treasury: map[fees.Component]common.Address{
			fees.ComponentMarketing:   owner,
			fees.ComponentDonation:    owner,
			fees.ComponentDevelopment: owner,
		},
		Payouts: map[fees.Component]fees.PayoutMode{
			fees.ComponentMarketing:   fees.PayoutNative,
			fees.ComponentDonation:    fees.PayoutNative,
			fees.ComponentDevelopment: fees.PayoutNative,
		},
		Rates:                  fees.DefaultRates(),
		Minimums:               fees.DefaultMinimums(),
		CapBps:                 fees.DefaultCapBps,
		SwapThreshold:          Units(10_000_000_000, DefaultDecimals),
		MaxWallet:              new(big.Int).Quo(supply, big.NewInt(100)),
		ClaimWait:              dividends.DefaultClaimWait,
		SweepIterations:        DefaultSweepIterations,
		SwapDeadline:           DefaultSwapDeadline,
		AutoSwap:               true,
		AutoDividendProcessing: true,
	}
}

// TreasuryComponents are the buckets paid out to wallets.
var TreasuryComponents = []fees.Component{
	fees.ComponentMarketing,
	fees.ComponentDonation,
	fees.ComponentDevelopment,
}

// Validate checks the genesis parameters.
func (p Params) Validate() error {
	zero := common.Address{}
	if p.Owner == zero {
		return fmt.Errorf("token: owner required")
	}
	if p.Contract == zero {
		return fmt.Errorf("token: contract account required")
	}
	if p.Contract == p.Owner {
		return fmt.Errorf("token: contract account must differ from owner")
	}
	if p.TotalSupply == nil || p.TotalSupply.Sign() <= 0 {
		return fmt.Errorf("token: total supply must be positive")
	}
	if err := checkAmount(p.TotalSupply); err != nil {
		return err
	}
	if p.SwapThreshold != nil && p.SwapThreshold.Sign() < 0 {
		return fmt.Errorf("token: swap threshold must not be negative")
	}
	if p.MaxWallet != nil && p.MaxWallet.Sign() < 0 {
		return fmt.Errorf("token: max wallet must not be negative")
	}
	if p.SweepIterations < 0 {
		return fmt.Errorf("token: sweep iterations must not be negative")
	}
	if p.ClaimWait != 0 && (p.ClaimWait < dividends.MinClaimWait || p.ClaimWait > dividends.MaxClaimWait) {
		return fmt.Errorf("token: claim wait %s outside [%s, %s]", p.ClaimWait, dividends.MinClaimWait, dividends.MaxClaimWait)
	}
	for _, c := range TreasuryComponents {
		if mode, ok := p.Payouts[c]; ok && mode != fees.PayoutNative && mode != fees.PayoutToken {
			return fmt.Errorf("token: unknown payout mode %q for %s", mode, c)
		}
	}
	for c := range p.Treasury {
		if !isTreasury(c) {
			return fmt.Errorf("token: %s is not a treasury component", c)
		}
	}
	return nil
}

func isTreasury(c fees.Component) bool {
	for _, t := range TreasuryComponents {
		if t == c {
			return true
		}
	}
	return false
}
